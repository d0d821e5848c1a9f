// Package bootstrap provides dependency initialization for clipedit.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/clipedit/internal/config"
	"github.com/maauso/clipedit/internal/editor"
	"github.com/maauso/clipedit/internal/media"
	"github.com/maauso/clipedit/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Editor    *editor.Editor
	Uploader  storage.Uploader
	Workspace *storage.LocalStorage

	closers []func() error
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize workspace
	workspace, err := storage.NewLocalStorage(cfg.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	deps.Workspace = workspace
	logger.Info("workspace configured",
		slog.String("dir", workspace.TempDir()),
	)

	provider := initProvider(cfg, workspace, logger)

	store, err := initTemplateStore(ctx, cfg, deps, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	uploader, err := initUploader(ctx, cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Uploader = uploader

	ed, err := editor.New(ctx, provider, store, logger,
		editor.WithHistoryCapacity(cfg.HistoryCapacity),
		editor.WithTemplateSlots(cfg.TemplateSlots),
		editor.WithSmoothConcatenation(cfg.SmoothConcat),
	)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("create editor: %w", err)
	}
	deps.Editor = ed

	return deps, nil
}

// initProvider creates the media provider selected by PROVIDER.
func initProvider(cfg *config.Config, workspace media.Workspace, logger *slog.Logger) media.Provider {
	if cfg.Provider == config.ProviderMemory {
		p := media.NewMemoryProvider()
		p.ProbeSources()
		logger.Info("memory media provider configured")
		return p
	}

	logger.Info("ffmpeg media provider configured",
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.String("video_codec", cfg.VideoCodec),
	)
	return media.NewFFmpegProvider(cfg.FFmpegPath, workspace, media.WithVideoCodec(cfg.VideoCodec))
}

// initTemplateStore creates the template store backend selected by TEMPLATE_STORE.
func initTemplateStore(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (editor.TemplateStore, error) {
	switch cfg.TemplateStore {
	case config.StoreS3:
		store, err := storage.NewS3TemplateStore(ctx, s3Config(cfg), cfg.S3TemplateKey)
		if err != nil {
			return nil, fmt.Errorf("create S3 template store: %w", err)
		}
		logger.Info("S3 template store configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("key", cfg.S3TemplateKey),
		)
		return store, nil

	case config.StoreSQLite:
		store, err := storage.NewSQLiteTemplateStore(cfg.TemplateDBPath)
		if err != nil {
			return nil, fmt.Errorf("create SQLite template store: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)
		logger.Info("SQLite template store configured",
			slog.String("path", cfg.TemplateDBPath),
		)
		return store, nil

	case config.StoreMemory:
		logger.Info("memory template store configured")
		return storage.NewMemoryTemplateStore(nil), nil

	default:
		logger.Info("file template store configured",
			slog.String("path", cfg.TemplatePath),
		)
		return storage.NewFileTemplateStore(cfg.TemplatePath), nil
	}
}

// initUploader creates the S3 uploader for exports when S3 is configured.
func initUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Uploader, error) {
	if !cfg.S3Enabled() {
		return storage.NoopUploader{}, nil
	}
	uploader, err := storage.NewS3Uploader(ctx, s3Config(cfg))
	if err != nil {
		return nil, fmt.Errorf("create S3 uploader: %w", err)
	}
	logger.Info("S3 export uploads enabled",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return uploader, nil
}

func s3Config(cfg *config.Config) storage.S3Config {
	return storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}
}
