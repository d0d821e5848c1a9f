package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipedit/internal/config"
	"github.com/maauso/clipedit/internal/macro"
	"github.com/maauso/clipedit/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:            8787,
		WorkspaceDir:    filepath.Join(dir, "work"),
		HistoryCapacity: 3,
		TemplateSlots:   4,
		TemplateStore:   config.StoreMemory,
		TemplatePath:    filepath.Join(dir, "templates.json"),
		TemplateDBPath:  filepath.Join(dir, "templates.db"),
		Provider:        config.ProviderMemory,
		FFmpegPath:      "ffmpeg",
		VideoCodec:      "libx264",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_Memory(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.NotNil(t, deps.Editor)
	assert.IsType(t, storage.NoopUploader{}, deps.Uploader)
	assert.Equal(t, cfg.WorkspaceDir, deps.Workspace.TempDir())
	assert.Len(t, deps.Editor.Templates(), 4)

	st := deps.Editor.Status()
	assert.False(t, st.Opened)
	assert.Equal(t, 4, st.Slots)
}

func TestNewDependencies_FileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.TemplateStore = config.StoreFile
	require.NoError(t, os.WriteFile(cfg.TemplatePath, []byte(`[[["change_speed",2]],null,null,null]`), 0o600))

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	table := deps.Editor.Templates()
	require.Len(t, table[0], 1)
	assert.Equal(t, macro.OpChangeSpeed, table[0][0].Op)
}

func TestNewDependencies_CorruptFileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.TemplateStore = config.StoreFile
	require.NoError(t, os.WriteFile(cfg.TemplatePath, []byte(`{"not":"a table"}`), 0o600))

	_, err := NewDependencies(context.Background(), cfg, testLogger())
	assert.ErrorIs(t, err, macro.ErrCorruptStore)
}

func TestNewDependencies_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.TemplateStore = config.StoreSQLite
	ctx := context.Background()

	deps, err := NewDependencies(ctx, cfg, testLogger())
	require.NoError(t, err)

	require.NoError(t, deps.Editor.StartRecording(1))
	require.NoError(t, deps.Editor.StopRecording(ctx))
	require.NoError(t, deps.Close())

	reopened, err := NewDependencies(ctx, cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	table := reopened.Editor.Templates()
	assert.NotNil(t, table[1], "recorded slot survives a restart")
	assert.Empty(t, table[1])
	assert.Nil(t, table[0])
}

func TestNewDependencies_FFmpegProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider = config.ProviderFFmpeg

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	assert.NotNil(t, deps.Editor)
}
