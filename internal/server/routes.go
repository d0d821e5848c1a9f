package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Get("/session", h.Session)
	r.Post("/session/open", h.Open)

	r.Route("/ops", func(r chi.Router) {
		r.Post("/speed", h.ChangeSpeed)
		r.Post("/cut", h.CutFragment)
		r.Post("/image", h.InsertImage)
		r.Post("/concatenate", h.ConcatenateVideos)
		r.Post("/rotate", h.RotateVideo)
		r.Post("/crop", h.CropVideo)
		r.Post("/fade", h.AddFadeInOut)
	})

	r.Post("/fragment", h.ChooseFragment)
	r.Delete("/fragment", h.EditFullVideo)

	r.Post("/history/undo", h.Undo)
	r.Post("/history/redo", h.Redo)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.Templates)
		r.Post("/stop", h.StopRecording)
		r.Post("/{slot}/record", h.StartRecording)
		r.Post("/{slot}/play", h.UseTemplate)
	})

	r.Post("/save", h.Save)
	r.Post("/save-as", h.SaveAs)

	return r
}
