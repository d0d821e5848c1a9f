// Package server provides the local HTTP API over the editing engine.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/maauso/clipedit/internal/macro"

// OpenRequest is the HTTP request body for opening a video.
type OpenRequest struct {
	// Path is the source video on the local filesystem.
	Path string `json:"path" validate:"required"`
}

// SpeedRequest is the HTTP request body for changing playback speed.
type SpeedRequest struct {
	// Factor multiplies playback speed; 2 halves the duration.
	Factor float64 `json:"factor" validate:"gt=0"`
}

// RangeRequest is used by operations that take a time range in seconds.
type RangeRequest struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

// ImageRequest is the HTTP request body for overlaying an image.
type ImageRequest struct {
	// Path is the image on the local filesystem.
	Path  string  `json:"path" validate:"required"`
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

// ConcatenateRequest is the HTTP request body for replacing the active clip
// with the given videos joined in order.
type ConcatenateRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,dive,required"`
}

// RotateRequest is the HTTP request body for a quarter turn.
type RotateRequest struct {
	Direction string `json:"direction" validate:"required,oneof=left right"`
}

// CropRequest is the HTTP request body for cropping to a rectangle given by
// its top-left and bottom-right corners in pixels.
type CropRequest struct {
	X1 int `json:"x1" validate:"gte=0"`
	Y1 int `json:"y1" validate:"gte=0"`
	X2 int `json:"x2" validate:"gtfield=X1"`
	Y2 int `json:"y2" validate:"gtfield=Y1"`
}

// FadeRequest is the HTTP request body for fading in and out.
type FadeRequest struct {
	Kind    string  `json:"kind" validate:"required,oneof=dark light grayscale"`
	FadeIn  float64 `json:"fade_in" validate:"gte=0"`
	FadeOut float64 `json:"fade_out" validate:"gte=0"`
}

// SaveAsRequest is the HTTP request body for exporting to a new path.
type SaveAsRequest struct {
	// Path is the destination file; its extension selects the container.
	Path string `json:"path" validate:"required"`
	// PushToS3 indicates whether to upload the export to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// ClipResponse describes one clip of the timeline.
type ClipResponse struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	HasAudio bool    `json:"has_audio"`
}

// SessionResponse is the HTTP response describing the editor state.
// ActiveSlot is omitted while no recording is active.
type SessionResponse struct {
	Opened     bool          `json:"opened"`
	SessionID  string        `json:"session_id,omitempty"`
	SourcePath string        `json:"source_path,omitempty"`
	OutputPath string        `json:"output_path,omitempty"`
	Duration   float64       `json:"duration"`
	Active     *ClipResponse `json:"active,omitempty"`
	Left       *ClipResponse `json:"left,omitempty"`
	Right      *ClipResponse `json:"right,omitempty"`
	UndoDepth  int           `json:"undo_depth"`
	RedoDepth  int           `json:"redo_depth"`
	Recording  bool          `json:"recording"`
	ActiveSlot *int          `json:"active_slot,omitempty"`
}

// TemplateSlotResponse describes one template slot. Set is false for a slot
// that was never recorded.
type TemplateSlotResponse struct {
	Slot  int            `json:"slot"`
	Set   bool           `json:"set"`
	Steps []macro.Record `json:"steps"`
}

// TemplatesResponse is the HTTP response listing every template slot.
type TemplatesResponse struct {
	Slots     []TemplateSlotResponse `json:"slots"`
	Recording bool                   `json:"recording"`
}

// SaveResponse is the HTTP response after exporting.
type SaveResponse struct {
	// Path is the file that was written.
	Path string `json:"path"`
	// URL is the S3 URL of the export (if push_to_s3=true).
	URL string `json:"url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
