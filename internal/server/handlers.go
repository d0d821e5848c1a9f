package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/clipedit/internal/editor"
	"github.com/maauso/clipedit/internal/history"
	"github.com/maauso/clipedit/internal/macro"
	"github.com/maauso/clipedit/internal/media"
	"github.com/maauso/clipedit/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	editor    *editor.Editor
	uploader  storage.Uploader
	validator *validator.Validate
	logger    *slog.Logger
	keyPrefix string
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithUploader sets the uploader used by save-as with push_to_s3.
func WithUploader(u storage.Uploader) HandlerOption {
	return func(h *Handlers) {
		if u != nil {
			h.uploader = u
		}
	}
}

// WithKeyPrefix sets the object key prefix for uploaded exports.
func WithKeyPrefix(prefix string) HandlerOption {
	return func(h *Handlers) {
		h.keyPrefix = prefix
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ed *editor.Editor, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		editor:    ed,
		uploader:  storage.NoopUploader{},
		validator: validator.New(),
		logger:    logger,
		keyPrefix: "exports",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Session handles GET /session requests.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse(h.editor.Status()))
}

// Open handles POST /session/open requests.
func (h *Handlers) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, "open", h.editor.Open(r.Context(), req.Path))
}

// ChangeSpeed handles POST /ops/speed requests.
func (h *Handlers) ChangeSpeed(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, macro.OpChangeSpeed, h.editor.ChangeSpeed(r.Context(), req.Factor))
}

// CutFragment handles POST /ops/cut requests.
func (h *Handlers) CutFragment(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, macro.OpCutFragment, h.editor.CutFragment(r.Context(), req.Start, req.End))
}

// InsertImage handles POST /ops/image requests.
func (h *Handlers) InsertImage(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, macro.OpInsertImage, h.editor.InsertImage(r.Context(), req.Path, req.Start, req.End))
}

// ConcatenateVideos handles POST /ops/concatenate requests.
func (h *Handlers) ConcatenateVideos(w http.ResponseWriter, r *http.Request) {
	var req ConcatenateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, macro.OpConcatenateVideo, h.editor.ConcatenateVideos(r.Context(), req.Paths))
}

// RotateVideo handles POST /ops/rotate requests.
func (h *Handlers) RotateVideo(w http.ResponseWriter, r *http.Request) {
	var req RotateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, macro.OpRotateVideo, h.editor.RotateVideo(r.Context(), macro.Direction(req.Direction)))
}

// CropVideo handles POST /ops/crop requests.
func (h *Handlers) CropVideo(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, macro.OpCropVideo, h.editor.CropVideo(r.Context(), req.X1, req.Y1, req.X2, req.Y2))
}

// AddFadeInOut handles POST /ops/fade requests.
func (h *Handlers) AddFadeInOut(w http.ResponseWriter, r *http.Request) {
	var req FadeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, "fade_in_out", h.editor.AddFadeInOut(r.Context(), media.FadeKind(req.Kind), req.FadeIn, req.FadeOut))
}

// ChooseFragment handles POST /fragment requests.
func (h *Handlers) ChooseFragment(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, "choose_fragment", h.editor.ChooseFragment(r.Context(), req.Start, req.End))
}

// EditFullVideo handles DELETE /fragment requests.
func (h *Handlers) EditFullVideo(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "edit_full_video", h.editor.EditFullVideo(r.Context()))
}

// Undo handles POST /history/undo requests.
func (h *Handlers) Undo(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "undo", h.editor.Undo(r.Context()))
}

// Redo handles POST /history/redo requests.
func (h *Handlers) Redo(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "redo", h.editor.Redo(r.Context()))
}

// Templates handles GET /templates requests.
func (h *Handlers) Templates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, templatesResponse(h.editor))
}

// StartRecording handles POST /templates/{slot}/record requests.
func (h *Handlers) StartRecording(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(w, r)
	if !ok {
		return
	}
	if err := h.editor.StartRecording(slot); err != nil {
		h.fail(w, "start_recording", err)
		return
	}
	writeJSON(w, http.StatusOK, templatesResponse(h.editor))
}

// StopRecording handles POST /templates/stop requests.
func (h *Handlers) StopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.StopRecording(r.Context()); err != nil {
		h.fail(w, "stop_recording", err)
		return
	}
	writeJSON(w, http.StatusOK, templatesResponse(h.editor))
}

// UseTemplate handles POST /templates/{slot}/play requests.
func (h *Handlers) UseTemplate(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(w, r)
	if !ok {
		return
	}
	h.respond(w, "use_template", h.editor.UseTemplate(r.Context(), slot))
}

// Save handles POST /save requests.
func (h *Handlers) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.Save(r.Context()); err != nil {
		h.fail(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Path: h.editor.OutputPath()})
}

// SaveAs handles POST /save-as requests.
func (h *Handlers) SaveAs(w http.ResponseWriter, r *http.Request) {
	var req SaveAsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.editor.SaveAs(r.Context(), req.Path); err != nil {
		h.fail(w, "save_as", err)
		return
	}

	resp := SaveResponse{Path: req.Path}
	if req.PushToS3 {
		url, err := h.push(r.Context(), req.Path)
		if err != nil {
			if errors.Is(err, storage.ErrS3NotConfigured) {
				writeError(w, http.StatusBadRequest, err.Error(), "S3_NOT_CONFIGURED")
				return
			}
			h.logger.Error("failed to upload export",
				slog.String("path", req.Path),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "failed to upload export", "UPLOAD_FAILED")
			return
		}
		resp.URL = url
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) push(ctx context.Context, path string) (string, error) {
	key := filepath.Base(path)
	if id := h.editor.SessionID(); id != "" {
		key = id + "/" + key
	}
	if h.keyPrefix != "" {
		key = h.keyPrefix + "/" + key
	}
	url, err := storage.UploadFile(ctx, h.uploader, key, path)
	if err != nil {
		return "", err
	}
	h.logger.Info("export uploaded",
		slog.String("path", path),
		slog.String("url", url),
	)
	return url, nil
}

// decode reads and validates the JSON body into dst. It writes the error
// response and returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	// Validate request
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// respond writes the session state after a successful operation, or the
// mapped error.
func (h *Handlers) respond(w http.ResponseWriter, op string, err error) {
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(h.editor.Status()))
}

// fail maps engine errors to HTTP status codes.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, err.Error(), code)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, editor.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, macro.ErrInvalidSlot):
		return http.StatusBadRequest, "INVALID_SLOT"
	case errors.Is(err, editor.ErrNoVideo):
		return http.StatusConflict, "NO_VIDEO"
	case errors.Is(err, macro.ErrAlreadyRecording):
		return http.StatusConflict, "ALREADY_RECORDING"
	case errors.Is(err, history.ErrNothingToUndo):
		return http.StatusConflict, "NOTHING_TO_UNDO"
	case errors.Is(err, history.ErrNothingToRedo):
		return http.StatusConflict, "NOTHING_TO_REDO"
	case errors.Is(err, editor.ErrTemplateCorrupt), errors.Is(err, macro.ErrCorruptStore):
		return http.StatusUnprocessableEntity, "TEMPLATE_CORRUPT"
	case errors.Is(err, editor.ErrProviderFailure):
		return http.StatusBadGateway, "PROVIDER_FAILED"
	case errors.Is(err, editor.ErrStoreFailure):
		return http.StatusInternalServerError, "STORE_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func slotParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "slot")
	slot, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid slot %q", raw), "INVALID_SLOT")
		return 0, false
	}
	return slot, true
}

func clipResponse(c *media.Clip) *ClipResponse {
	if c == nil {
		return nil
	}
	return &ClipResponse{
		Duration: c.Duration(),
		Width:    c.Width(),
		Height:   c.Height(),
		HasAudio: c.HasAudio(),
	}
}

func sessionResponse(st editor.Status) SessionResponse {
	resp := SessionResponse{
		Opened:     st.Opened,
		SessionID:  st.SessionID,
		SourcePath: st.SourcePath,
		OutputPath: st.OutputPath,
		UndoDepth:  st.UndoDepth,
		RedoDepth:  st.RedoDepth,
		Recording:  st.Recording,
	}
	if st.Opened {
		resp.Duration = st.Current.Duration()
		resp.Active = clipResponse(st.Current.Active)
		resp.Left = clipResponse(st.Current.Left)
		resp.Right = clipResponse(st.Current.Right)
	}
	if st.Recording {
		slot := st.ActiveSlot
		resp.ActiveSlot = &slot
	}
	return resp
}

func templatesResponse(ed *editor.Editor) TemplatesResponse {
	table := ed.Templates()
	_, recording := ed.Recording()

	slots := make([]TemplateSlotResponse, len(table))
	for i, recs := range table {
		slots[i] = TemplateSlotResponse{
			Slot:  i,
			Set:   recs != nil,
			Steps: recs,
		}
		if slots[i].Steps == nil {
			slots[i].Steps = []macro.Record{}
		}
	}
	return TemplatesResponse{Slots: slots, Recording: recording}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
