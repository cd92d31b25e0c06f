package vision

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Handler exposes HTTP endpoints for ad-hoc vision tooling.
type Handler struct {
	Analyzer Analyzer
	Renderer ImageGenerator
	Client   *http.Client
}

type analyzeRequest struct {
	PhotoInput
	RoomType string `json:"room_type"`
}

// ReadPhoto pulls the photo and optional room-type hint out of a request:
// either a multipart "image_file" field or a JSON PhotoInput body.
func ReadPhoto(r *http.Request, client *http.Client) (Photo, RoomType, error) {
	if IsMultipart(r) {
		photo, err := ReadMultipartPhoto(r, "image_file")
		if err != nil {
			return Photo{}, RoomUnknown, err
		}
		return photo, ParseRoomType(r.FormValue("room_type")), nil
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Photo{}, RoomUnknown, errors.New("invalid request body")
	}
	photo, err := req.Load(r.Context(), client)
	if err != nil {
		return Photo{}, RoomUnknown, err
	}
	return photo, ParseRoomType(req.RoomType), nil
}

func (h Handler) readPhoto(w http.ResponseWriter, r *http.Request) (Photo, RoomType, bool) {
	photo, hint, err := ReadPhoto(r, h.Client)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return Photo{}, RoomUnknown, false
	}
	return photo, hint, true
}

// Analyze handles POST /api/vision/analyze.
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.Analyzer == nil {
		http.Error(w, "vision analysis inactive", http.StatusServiceUnavailable)
		return
	}
	photo, hint, ok := h.readPhoto(w, r)
	if !ok {
		return
	}

	result, err := h.Analyzer.Analyze(r.Context(), photo, hint)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJSON(w, result)
}

// QuickCheck handles POST /api/vision/quick-check.
func (h Handler) QuickCheck(w http.ResponseWriter, r *http.Request) {
	if h.Analyzer == nil {
		http.Error(w, "vision analysis inactive", http.StatusServiceUnavailable)
		return
	}
	photo, _, ok := h.readPhoto(w, r)
	if !ok {
		return
	}

	result, err := h.Analyzer.QuickCheck(r.Context(), photo)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJSON(w, result)
}

// Render handles POST /api/vision/render with a caller-supplied prompt.
func (h Handler) Render(w http.ResponseWriter, r *http.Request) {
	if h.Renderer == nil {
		http.Error(w, "vision rendering inactive", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		PhotoInput
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	imageReq := ImageRequest{Prompt: req.Prompt}
	if !req.PhotoInput.Empty() {
		photo, err := req.PhotoInput.Load(r.Context(), h.Client)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		imageReq.Input = &photo
	}

	image, err := h.Renderer.Generate(r.Context(), imageReq)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJSON(w, EncodeImage(image))
}

// EncodedImage is the JSON wire form of a GeneratedImage.
type EncodedImage struct {
	MIMEType  string `json:"mime_type"`
	ImageData string `json:"image_data"`
}

// EncodeImage base64-encodes a render for JSON responses.
func EncodeImage(image GeneratedImage) EncodedImage {
	return EncodedImage{MIMEType: image.MIMEType, ImageData: base64.StdEncoding.EncodeToString(image.Data)}
}

// StatusFor maps capability failures onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrCapabilityUnavailable), errors.Is(err, ErrValidationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
