// Package sessions exposes the visualization flow over HTTP: create a
// session, attach a photo, chat until ready, then render concepts.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"renovateAi/internal/conversation"
	"renovateAi/internal/events"
	"renovateAi/internal/generation"
	"renovateAi/internal/media"
	"renovateAi/internal/metrics"
	"renovateAi/internal/storage"
	"renovateAi/internal/vision"
)

// Handler bundles dependencies for session endpoints. Analyzer, Batches,
// Uploader, Events and Metrics may be nil.
type Handler struct {
	Store           storage.Store
	Machine         *conversation.Machine
	Analyzer        vision.Analyzer
	Batches         *generation.Orchestrator
	Uploader        media.Uploader
	Events          *events.Broker
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
	Client          *http.Client
	DefaultConcepts int
	AnalysisTimeout time.Duration
}

// Routes mounts the session endpoints on r.
func (h Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Patch("/overrides", h.UpdateOverrides)
		r.Post("/photo", h.AttachPhoto)
		r.Post("/messages", h.PostMessage)
		r.Get("/readiness", h.Readiness)
		r.Get("/prompt", h.Prompt)
		r.Post("/concepts", h.GenerateConcepts)
		r.Get("/events", h.StreamEvents)
	})
}

func (h Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// View is the JSON form of a session.
type View struct {
	conversation.Context
	Overrides    storage.Overrides       `json:"overrides"`
	HasPhoto     bool                    `json:"has_photo"`
	Readiness    conversation.Readiness  `json:"readiness"`
	NextQuestion *string                 `json:"next_question"`
	Concepts     []storage.ConceptRecord `json:"concepts"`
}

func (h Handler) view(s storage.Session) View {
	v := View{
		Context:   s.Conversation,
		Overrides: s.Overrides,
		HasPhoto:  s.Photo != nil,
		Readiness: h.Machine.CheckReadiness(s.Conversation),
		Concepts:  s.Concepts,
	}
	if v.Concepts == nil {
		v.Concepts = []storage.ConceptRecord{}
	}
	if q, ok := h.Machine.NextQuestion(s.Conversation); ok {
		v.NextQuestion = &q
	}
	return v
}

// Create handles POST /api/sessions. The body is optional.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	var overrides storage.Overrides
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	overrides = trimOverrides(overrides)
	sess, err := h.Store.CreateSession(r.Context(), storage.Session{
		Conversation: h.applyOverrides(h.Machine.NewSession(), overrides),
		Overrides:    overrides,
	})
	if err != nil {
		h.logger().Error("create session failed", zap.Error(err))
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	h.Metrics.SessionCreated()
	writeJSON(w, http.StatusCreated, h.view(sess))
}

// Get handles GET /api/sessions/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(sess))
}

// Delete handles DELETE /api/sessions/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateOverrides handles PATCH /api/sessions/{id}/overrides. Empty fields
// leave the stored value alone.
func (h Handler) UpdateOverrides(w http.ResponseWriter, r *http.Request) {
	var in storage.Overrides
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	in = trimOverrides(in)

	sess, err := h.Store.UpdateSession(r.Context(), chi.URLParam(r, "id"), func(s storage.Session) (storage.Session, error) {
		if in.CustomRoomType != "" {
			s.Overrides.CustomRoomType = in.CustomRoomType
		}
		if in.CustomStyle != "" {
			s.Overrides.CustomStyle = in.CustomStyle
		}
		if in.Constraints != "" {
			s.Overrides.Constraints = in.Constraints
		}
		if in.VoiceSummary != "" {
			s.Overrides.VoiceSummary = in.VoiceSummary
		}
		s.Conversation = h.applyOverrides(s.Conversation, in)
		return s, nil
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(sess))
}

// applyOverrides feeds a custom style or a recognised custom room type into
// the conversation through the same write-once merge chat extraction uses.
func (h Handler) applyOverrides(c conversation.Context, o storage.Overrides) conversation.Context {
	var prefs conversation.Preferences
	prefs.Style = o.CustomStyle
	if rt := vision.ParseRoomType(o.CustomRoomType); o.CustomRoomType != "" && rt != vision.RoomOther {
		prefs.RoomType = rt
	}
	if prefs.Empty() {
		return c
	}
	return h.Machine.Settle(h.Machine.ApplyPreferences(c, prefs))
}

// AttachPhoto handles POST /api/sessions/{id}/photo. The photo is analyzed
// once; a failed analysis attaches a neutral one instead of failing.
func (h Handler) AttachPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, ok := h.load(w, r)
	if !ok {
		return
	}
	if current.Conversation.Analysis != nil {
		http.Error(w, conversation.ErrAnalysisAttached.Error(), http.StatusConflict)
		return
	}

	photo, hint, err := vision.ReadPhoto(r, h.Client)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	analysis := h.analyze(r.Context(), id, photo, hint)
	sess, err := h.Store.UpdateSession(r.Context(), id, func(s storage.Session) (storage.Session, error) {
		c, err := h.Machine.AttachAnalysis(s.Conversation, analysis)
		if err != nil {
			return s, err
		}
		s.Conversation = h.Machine.Settle(c)
		s.Photo = &photo
		return s, nil
	})
	switch {
	case errors.Is(err, conversation.ErrAnalysisAttached):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(sess))
}

func (h Handler) analyze(ctx context.Context, sessionID string, photo vision.Photo, hint vision.RoomType) vision.RoomAnalysis {
	if h.Analyzer == nil {
		h.Metrics.Analysis("degraded")
		return vision.NeutralAnalysis(hint)
	}
	if h.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.AnalysisTimeout)
		defer cancel()
	}

	analysis, err := h.Analyzer.Analyze(ctx, photo, hint)
	if err != nil {
		h.logger().Warn("photo analysis failed, using neutral analysis",
			zap.String("session_id", sessionID), zap.Error(err))
		analysis = vision.NeutralAnalysis(hint)
	}
	if analysis.Degraded {
		h.Metrics.Analysis("degraded")
	} else {
		h.Metrics.Analysis("ok")
	}
	return analysis
}

type messageRequest struct {
	Role    conversation.Role `json:"role"`
	Content string            `json:"content"`
}

// PostMessage handles POST /api/sessions/{id}/messages. A user message is
// followed by the next clarifying question, recorded as an assistant turn.
func (h Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = conversation.RoleUser
	}

	// Extraction may call a model, so it runs before the session is locked.
	prefs, err := h.Machine.Extract(r.Context(), id, req.Role, req.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestTimeout)
		return
	}

	sess, err := h.Store.UpdateSession(r.Context(), id, func(s storage.Session) (storage.Session, error) {
		c, err := h.Machine.Ingest(s.Conversation, req.Role, req.Content, prefs)
		if err != nil {
			return s, err
		}
		c = h.Machine.Settle(c)
		if req.Role == conversation.RoleUser {
			if q, ok := h.Machine.NextQuestion(c); ok {
				if c, err = h.Machine.Ingest(c, conversation.RoleAssistant, q, nil); err != nil {
					return s, err
				}
			}
		}
		s.Conversation = c
		return s, nil
	})
	switch {
	case errors.Is(err, conversation.ErrInvalidRole):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(sess))
}

// Readiness handles GET /api/sessions/{id}/readiness.
func (h Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	resp := struct {
		conversation.Readiness
		State        conversation.State `json:"state"`
		NextQuestion *string            `json:"next_question"`
	}{
		Readiness: h.Machine.CheckReadiness(sess.Conversation),
		State:     sess.Conversation.State,
	}
	if q, ok := h.Machine.NextQuestion(sess.Conversation); ok {
		resp.NextQuestion = &q
	}
	writeJSON(w, http.StatusOK, resp)
}

// Prompt handles GET /api/sessions/{id}/prompt?variation=N&quick=true and
// returns the instruction that generation would send.
func (h Handler) Prompt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	data := PromptData(sess)
	if v := r.URL.Query().Get("variation"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "variation must be a non-negative integer", http.StatusBadRequest)
			return
		}
		data.VariationIndex = n
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": compilePrompt(data, r.URL.Query().Get("quick") == "true")})
}

type generateRequest struct {
	Count int  `json:"count"`
	Quick bool `json:"quick"`
	// Force renders before the conversation reached generation_ready.
	Force bool `json:"force"`
}

// ConceptView is one rendered concept in a response. Image is set when no
// uploader is configured.
type ConceptView struct {
	storage.ConceptRecord
	Image *vision.EncodedImage `json:"image,omitempty"`
}

// GenerateConcepts handles POST /api/sessions/{id}/concepts.
func (h Handler) GenerateConcepts(w http.ResponseWriter, r *http.Request) {
	if h.Batches == nil {
		http.Error(w, "image generation inactive", http.StatusServiceUnavailable)
		return
	}
	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Count == 0 {
		req.Count = h.DefaultConcepts
	}

	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	if sess.Photo == nil {
		http.Error(w, "attach a photo first", http.StatusConflict)
		return
	}
	if sess.Conversation.State != conversation.StateGenerationReady && !req.Force {
		writeJSON(w, http.StatusConflict, struct {
			Error     string                 `json:"error"`
			Readiness conversation.Readiness `json:"readiness"`
		}{"session is not ready for generation", h.Machine.CheckReadiness(sess.Conversation)})
		return
	}

	batch, err := h.Batches.GenerateConcepts(r.Context(), generation.Request{
		SessionID: sess.ID(),
		Photo:     *sess.Photo,
		Prompt:    PromptData(sess),
		Quick:     req.Quick,
	}, req.Count)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger().Error("concept generation failed", zap.String("session_id", sess.ID()), zap.Error(err))
		http.Error(w, err.Error(), vision.StatusFor(err))
		return
	}

	views := h.storeConcepts(r.Context(), sess.ID(), batch.Concepts)
	records := make([]storage.ConceptRecord, 0, len(views))
	for _, v := range views {
		records = append(records, v.ConceptRecord)
	}
	if _, err := h.Store.UpdateSession(r.Context(), sess.ID(), func(s storage.Session) (storage.Session, error) {
		s.Concepts = records
		return s, nil
	}); err != nil {
		h.logger().Warn("could not record concepts on session", zap.String("session_id", sess.ID()), zap.Error(err))
	}

	resp := conceptsResponse{Concepts: views}
	if batch.PrimaryErr != nil {
		resp.PrimaryError = batch.PrimaryErr.Error()
		resp.PrimaryStatus = vision.StatusFor(batch.PrimaryErr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// conceptsResponse carries the primary concept's terminal failure next to
// the variations that did render, so clients can tell "try later" (429)
// from "disabled" (503).
type conceptsResponse struct {
	Concepts      []ConceptView `json:"concepts"`
	PrimaryError  string        `json:"primary_error,omitempty"`
	PrimaryStatus int           `json:"primary_status,omitempty"`
}

func (h Handler) storeConcepts(ctx context.Context, sessionID string, concepts []generation.Concept) []ConceptView {
	uploader := h.Uploader
	if uploader == nil {
		uploader = media.Disabled()
	}
	now := time.Now().UTC()
	views := make([]ConceptView, 0, len(concepts))
	for _, c := range concepts {
		v := ConceptView{ConceptRecord: storage.ConceptRecord{
			VariationIndex:  c.VariationIndex,
			MIMEType:        c.Image.MIMEType,
			Attempts:        c.Attempts,
			Refined:         c.Refined,
			ValidationScore: c.ValidationScore,
			CreatedAt:       now,
		}}
		res, err := media.UploadConcept(ctx, uploader, sessionID, c.VariationIndex, c.Image)
		switch {
		case err == nil:
			v.URL = res.URL
		case errors.Is(err, media.ErrUploaderDisabled):
			img := vision.EncodeImage(c.Image)
			v.Image = &img
		default:
			h.logger().Warn("concept upload failed, returning inline image",
				zap.String("session_id", sessionID), zap.Int("variation", c.VariationIndex), zap.Error(err))
			img := vision.EncodeImage(c.Image)
			v.Image = &img
		}
		views = append(views, v)
	}
	return views
}

// StreamEvents handles GET /api/sessions/{id}/events as server-sent events.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		http.Error(w, "event stream inactive", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ch := h.Events.Subscribe(chi.URLParam(r, "id"))
	defer h.Events.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
			flusher.Flush()
		}
	}
}

func (h Handler) load(w http.ResponseWriter, r *http.Request) (storage.Session, bool) {
	sess, err := h.Store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return storage.Session{}, false
	}
	return sess, true
}

func (h Handler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.logger().Error("session store failed", zap.Error(err))
	http.Error(w, "session store unavailable", http.StatusInternalServerError)
}

func trimOverrides(o storage.Overrides) storage.Overrides {
	return storage.Overrides{
		CustomRoomType: strings.TrimSpace(o.CustomRoomType),
		CustomStyle:    strings.TrimSpace(o.CustomStyle),
		Constraints:    strings.TrimSpace(o.Constraints),
		VoiceSummary:   strings.TrimSpace(o.VoiceSummary),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
