package worker

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/internal/llm"
	"github.com/thebtf/factura/internal/reconcile"
	"github.com/thebtf/factura/internal/render"
	"github.com/thebtf/factura/internal/session"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		log.Warn().Err(err).Msg("catalog store unreachable")
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Service) handleStartSession(w http.ResponseWriter, _ *http.Request) {
	id := s.manager.StartSession()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.GetView(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	draft, err := s.manager.GetInvoicePreview(sessionID)
	if err != nil && !errors.Is(err, session.ErrNoActiveDraft) {
		writeError(w, err)
		return
	}

	var html string
	if draft != nil {
		html, err = render.InvoiceHTML(draft)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		// No draft: either no turn yet or the last turn was rejected. The
		// rejection carries the model's explanation.
		view, err := s.manager.GetView(sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		html = render.RejectionHTML(view.Rejected)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

func (s *Service) handleGetReasoning(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.GetView(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(render.ReasoningMarkdown(view.Analysis, "")))
}

func (s *Service) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.manager.GetCompletionStatus(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	biz, err := s.store.GetBusiness(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business": biz,
		"markdown": render.BusinessMarkdown(biz),
	})
}

func (s *Service) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID string `json:"business_id"`
		Message    string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BusinessID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "business_id and message are required"})
		return
	}

	view, err := s.manager.SubmitRequest(r.Context(), chi.URLParam(r, "sessionID"), req.BusinessID, req.Message)
	if err != nil {
		s.recordTurnError(r, err)
		writeError(w, err)
		return
	}
	s.metrics.recordTurn(r.Context(), view.Analysis.IsValidInvoiceRequest)
	s.metrics.recordPromptTokens(r.Context(), view.PromptTokens)
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleSubmitFollowUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	view, err := s.manager.SubmitFollowUp(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		s.recordTurnError(r, err)
		writeError(w, err)
		return
	}
	s.metrics.recordTurn(r.Context(), view.Analysis.IsValidInvoiceRequest)
	s.metrics.recordPromptTokens(r.Context(), view.PromptTokens)
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleApplyEdits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Edits []struct {
			ID     string            `json:"id"`
			Fields map[string]string `json:"fields"`
		} `json:"edits"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	edits := make([]reconcile.ItemEdit, 0, len(req.Edits))
	for _, e := range req.Edits {
		edits = append(edits, reconcile.ItemEdit{ID: e.ID, Fields: e.Fields})
	}

	view, err := s.manager.ApplyUserEdits(chi.URLParam(r, "sessionID"), edits)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleConfirm(w http.ResponseWriter, r *http.Request) {
	result, err := s.manager.ConfirmDraft(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleSaveItem(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.manager.SaveItem(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.recordItemSaved(r.Context(), string(outcome))
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (s *Service) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.manager.SaveAll(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleCloseItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DiscardUnsaved bool `json:"discard_unsaved"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.manager.CloseItemModal(chi.URLParam(r, "sessionID"), req.DiscardUnsaved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ResetSession(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Service) recordTurnError(r *http.Request, err error) {
	var schemaErr *llm.SchemaError
	var modelErr *session.ModelCallError
	switch {
	case errors.As(err, &schemaErr):
		s.metrics.recordTurnFailure(r.Context(), "schema")
	case errors.As(err, &modelErr):
		s.metrics.recordTurnFailure(r.Context(), "model")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

// writeError maps the session error taxonomy to HTTP statuses. Every error
// here is recoverable: the session keeps its prior state and the client may
// retry.
func writeError(w http.ResponseWriter, err error) {
	var schemaErr *llm.SchemaError
	var modelErr *session.ModelCallError

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, catalog.ErrUnknownBusiness):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrNoActiveDraft),
		errors.Is(err, session.ErrNotConfirmable),
		errors.Is(err, session.ErrUnsavedItems):
		code = http.StatusConflict
	case errors.As(err, &schemaErr), errors.As(err, &modelErr):
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
