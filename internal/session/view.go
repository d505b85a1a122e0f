package session

import (
	"time"

	"github.com/thebtf/factura/pkg/models"
)

// View is the read-only projection of a session handed to transports.
type View struct {
	SessionID  string `json:"session_id"`
	BusinessID string `json:"business_id,omitempty"`
	Status     Status `json:"status"`

	Analysis models.AnalysisResult `json:"analysis"`
	Draft    *models.InvoiceDraft  `json:"draft,omitempty"`
	Rejected *models.NotAnInvoice  `json:"rejected,omitempty"`

	PendingItems []models.PendingItem `json:"pending_items"`
	SavedItemIDs []string             `json:"saved_item_ids"`

	IsCompleted bool `json:"is_completed"`
	CanConfirm  bool `json:"can_confirm"`

	PromptTokens int       `json:"prompt_tokens"`
	ResetArmed   bool      `json:"reset_armed"`
	ResetDue     time.Time `json:"reset_due,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CompletionStatus is the lightweight confirmability readout.
type CompletionStatus struct {
	IsCompleted  bool `json:"is_completed"`
	CanConfirm   bool `json:"can_confirm"`
	PendingItems int  `json:"pending_items"`
	SavedItems   int  `json:"saved_items"`
}

// GetView returns the full session projection.
func (m *Manager) GetView(sessionID string) (*View, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.viewLocked(s), nil
}

// GetInvoicePreview returns the current draft, nil while none exists.
func (m *Manager) GetInvoicePreview(sessionID string) (*models.InvoiceDraft, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Draft == nil {
		return nil, ErrNoActiveDraft
	}
	draft := *s.Draft
	draft.Items = append([]models.LineItemView(nil), s.Draft.Items...)
	return &draft, nil
}

// GetCompletionStatus returns the confirmability readout.
func (m *Manager) GetCompletionStatus(sessionID string) (*CompletionStatus, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &CompletionStatus{}
	if s.Recon != nil {
		status.IsCompleted = reconIsCompleted(s)
		status.CanConfirm = reconCanConfirm(s)
		status.PendingItems = len(s.Recon.PendingItems)
		status.SavedItems = len(s.Recon.SavedItemIDs)
	}
	return status, nil
}

func (m *Manager) viewLocked(s *Session) *View {
	view := &View{
		SessionID:    s.ID,
		BusinessID:   s.BusinessID,
		Status:       s.Status,
		Analysis:     s.Analysis,
		Rejected:     s.Rejected,
		PromptTokens: s.promptTokens,
		ResetArmed:   s.resetArmed,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.resetArmed {
		view.ResetDue = s.resetDue
	}
	if s.Draft != nil {
		draft := *s.Draft
		draft.Items = append([]models.LineItemView(nil), s.Draft.Items...)
		view.Draft = &draft
	}
	if s.Recon != nil {
		view.PendingItems = append([]models.PendingItem(nil), s.Recon.PendingItems...)
		view.SavedItemIDs = make([]string, 0, len(s.Recon.SavedItemIDs))
		for _, item := range s.Recon.PendingItems {
			if s.Recon.SavedItemIDs[item.ID] {
				view.SavedItemIDs = append(view.SavedItemIDs, item.ID)
			}
		}
		view.IsCompleted = reconIsCompleted(s)
		view.CanConfirm = reconCanConfirm(s)
	}
	return view
}
