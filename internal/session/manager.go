package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/internal/llm"
	"github.com/thebtf/factura/internal/reconcile"
	"github.com/thebtf/factura/pkg/models"
)

// Manager is the session registry and the only writer of session state.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store        catalog.Store
	model        llm.Client
	systemPrompt string
	counter      *llm.TokenCounter

	// resetDelay holds nanoseconds; it is read when a reset is armed and can
	// be changed at runtime by a settings reload.
	resetDelay atomic.Int64

	now     func() time.Time
	onEvent func(Event)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithEventSink registers a callback for session lifecycle events.
func WithEventSink(sink func(Event)) Option {
	return func(m *Manager) { m.onEvent = sink }
}

// WithTokenCounter enables prompt token accounting.
func WithTokenCounter(counter *llm.TokenCounter) Option {
	return func(m *Manager) { m.counter = counter }
}

// NewManager creates a manager over a catalog store and a model client.
func NewManager(store catalog.Store, model llm.Client, systemPrompt string, resetDelay time.Duration, opts ...Option) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Session),
		store:        store,
		model:        model,
		systemPrompt: systemPrompt,
		now:          time.Now,
	}
	m.resetDelay.Store(int64(resetDelay))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetResetDelay changes the delay used by subsequently armed resets. Already
// armed timers keep their original due time.
func (m *Manager) SetResetDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	m.resetDelay.Store(int64(d))
}

// StartSession creates an idle session seeded with the system prompt.
func (m *Manager) StartSession() string {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Status:    StatusIdle,
		History:   []models.Message{{Role: models.RoleSystem, Content: m.systemPrompt}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Info().Str("session_id", s.ID).Msg("session started")
	return s.ID
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// SubmitRequest runs a fresh invoicing request: catalog fetch, model call,
// parse and first-turn reconcile. A failed call or an invalid reply leaves
// the session exactly as it was, with no dangling user message.
func (m *Manager) SubmitRequest(ctx context.Context, sessionID, businessID, userText string) (*View, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	biz, err := m.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	userMsg, err := llm.BuildUserTurn(userText, m.now(), biz)
	if err != nil {
		return nil, err
	}

	reply, raw, err := m.runTurn(ctx, s, userMsg)
	if err != nil {
		return nil, err
	}

	// Commit the exchange and the reconciled state together.
	s.History = append(s.History,
		models.Message{Role: models.RoleUser, Content: userMsg},
		models.Message{Role: models.RoleAssistant, Content: raw},
	)
	s.BusinessID = businessID
	s.business = biz
	m.commitTurn(s, reply, nil)
	return m.viewLocked(s), nil
}

// SubmitFollowUp runs a refinement turn against the active draft. The
// reconciled item state rides along in the prompt so the model sees user
// edits, and the merge keeps those edits over model re-derivation.
func (m *Manager) SubmitFollowUp(ctx context.Context, sessionID, followUpText string) (*View, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTurn || s.Recon == nil {
		return nil, ErrNoActiveDraft
	}

	userMsg := llm.BuildFollowUp(followUpText, s.Recon.AvailableItems, s.Recon.PendingItems)
	reply, raw, err := m.runTurn(ctx, s, userMsg)
	if err != nil {
		return nil, err
	}

	s.History = append(s.History,
		models.Message{Role: models.RoleUser, Content: userMsg},
		models.Message{Role: models.RoleAssistant, Content: raw},
	)
	m.commitTurn(s, reply, s.Recon)
	return m.viewLocked(s), nil
}

// runTurn performs the model call and parse without mutating the session.
func (m *Manager) runTurn(ctx context.Context, s *Session, userMsg string) (*models.TurnReply, string, error) {
	history := make([]models.Message, len(s.History), len(s.History)+1)
	copy(history, s.History)
	history = append(history, models.Message{Role: models.RoleUser, Content: userMsg})

	raw, err := m.model.Complete(ctx, history)
	if err != nil {
		return nil, "", &ModelCallError{Err: err}
	}

	reply, err := llm.ParseReply(raw)
	if err != nil {
		return nil, "", err
	}
	return reply, raw, nil
}

// commitTurn installs a parsed reply: reconcile, totals, status, events.
func (m *Manager) commitTurn(s *Session, reply *models.TurnReply, prior *reconcile.State) {
	m.disarmResetLocked(s)

	s.Analysis = reply.Analysis
	s.Rejected = reply.Rejected
	s.Draft = reply.Draft
	s.Recon = reconcile.Reconcile(reply.Analysis, prior, s.business)
	s.recompute()

	s.hasTurn = true
	s.Status = StatusReviewingDraft
	s.UpdatedAt = m.now()

	if m.counter != nil {
		s.promptTokens = m.counter.CountHistory(s.History)
	}

	kind := EventTurnCompleted
	if reply.Rejected != nil {
		kind = EventTurnRejected
	}
	m.emit(s.ID, kind)
	log.Info().
		Str("session_id", s.ID).
		Bool("valid_invoice", reply.Analysis.IsValidInvoiceRequest).
		Int("pending_items", len(s.Recon.PendingItems)).
		Msg("turn committed")
}

// recompute refreshes totals and projects them into the draft.
func (s *Session) recompute() {
	s.Totals = reconcile.ComputeTotals(s.Recon.AvailableItems, s.Recon.PendingItems)
	if s.Draft != nil {
		s.Draft.Items = s.Totals.Items
		s.Draft.Subtotal = s.Totals.Subtotal
		s.Draft.Tax = s.Totals.Tax
		s.Draft.TotalDue = s.Totals.TotalDue
	}
}

// ApplyUserEdits overwrites pending item fields and recomputes totals and
// confirmability. Applying the same edits twice yields the same state.
func (m *Manager) ApplyUserEdits(sessionID string, edits []reconcile.ItemEdit) (*View, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTurn || s.Recon == nil {
		return nil, ErrNoActiveDraft
	}

	m.disarmResetLocked(s)
	s.Recon = reconcile.ApplyEdits(s.Recon, edits)
	s.recompute()
	s.UpdatedAt = m.now()
	m.emit(s.ID, EventEditsApplied)
	return m.viewLocked(s), nil
}

// ConfirmDraft commits the reviewed draft. With no pending items the session
// is done and a reset is scheduled; otherwise it moves to awaiting item
// saves and stays there until every item is saved or explicitly discarded.
func (m *Manager) ConfirmDraft(sessionID string) (*ConfirmResult, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTurn || s.Recon == nil {
		return nil, ErrNoActiveDraft
	}
	if !reconcile.CanConfirm(s.Recon, s.Analysis) {
		return nil, ErrNotConfirmable
	}

	if len(s.Recon.PendingItems) == 0 {
		s.Status = StatusConfirmed
		due := m.armResetLocked(s)
		return &ConfirmResult{Confirmed: true, ResetDue: due}, nil
	}

	s.Status = StatusAwaitingItemSaves
	s.UpdatedAt = m.now()
	unsaved := 0
	for _, item := range s.Recon.PendingItems {
		if !s.Recon.SavedItemIDs[item.ID] {
			unsaved++
		}
	}
	return &ConfirmResult{AwaitingSaves: true, UnsavedItems: unsaved}, nil
}

// SaveItem persists one pending item into the business catalog. Saves are
// at-least-once with an idempotent outcome: retries report AlreadySaved, a
// name already in the catalog reports DuplicateInCatalog without inserting.
func (m *Manager) SaveItem(ctx context.Context, sessionID, itemID string) (SaveOutcome, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return SaveOutcomeNotFound, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTurn || s.Recon == nil {
		return SaveOutcomeNotFound, ErrNoActiveDraft
	}

	outcome := m.saveItemLocked(ctx, s, itemID)
	if (outcome == SaveOutcomeSaved || outcome == SaveOutcomeDuplicateInCatalog) && s.Recon.AllSaved() {
		m.armResetLocked(s)
	}
	return outcome, nil
}

func (m *Manager) saveItemLocked(ctx context.Context, s *Session, itemID string) SaveOutcome {
	item, ok := s.Recon.PendingByID(itemID)
	if !ok {
		return SaveOutcomeNotFound
	}
	if s.Recon.SavedItemIDs[itemID] {
		return SaveOutcomeAlreadySaved
	}
	if !item.IsCompleted() {
		return SaveOutcomePersistenceFailure
	}

	unitPrice, _ := item.UnitPrice.Float()
	taxRate, _ := item.TaxRatePercent.Float()
	entry := models.CatalogEntry{
		ItemName:       item.Name.Raw(),
		UnitPrice:      unitPrice,
		TaxRatePercent: taxRate,
	}

	err := m.store.SaveCatalogItem(ctx, s.BusinessID, entry)
	switch {
	case err == nil:
		s.Recon.SavedItemIDs[itemID] = true
		if s.business != nil {
			s.business.Items = append(s.business.Items, entry)
		}
		s.UpdatedAt = m.now()
		m.emit(s.ID, EventItemSaved)
		return SaveOutcomeSaved
	case errors.Is(err, catalog.ErrDuplicateItem):
		// Normal outcome, not a failure; the item needs no further saves.
		s.Recon.SavedItemIDs[itemID] = true
		return SaveOutcomeDuplicateInCatalog
	default:
		log.Error().Err(err).
			Str("session_id", s.ID).
			Str("item", entry.ItemName).
			Msg("catalog save failed")
		return SaveOutcomePersistenceFailure
	}
}

// SaveAll applies SaveItem semantics to every pending item and schedules the
// reset only when nothing failed and everything ended up saved.
func (m *Manager) SaveAll(ctx context.Context, sessionID string) (*SaveAllResult, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTurn || s.Recon == nil {
		return nil, ErrNoActiveDraft
	}

	result := &SaveAllResult{}
	for _, item := range s.Recon.PendingItems {
		switch m.saveItemLocked(ctx, s, item.ID) {
		case SaveOutcomeSaved:
			result.SavedCount++
		case SaveOutcomeAlreadySaved, SaveOutcomeDuplicateInCatalog:
			result.AlreadySavedCount++
		default:
			result.FailedCount++
		}
	}

	if result.FailedCount == 0 && s.Recon.AllSaved() {
		m.armResetLocked(s)
		result.ResetScheduled = true
	}
	return result, nil
}

// CloseItemModal ends the item-save stage. Unsaved items block the close
// unless the caller explicitly discards them.
func (m *Manager) CloseItemModal(sessionID string, discardUnsaved bool) (*ConfirmResult, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTurn || s.Recon == nil {
		return nil, ErrNoActiveDraft
	}

	if !s.Recon.AllSaved() && !discardUnsaved {
		return nil, ErrUnsavedItems
	}

	s.Status = StatusConfirmed
	due := m.armResetLocked(s)
	return &ConfirmResult{Confirmed: true, ResetDue: due}, nil
}

// ResetSession returns the session to idle: fresh system-prompted history,
// no reconciliation, no saved ids, no armed reset.
func (m *Manager) ResetSession(sessionID string) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.resetLocked(s)
	return nil
}

func (m *Manager) resetLocked(s *Session) {
	m.disarmResetLocked(s)
	s.History = []models.Message{{Role: models.RoleSystem, Content: m.systemPrompt}}
	s.Analysis = models.AnalysisResult{}
	s.Draft = nil
	s.Rejected = nil
	s.Recon = nil
	s.Totals = reconcile.Totals{}
	s.business = nil
	s.BusinessID = ""
	s.hasTurn = false
	s.promptTokens = 0
	s.Status = StatusIdle
	s.UpdatedAt = m.now()
	m.emit(s.ID, EventSessionReset)
	log.Info().Str("session_id", s.ID).Msg("session reset")
}

func (m *Manager) emit(sessionID, kind string) {
	if m.onEvent != nil {
		m.onEvent(Event{SessionID: sessionID, Kind: kind, At: m.now()})
	}
}
