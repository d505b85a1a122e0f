// Package session owns the per-conversation state machine: model turns,
// reconciled drafts, item saves and the deferred reset back to idle.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thebtf/factura/internal/reconcile"
	"github.com/thebtf/factura/pkg/models"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusReviewingDraft    Status = "reviewing_draft"
	StatusAwaitingItemSaves Status = "awaiting_item_saves"
	StatusConfirmed         Status = "confirmed"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveDraft is returned when a follow-up, edit or confirm
	// arrives before any successful turn.
	ErrNoActiveDraft = errors.New("no active draft")
	// ErrNotConfirmable is returned when ConfirmDraft is called while the
	// draft is not confirmable.
	ErrNotConfirmable = errors.New("draft is not confirmable")
	// ErrUnsavedItems is returned when the item modal is closed with
	// unsaved items and no explicit discard. Silent discard loses data.
	ErrUnsavedItems = errors.New("unsaved items remain")
)

// ModelCallError wraps a transport, timeout or quota failure from the model
// boundary. The turn is discarded; session state is untouched.
type ModelCallError struct {
	Err error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// SaveOutcome is the per-item result of a catalog save.
type SaveOutcome string

const (
	SaveOutcomeSaved              SaveOutcome = "saved"
	SaveOutcomeAlreadySaved       SaveOutcome = "already_saved"
	SaveOutcomeNotFound           SaveOutcome = "not_found"
	SaveOutcomeDuplicateInCatalog SaveOutcome = "duplicate_in_catalog"
	SaveOutcomePersistenceFailure SaveOutcome = "persistence_failure"
)

// ConfirmResult reports what ConfirmDraft did.
type ConfirmResult struct {
	Confirmed     bool      `json:"confirmed"`
	AwaitingSaves bool      `json:"awaiting_saves"`
	UnsavedItems  int       `json:"unsaved_items"`
	ResetDue      time.Time `json:"reset_due,omitempty"`
}

// SaveAllResult aggregates SaveItem outcomes over every pending item.
type SaveAllResult struct {
	SavedCount        int  `json:"saved_count"`
	AlreadySavedCount int  `json:"already_saved_count"`
	FailedCount       int  `json:"failed_count"`
	ResetScheduled    bool `json:"reset_scheduled"`
}

// Event is a session lifecycle notification for live consumers.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
}

// Event kinds emitted by the manager.
const (
	EventTurnCompleted  = "turn_completed"
	EventTurnRejected   = "turn_rejected"
	EventEditsApplied   = "edits_applied"
	EventItemSaved      = "item_saved"
	EventResetScheduled = "reset_scheduled"
	EventSessionReset   = "session_reset"
)

// Session is one conversation. Operations are serialized by mu; the manager
// holds it across the model call, which is acceptable because the contract is
// one in-flight operation per session.
type Session struct {
	mu sync.Mutex

	ID         string
	BusinessID string
	Status     Status

	History  []models.Message
	Analysis models.AnalysisResult
	Draft    *models.InvoiceDraft
	Rejected *models.NotAnInvoice
	Recon    *reconcile.State
	Totals   reconcile.Totals

	// Catalog snapshot from the last successful request turn.
	business *models.Business

	hasTurn      bool
	promptTokens int

	// Deferred reset: armed flag, due time and a generation counter so a
	// stale timer never fires after the session was reused.
	resetArmed      bool
	resetDue        time.Time
	resetGeneration uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}
