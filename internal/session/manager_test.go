package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/internal/llm"
	"github.com/thebtf/factura/internal/reconcile"
	"github.com/thebtf/factura/pkg/models"
)

type scriptedReply struct {
	raw string
	err error
}

// fakeModel pops scripted replies and records every history it was called
// with, so tests can assert on prompt contents and at-most-once appends.
type fakeModel struct {
	queue []scriptedReply
	calls [][]models.Message
}

func (f *fakeModel) push(raw string) { f.queue = append(f.queue, scriptedReply{raw: raw}) }
func (f *fakeModel) pushErr(err error) {
	f.queue = append(f.queue, scriptedReply{err: err})
}

func (f *fakeModel) Complete(_ context.Context, history []models.Message) (string, error) {
	f.calls = append(f.calls, append([]models.Message(nil), history...))
	if len(f.queue) == 0 {
		return "", errors.New("no scripted reply")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.raw, next.err
}

// replyJSON builds a schema-valid model reply. unitPrice and taxRate are raw
// JSON for the proposed new item fields, so tests can script numbers or the
// placeholder token.
func replyJSON(newItemPrice, newItemTax string) string {
	return fmt.Sprintf(`{
	  "reasoning": {
	    "is_valid_invoice": true,
	    "has_new_items": true,
	    "analysis": "2 watches and 3 drones for Acme.",
	    "decisions": "Watches matched the catalog, drones did not.",
	    "calculations": "2 x 100 = 200 plus tax.",
	    "available_items": [
	      {"name": "watches", "quantity": 2, "unit_price": 100, "tax_rate": 10, "total_price": 200}
	    ],
	    "new_items": [
	      {"name": "drones", "quantity": 3, "unit_price": %s, "tax_rate": %s}
	    ]
	  },
	  "invoice": {
	    "business_name": "Tech Solutions Inc.",
	    "business_address": "123 Innovation Drive",
	    "business_contact": "contact@techsolutions.example",
	    "invoice_number": "INV-2026001",
	    "invoice_date": "2026-08-25",
	    "due_date": "2026-09-08",
	    "customer_name": "Acme Corp",
	    "customer_address": "1 Acme Way",
	    "customer_contact": "billing@acme.example",
	    "items": [],
	    "subtotal": "PLACEHOLDER",
	    "tax": "PLACEHOLDER",
	    "total_due": "PLACEHOLDER",
	    "payment_terms": "Net 14 days"
	  }
	}`, newItemPrice, newItemTax)
}

const rejectionJSON = `{
  "reasoning": {
    "is_valid_invoice": false,
    "has_new_items": false,
    "analysis": "Weather is not billable.",
    "decisions": "Nothing to invoice.",
    "calculations": "None."
  },
  "invoice": {"output": "INPUT IS NOT FOR A INVOICE"}
}`

type ManagerSuite struct {
	suite.Suite
	store *catalog.MemoryStore
	model *fakeModel
	mgr   *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.store = catalog.NewMemoryStore()
	s.Require().NoError(s.store.ImportBusiness(context.Background(), "biz-1", &models.Business{
		Info: models.BusinessInfo{
			Name:    "Tech Solutions Inc.",
			Address: "123 Innovation Drive",
			Contact: "contact@techsolutions.example",
		},
		Items: []models.CatalogEntry{
			{ItemName: "watches", UnitPrice: 100, TaxRatePercent: 10},
		},
	}))

	s.model = &fakeModel{}
	s.mgr = NewManager(s.store, s.model, "you draft invoices", 30*time.Millisecond)
}

// startReviewing runs one successful request turn and returns the session id
// and the pending drone item's id.
func (s *ManagerSuite) startReviewing() (string, string) {
	s.model.push(replyJSON(`"PLACEHOLDER"`, `"PLACEHOLDER"`))
	id := s.mgr.StartSession()
	view, err := s.mgr.SubmitRequest(context.Background(), id, "biz-1", "sell 2 watches and 3 drones to acme")
	s.Require().NoError(err)
	s.Require().Len(view.PendingItems, 1)
	return id, view.PendingItems[0].ID
}

func (s *ManagerSuite) TestStartSession() {
	id := s.mgr.StartSession()
	view, err := s.mgr.GetView(id)
	s.Require().NoError(err)
	s.Equal(StatusIdle, view.Status)
	s.False(view.CanConfirm)

	_, err = s.mgr.GetView("nope")
	s.ErrorIs(err, ErrSessionNotFound)
}

func (s *ManagerSuite) TestSubmitRequest() {
	sessionID, _ := s.startReviewing()

	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)
	s.Equal(StatusReviewingDraft, view.Status)
	s.True(view.Analysis.IsValidInvoiceRequest)
	s.Require().NotNil(view.Draft)
	s.Equal("INV-2026001", view.Draft.InvoiceNumber)

	// One unresolved drone poisons every aggregate.
	s.False(view.IsCompleted)
	s.False(view.CanConfirm)
	s.False(view.Draft.Subtotal.Known())
	s.False(view.Draft.TotalDue.Known())

	// The prompt carried the date and the catalog snapshot.
	s.Require().Len(s.model.calls, 1)
	prompt := s.model.calls[0][len(s.model.calls[0])-1].Content
	s.Contains(prompt, "Current Date:")
	s.Contains(prompt, "watches")
}

func (s *ManagerSuite) TestSubmitRequestUnknownBusiness() {
	id := s.mgr.StartSession()
	_, err := s.mgr.SubmitRequest(context.Background(), id, "nope", "sell things")
	s.ErrorIs(err, catalog.ErrUnknownBusiness)

	view, err := s.mgr.GetView(id)
	s.Require().NoError(err)
	s.Equal(StatusIdle, view.Status)
	s.Empty(s.model.calls)
}

func (s *ManagerSuite) TestModelFailureLeavesSessionUntouched() {
	id := s.mgr.StartSession()
	s.model.pushErr(errors.New("gateway timeout"))

	_, err := s.mgr.SubmitRequest(context.Background(), id, "biz-1", "sell 2 watches")
	var modelErr *ModelCallError
	s.ErrorAs(err, &modelErr)

	// No dangling user message: the failed exchange is not committed.
	view, err := s.mgr.GetView(id)
	s.Require().NoError(err)
	s.Equal(StatusIdle, view.Status)
	s.Nil(view.Draft)
}

func (s *ManagerSuite) TestSchemaFailureLeavesPriorDraft() {
	sessionID, _ := s.startReviewing()

	s.model.push(`{"unexpected": true}`)
	_, err := s.mgr.SubmitFollowUp(context.Background(), sessionID, "add a gimbal")
	var schemaErr *llm.SchemaError
	s.ErrorAs(err, &schemaErr)

	// Prior draft still visible, retry possible.
	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)
	s.Equal(StatusReviewingDraft, view.Status)
	s.NotNil(view.Draft)
	s.Len(view.PendingItems, 1)
}

func (s *ManagerSuite) TestFollowUpRequiresDraft() {
	id := s.mgr.StartSession()
	_, err := s.mgr.SubmitFollowUp(context.Background(), id, "make it cheaper")
	s.ErrorIs(err, ErrNoActiveDraft)

	_, err = s.mgr.ApplyUserEdits(id, nil)
	s.ErrorIs(err, ErrNoActiveDraft)

	_, err = s.mgr.ConfirmDraft(id)
	s.ErrorIs(err, ErrNoActiveDraft)
}

func (s *ManagerSuite) TestApplyUserEdits() {
	sessionID, itemID := s.startReviewing()

	edits := []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}}
	view, err := s.mgr.ApplyUserEdits(sessionID, edits)
	s.Require().NoError(err)

	s.True(view.IsCompleted)
	s.True(view.CanConfirm)
	s.Require().NotNil(view.Draft)
	s.Require().True(view.Draft.Subtotal.Known())
	// 2 watches at 100 plus 3 drones at 50.
	s.Equal(350.0, view.Draft.Subtotal.Float())
	s.Equal(35.0, view.Draft.Tax.Float())
	s.Equal(385.0, view.Draft.TotalDue.Float())

	// Idempotent: same edits, same state.
	again, err := s.mgr.ApplyUserEdits(sessionID, edits)
	s.Require().NoError(err)
	s.Equal(view.PendingItems, again.PendingItems)
	s.Equal(view.Draft.TotalDue, again.Draft.TotalDue)
}

func (s *ManagerSuite) TestFollowUpPreservesUserEdit() {
	sessionID, itemID := s.startReviewing()

	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	// The model re-proposes the drone at a different price.
	s.model.push(replyJSON("55", "12"))
	view, err := s.mgr.SubmitFollowUp(context.Background(), sessionID, "keep everything")
	s.Require().NoError(err)

	s.Require().Len(view.PendingItems, 1)
	merged := view.PendingItems[0]
	s.Equal(itemID, merged.ID)
	price, err := merged.UnitPrice.Float()
	s.Require().NoError(err)
	s.Equal(50.0, price)

	// The follow-up prompt carried the edited state.
	prompt := s.model.calls[1][len(s.model.calls[1])-1].Content
	s.Contains(prompt, "=== CURRENT INVOICE STATE ===")
	s.Contains(prompt, "drones")
}

func (s *ManagerSuite) TestRejectedTurn() {
	s.model.push(rejectionJSON)
	id := s.mgr.StartSession()

	view, err := s.mgr.SubmitRequest(context.Background(), id, "biz-1", "what's the weather")
	s.Require().NoError(err)

	s.Require().NotNil(view.Rejected)
	s.Equal("INPUT IS NOT FOR A INVOICE", view.Rejected.Reason)
	s.Nil(view.Draft)
	s.False(view.Analysis.IsValidInvoiceRequest)
	s.False(view.CanConfirm)

	_, err = s.mgr.ConfirmDraft(id)
	s.ErrorIs(err, ErrNotConfirmable)
}

func (s *ManagerSuite) TestConfirmWithPendingItems() {
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	result, err := s.mgr.ConfirmDraft(sessionID)
	s.Require().NoError(err)
	s.False(result.Confirmed)
	s.True(result.AwaitingSaves)
	s.Equal(1, result.UnsavedItems)

	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)
	s.Equal(StatusAwaitingItemSaves, view.Status)
}

func (s *ManagerSuite) TestSaveItemIdempotent() {
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	outcome, err := s.mgr.SaveItem(context.Background(), sessionID, itemID)
	s.Require().NoError(err)
	s.Equal(SaveOutcomeSaved, outcome)

	outcome, err = s.mgr.SaveItem(context.Background(), sessionID, itemID)
	s.Require().NoError(err)
	s.Equal(SaveOutcomeAlreadySaved, outcome)

	// Exactly one catalog entry for the item name.
	biz, err := s.store.GetBusiness(context.Background(), "biz-1")
	s.Require().NoError(err)
	count := 0
	for _, entry := range biz.Items {
		if catalog.NameKey(entry.ItemName) == "drones" {
			count++
		}
	}
	s.Equal(1, count)
}

func (s *ManagerSuite) TestSaveItemDuplicateInCatalog() {
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	// Another writer beat this session to the save.
	s.Require().NoError(s.store.SaveCatalogItem(context.Background(), "biz-1",
		models.CatalogEntry{ItemName: " Drones ", UnitPrice: 60, TaxRatePercent: 10}))

	outcome, err := s.mgr.SaveItem(context.Background(), sessionID, itemID)
	s.Require().NoError(err)
	s.Equal(SaveOutcomeDuplicateInCatalog, outcome)

	biz, err := s.store.GetBusiness(context.Background(), "biz-1")
	s.Require().NoError(err)
	s.Len(biz.Items, 2)
}

func (s *ManagerSuite) TestSaveItemNotFound() {
	sessionID, _ := s.startReviewing()
	outcome, err := s.mgr.SaveItem(context.Background(), sessionID, "ghost")
	s.Require().NoError(err)
	s.Equal(SaveOutcomeNotFound, outcome)
}

func (s *ManagerSuite) TestSaveAllSchedulesReset() {
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	result, err := s.mgr.SaveAll(context.Background(), sessionID)
	s.Require().NoError(err)
	s.Equal(1, result.SavedCount)
	s.Zero(result.FailedCount)
	s.True(result.ResetScheduled)

	s.Require().Eventually(func() bool {
		view, err := s.mgr.GetView(sessionID)
		return err == nil && view.Status == StatusIdle
	}, time.Second, 5*time.Millisecond)

	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)
	s.Nil(view.Draft)
	s.Empty(view.PendingItems)
}

func (s *ManagerSuite) TestCloseItemModalRequiresDiscard() {
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	_, err = s.mgr.CloseItemModal(sessionID, false)
	s.ErrorIs(err, ErrUnsavedItems)

	result, err := s.mgr.CloseItemModal(sessionID, true)
	s.Require().NoError(err)
	s.True(result.Confirmed)

	// The discarded item never reached the catalog.
	biz, err := s.store.GetBusiness(context.Background(), "biz-1")
	s.Require().NoError(err)
	s.Len(biz.Items, 1)
}

func (s *ManagerSuite) TestResetDisarmedByReuse() {
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	_, err = s.mgr.CloseItemModal(sessionID, true)
	s.Require().NoError(err)

	// The session is reused before the timer fires; the reset must not.
	s.model.push(replyJSON("20", "10"))
	_, err = s.mgr.SubmitRequest(context.Background(), sessionID, "biz-1", "sell 1 drone")
	s.Require().NoError(err)

	time.Sleep(80 * time.Millisecond)
	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)
	s.Equal(StatusReviewingDraft, view.Status)
	s.NotNil(view.Draft)
}

func (s *ManagerSuite) TestSetResetDelayTakesEffect() {
	// Built with a delay far beyond the test horizon; the runtime update must
	// govern the reset armed afterwards.
	s.mgr = NewManager(s.store, s.model, "you draft invoices", time.Hour)
	sessionID, itemID := s.startReviewing()
	_, err := s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	s.mgr.SetResetDelay(25 * time.Millisecond)
	result, err := s.mgr.SaveAll(context.Background(), sessionID)
	s.Require().NoError(err)
	s.True(result.ResetScheduled)

	s.Require().Eventually(func() bool {
		view, err := s.mgr.GetView(sessionID)
		return err == nil && view.Status == StatusIdle
	}, time.Second, 5*time.Millisecond)
}

func (s *ManagerSuite) TestResetSession() {
	sessionID, _ := s.startReviewing()
	s.Require().NoError(s.mgr.ResetSession(sessionID))

	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)
	s.Equal(StatusIdle, view.Status)
	s.Nil(view.Draft)
	s.Empty(view.PendingItems)
	s.False(view.ResetArmed)
}

func (s *ManagerSuite) TestViewSerializes() {
	sessionID, _ := s.startReviewing()
	view, err := s.mgr.GetView(sessionID)
	s.Require().NoError(err)

	data, err := json.Marshal(view)
	s.Require().NoError(err)
	s.Contains(string(data), `"status":"reviewing_draft"`)
	s.Contains(string(data), `"PLACEHOLDER"`)
}

func (s *ManagerSuite) TestCompletionStatus() {
	sessionID, itemID := s.startReviewing()

	status, err := s.mgr.GetCompletionStatus(sessionID)
	s.Require().NoError(err)
	s.False(status.IsCompleted)
	s.Equal(1, status.PendingItems)

	_, err = s.mgr.ApplyUserEdits(sessionID, []reconcile.ItemEdit{{
		ID:     itemID,
		Fields: map[string]string{"unit_price": "50", "tax_rate": "10"},
	}})
	s.Require().NoError(err)

	status, err = s.mgr.GetCompletionStatus(sessionID)
	s.Require().NoError(err)
	s.True(status.IsCompleted)
	s.True(status.CanConfirm)
}
