package reconcile

import (
	"github.com/google/uuid"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/pkg/models"
)

// Reconcile folds a model turn into the item state. The model's partition is
// authoritative for membership: available items are replaced wholesale and
// pending items absent from the new proposal are dropped. Field values of
// surviving pending items merge with edit preservation, and a deterministic
// catalog cross-check promotes misclassified "new" items the catalog actually
// knows. biz may be nil when no catalog snapshot is at hand.
func Reconcile(proposal models.AnalysisResult, prior *State, biz *models.Business) *State {
	next := NewState()
	next.AvailableItems = append(next.AvailableItems, proposal.AvailableItems...)

	for _, proposed := range proposal.ProposedNewItems {
		item := models.PendingItem{
			ID:             uuid.NewString(),
			Name:           proposed.Name,
			Quantity:       proposed.Quantity,
			UnitPrice:      proposed.UnitPrice,
			TaxRatePercent: proposed.TaxRatePercent,
			IsNew:          true,
		}
		if prior != nil {
			if match := matchPrior(prior, proposed.Name); match != nil {
				item.ID = match.ID
				item.Name = mergeField(match.Name, proposed.Name)
				item.Quantity = mergeField(match.Quantity, proposed.Quantity)
				item.UnitPrice = mergeField(match.UnitPrice, proposed.UnitPrice)
				item.TaxRatePercent = mergeField(match.TaxRatePercent, proposed.TaxRatePercent)
			}
		}

		if promoted, ok := promote(&item, biz); ok {
			next.AvailableItems = append(next.AvailableItems, promoted)
			continue
		}
		next.PendingItems = append(next.PendingItems, item)
	}

	if prior != nil {
		// Save status carries over; entries for dropped items go with them.
		for _, item := range next.PendingItems {
			if prior.SavedItemIDs[item.ID] {
				next.SavedItemIDs[item.ID] = true
			}
		}
	}
	return next
}

// matchPrior finds a prior pending item by normalized name. Items whose prior
// name is itself unresolved never match.
func matchPrior(prior *State, name models.Value) *models.PendingItem {
	if !name.IsResolved() {
		return nil
	}
	key := catalog.NameKey(name.Raw())
	for i := range prior.PendingItems {
		p := &prior.PendingItems[i]
		if p.Name.IsResolved() && catalog.NameKey(p.Name.Raw()) == key {
			return p
		}
	}
	return nil
}

// mergeField keeps the prior value when it is resolved and differs from the
// proposal: a resolved differing prior value is a user edit, and user edits
// outrank model re-derivation.
func mergeField(prior, proposed models.Value) models.Value {
	if prior.IsResolved() && !prior.Equal(proposed) {
		return prior
	}
	return proposed
}

// promote cross-checks a merged pending item against the catalog. A matched
// name fills unresolved price fields from the catalog entry; if quantity is
// also resolved the item graduates to the available set with its merged
// values. Unresolved fields the catalog cannot supply keep the item pending.
func promote(item *models.PendingItem, biz *models.Business) (models.KnownItem, bool) {
	if biz == nil || !item.Name.IsResolved() {
		return models.KnownItem{}, false
	}
	entry, ok := catalog.FindEntry(biz, item.Name.Raw())
	if !ok {
		return models.KnownItem{}, false
	}

	if !item.UnitPrice.IsResolved() {
		item.UnitPrice = models.NumberValue(entry.UnitPrice)
	}
	if !item.TaxRatePercent.IsResolved() {
		item.TaxRatePercent = models.NumberValue(entry.TaxRatePercent)
	}
	if !item.IsCompleted() {
		return models.KnownItem{}, false
	}

	qty, _ := item.Quantity.Int()
	unitPrice, _ := item.UnitPrice.Float()
	taxRate, _ := item.TaxRatePercent.Float()
	return models.KnownItem{
		Name:           entry.ItemName,
		Quantity:       qty,
		UnitPrice:      unitPrice,
		TaxRatePercent: taxRate,
		TotalPrice:     float64(qty) * unitPrice,
	}, true
}

// ItemEdit is one user edit: raw field text keyed by the wire field names.
// An empty string clears the field back to unresolved.
type ItemEdit struct {
	ID     string
	Fields map[string]string
}

// ApplyEdits overwrites the named fields of existing pending items and
// returns the new state. Unknown ids and unknown field names are ignored.
// Applying the same edits twice yields the same state.
func ApplyEdits(state *State, edits []ItemEdit) *State {
	next := state.Clone()
	for _, edit := range edits {
		item, ok := next.PendingByID(edit.ID)
		if !ok {
			continue
		}
		for field, raw := range edit.Fields {
			value := models.NewValue(raw)
			switch field {
			case "name":
				item.Name = value
			case "quantity":
				item.Quantity = value
			case "unit_price":
				item.UnitPrice = value
			case "tax_rate":
				item.TaxRatePercent = value
			}
		}
	}
	return next
}

// IsCompleted reports whether the state has no unresolved pending fields.
func IsCompleted(state *State) bool {
	for i := range state.PendingItems {
		if !state.PendingItems[i].IsCompleted() {
			return false
		}
	}
	return true
}

// CanConfirm reports whether the draft can be committed: the turn was a real
// invoicing request and every pending item is complete.
func CanConfirm(state *State, analysis models.AnalysisResult) bool {
	return analysis.IsValidInvoiceRequest && IsCompleted(state)
}
