package reconcile

import (
	"github.com/thebtf/factura/pkg/models"
)

// Totals is the recomputed money view of the current item state.
type Totals struct {
	Items    []models.LineItemView
	Subtotal models.Amount
	Tax      models.Amount
	TotalDue models.Amount
}

// ComputeTotals recomputes line items and aggregates. Available items are
// fully resolved by construction. Pending items are coerced field by field;
// one unresolved field anywhere poisons all three aggregates, because a
// partial total would mislead the user into sending an understated invoice.
// Per-line totals are still shown where they can be computed.
func ComputeTotals(available []models.KnownItem, pending []models.PendingItem) Totals {
	var out Totals
	subtotal := 0.0
	tax := 0.0
	poisoned := false

	for _, item := range available {
		out.Items = append(out.Items, models.LineItemView{
			Name:           item.Name,
			Quantity:       models.IntValue(item.Quantity),
			UnitPrice:      models.NumberValue(item.UnitPrice),
			TaxRatePercent: models.NumberValue(item.TaxRatePercent),
			TotalPrice:     models.KnownAmount(item.TotalPrice),
		})
		subtotal += item.TotalPrice
		tax += item.TotalPrice * item.TaxRatePercent / 100
	}

	for _, item := range pending {
		view := models.LineItemView{
			Name:           item.Name.String(),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TaxRatePercent: item.TaxRatePercent,
			TotalPrice:     models.UnknownAmount(),
			IsNew:          true,
		}

		qty, qtyErr := item.Quantity.Int()
		unitPrice, priceErr := item.UnitPrice.Float()
		taxRate, taxErr := item.TaxRatePercent.Float()

		if qtyErr == nil && priceErr == nil {
			view.TotalPrice = models.KnownAmount(float64(qty) * unitPrice)
		}
		out.Items = append(out.Items, view)

		if poisoned {
			continue
		}
		if !item.Name.IsResolved() || qtyErr != nil || priceErr != nil || taxErr != nil {
			poisoned = true
			continue
		}

		lineTotal := float64(qty) * unitPrice
		subtotal += lineTotal
		tax += lineTotal * taxRate / 100
	}

	if poisoned {
		out.Subtotal = models.UnknownAmount()
		out.Tax = models.UnknownAmount()
		out.TotalDue = models.UnknownAmount()
		return out
	}
	out.Subtotal = models.KnownAmount(subtotal)
	out.Tax = models.KnownAmount(tax)
	out.TotalDue = models.KnownAmount(subtotal + tax)
	return out
}
