package models

// KnownItem is a line item matched against the business catalog. Every field
// is resolved; totalPrice excludes tax, which is aggregated separately.
type KnownItem struct {
	Name           string  `json:"name"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	TaxRatePercent float64 `json:"tax_rate"`
	TotalPrice     float64 `json:"total_price"`
}

// PendingItem is a line item the model could not match against the catalog.
// Its identity is assigned once, on first sight of the proposal, and stays
// stable across follow-up turns so user edits and save tracking keep working.
type PendingItem struct {
	ID             string `json:"id"`
	Name           Value  `json:"name"`
	Quantity       Value  `json:"quantity"`
	UnitPrice      Value  `json:"unit_price"`
	TaxRatePercent Value  `json:"tax_rate"`
	TotalPrice     Amount `json:"total_price"`
	IsNew          bool   `json:"is_new_item"`
}

// Field pairs an editable field's wire name with its current value.
type Field struct {
	Name  string
	Value Value
}

// Fields returns the user-editable fields in their canonical order.
func (p *PendingItem) Fields() []Field {
	return []Field{
		{"name", p.Name},
		{"quantity", p.Quantity},
		{"unit_price", p.UnitPrice},
		{"tax_rate", p.TaxRatePercent},
	}
}

// IsCompleted reports whether every editable field is resolved and the
// numeric fields coerce cleanly: quantity to an integer, unit price and tax
// rate to decimals.
func (p *PendingItem) IsCompleted() bool {
	if !p.Name.IsResolved() || !p.Quantity.IsResolved() ||
		!p.UnitPrice.IsResolved() || !p.TaxRatePercent.IsResolved() {
		return false
	}
	if _, err := p.Quantity.Int(); err != nil {
		return false
	}
	if _, err := p.UnitPrice.Float(); err != nil {
		return false
	}
	if _, err := p.TaxRatePercent.Float(); err != nil {
		return false
	}
	return true
}

// LineItemView is a render-ready row combining known and pending items.
type LineItemView struct {
	Name           string `json:"name"`
	Quantity       Value  `json:"quantity"`
	UnitPrice      Value  `json:"unit_price"`
	TaxRatePercent Value  `json:"tax_rate"`
	TotalPrice     Amount `json:"total_price"`
	IsNew          bool   `json:"is_new_item,omitempty"`
}

// InvoiceDraft is the reviewable invoice: header fields from the model plus
// the reconciled items and recomputed totals.
type InvoiceDraft struct {
	BusinessName    string         `json:"business_name"`
	BusinessAddress string         `json:"business_address"`
	BusinessContact string         `json:"business_contact"`
	InvoiceNumber   string         `json:"invoice_number"`
	InvoiceDate     string         `json:"invoice_date"`
	DueDate         string         `json:"due_date"`
	CustomerName    string         `json:"customer_name"`
	CustomerAddress string         `json:"customer_address"`
	CustomerContact string         `json:"customer_contact"`
	Items           []LineItemView `json:"items"`
	Subtotal        Amount         `json:"subtotal"`
	Tax             Amount         `json:"tax"`
	TotalDue        Amount         `json:"total_due"`
	PaymentTerms    string         `json:"payment_terms"`
	Notes           string         `json:"notes,omitempty"`
}

// CatalogEntry is a persisted catalog item, keyed within a business by
// case-insensitive trimmed name.
type CatalogEntry struct {
	ItemName       string  `json:"item_name"`
	UnitPrice      float64 `json:"unit_price"`
	TaxRatePercent float64 `json:"tax_rate"`
}

// Customer is a known customer of a business.
type Customer struct {
	Name    string `json:"customer_name"`
	Address string `json:"customer_address"`
	Contact string `json:"customer_contact"`
}

// BusinessInfo is the header data of a business record.
type BusinessInfo struct {
	Name    string `json:"business_name"`
	Address string `json:"business_address"`
	Contact string `json:"business_contact"`
}

// Business is a full catalog record for one business id.
type Business struct {
	Info      BusinessInfo   `json:"business_info"`
	Items     []CatalogEntry `json:"item_list"`
	Customers []Customer     `json:"customer_list"`
}
