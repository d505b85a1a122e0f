package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/factura/pkg/models"
)

func sampleDraft() *models.InvoiceDraft {
	return &models.InvoiceDraft{
		BusinessName:    "Tech Solutions Inc.",
		BusinessAddress: "123 Innovation Drive",
		BusinessContact: "contact@techsolutions.example",
		InvoiceNumber:   "INV-2026001",
		InvoiceDate:     "2026-08-25",
		DueDate:         "2026-09-08",
		CustomerName:    "Acme Corp",
		CustomerAddress: "1 Acme Way",
		CustomerContact: "billing@acme.example",
		Items: []models.LineItemView{
			{
				Name:           "watches",
				Quantity:       models.IntValue(2),
				UnitPrice:      models.NumberValue(100),
				TaxRatePercent: models.NumberValue(10),
				TotalPrice:     models.KnownAmount(200),
			},
			{
				Name:           "drones",
				Quantity:       models.IntValue(3),
				UnitPrice:      models.Unresolved(),
				TaxRatePercent: models.Unresolved(),
				TotalPrice:     models.UnknownAmount(),
				IsNew:          true,
			},
		},
		Subtotal:     models.UnknownAmount(),
		Tax:          models.UnknownAmount(),
		TotalDue:     models.UnknownAmount(),
		PaymentTerms: "Net 14 days",
		Notes:        "Thank you for your business!",
	}
}

// TestInvoiceHTML tests the full invoice rendering with placeholders.
func TestInvoiceHTML(t *testing.T) {
	html, err := InvoiceHTML(sampleDraft())
	require.NoError(t, err)

	assert.Contains(t, html, "Tech Solutions Inc.")
	assert.Contains(t, html, "#INV-2026001")
	assert.Contains(t, html, "Bill To:")
	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "€100.00")
	assert.Contains(t, html, "€200.00")
	assert.Contains(t, html, "10%")
	assert.Contains(t, html, `<span class="placeholder">PLACEHOLDER</span>`)
	assert.Contains(t, html, "Net 14 days")
	assert.Contains(t, html, "Thank you for your business!")
}

// TestInvoiceHTMLEscapes tests that user-controlled text cannot inject markup.
func TestInvoiceHTMLEscapes(t *testing.T) {
	draft := sampleDraft()
	draft.CustomerName = "<script>alert(1)</script>"

	html, err := InvoiceHTML(draft)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

// TestInvoiceHTMLNilDraft tests the fallback message.
func TestInvoiceHTMLNilDraft(t *testing.T) {
	html, err := InvoiceHTML(nil)
	require.NoError(t, err)
	assert.Contains(t, html, "does not appear to be for an invoice")
}

// TestRejectionHTML tests rendering of the model's refusal.
func TestRejectionHTML(t *testing.T) {
	html := RejectionHTML(&models.NotAnInvoice{Reason: "INPUT IS NOT FOR A INVOICE"})
	assert.Contains(t, html, "INPUT IS NOT FOR A INVOICE")

	html = RejectionHTML(nil)
	assert.Contains(t, html, "does not appear to be")
}

// TestBusinessMarkdown tests the company panel.
func TestBusinessMarkdown(t *testing.T) {
	biz := &models.Business{
		Info: models.BusinessInfo{Name: "Tech Solutions Inc.", Address: "123 Innovation Drive"},
		Items: []models.CatalogEntry{
			{ItemName: "watches", UnitPrice: 100, TaxRatePercent: 10},
		},
		Customers: []models.Customer{{Name: "Acme Corp"}},
	}

	md := BusinessMarkdown(biz)
	assert.Contains(t, md, "#### Business Details")
	assert.Contains(t, md, "**Name**: Tech Solutions Inc.")
	assert.Contains(t, md, "**Contact**: N/A")
	assert.Contains(t, md, "| watches | €100.00 | 10% |")
	assert.Contains(t, md, "**Customer 1**: Acme Corp")

	assert.Equal(t, "### Company does not exist", BusinessMarkdown(nil))
}

// TestItemsMarkdownTable tests line item tables with unresolved fields.
func TestItemsMarkdownTable(t *testing.T) {
	md := ItemsMarkdownTable(sampleDraft().Items)
	assert.Contains(t, md, "| watches | 2 | €100.00 | 10% | €200.00 |")
	assert.Contains(t, md, "| drones | 3 | PLACEHOLDER | PLACEHOLDER | PLACEHOLDER |")

	assert.Equal(t, "No relevant items found.", ItemsMarkdownTable(nil))
}

// TestReasoningMarkdown tests the narratives block.
func TestReasoningMarkdown(t *testing.T) {
	analysis := models.AnalysisResult{
		AnalysisNarrative:     "Two catalog items matched.",
		DecisionNarrative:     "Watches taken from the catalog.",
		CalculationsNarrative: "2 x 100 = 200.",
		AvailableItems: []models.KnownItem{
			{Name: "watches", Quantity: 2, UnitPrice: 100, TaxRatePercent: 10, TotalPrice: 200},
		},
	}

	md := ReasoningMarkdown(analysis, "Turn 1")
	assert.Contains(t, md, "### Turn 1")
	assert.Contains(t, md, "#### Analysis")
	assert.Contains(t, md, "Two catalog items matched.")
	assert.Contains(t, md, "**Relevant Items:**")
	assert.Contains(t, md, "| watches | 2 |")
	assert.Contains(t, md, "#### Decisions")
	assert.Contains(t, md, "#### Calculations")
}
