// Package render turns session output into presentable HTML and Markdown.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/thebtf/factura/pkg/models"
)

const invoiceStyles = `<style>
.invoice-container { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 24px; border: 1px solid #ddd; border-radius: 8px; background: #fff; color: #333; }
.invoice-header { display: flex; justify-content: space-between; margin-bottom: 24px; border-bottom: 2px solid #2c3e50; padding-bottom: 16px; }
.invoice-title { margin: 0; color: #2c3e50; }
.invoice-id { font-weight: bold; color: #7f8c8d; }
.contact-info { color: #7f8c8d; font-size: 0.9em; }
.section-title { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 4px; }
.invoice-items { width: 100%; border-collapse: collapse; margin-bottom: 16px; }
.invoice-items th { background: #2c3e50; color: #fff; text-align: left; padding: 8px; }
.invoice-items td { padding: 8px; border-bottom: 1px solid #eee; }
.invoice-total { margin-left: auto; min-width: 240px; }
.invoice-total td { padding: 4px 8px; text-align: right; }
.total-row { font-weight: bold; border-top: 2px solid #2c3e50; }
.payment-terms { margin-top: 16px; color: #555; }
.invoice-notes { margin-top: 8px; font-style: italic; color: #7f8c8d; }
.placeholder { color: #c0392b; font-weight: bold; }
</style>`

const invoiceTemplate = `{{styles}}<div class="invoice-container">
<div class="invoice-header">
<div><h1 class="invoice-title">{{.BusinessName}}</h1>
<p>{{.BusinessAddress}}</p>
<p class="contact-info">{{.BusinessContact}}</p></div>
<div><h2>INVOICE</h2><p class="invoice-id">#{{.InvoiceNumber}}</p>
<p>Date: {{.InvoiceDate}}</p>
<p>Due: {{.DueDate}}</p></div>
</div>
<div class="invoice-details">
<h3 class="section-title">Bill To:</h3>
<p><strong>{{.CustomerName}}</strong></p>
<p>{{.CustomerAddress}}</p>
<p>{{.CustomerContact}}</p>
</div>
<h3 class="section-title">Items</h3>
<table class="invoice-items">
<thead><tr><th>Item Name</th><th>Quantity</th><th>Unit Price</th><th>Tax Rate</th><th>Total</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{value .Quantity}}</td><td>{{price .UnitPrice}}</td><td>{{rate .TaxRatePercent}}</td><td>{{money .TotalPrice}}</td></tr>
{{end}}</tbody>
</table>
<table class="invoice-total">
<tr><td>Subtotal:</td><td>{{money .Subtotal}}</td></tr>
<tr><td>Tax:</td><td>{{money .Tax}}</td></tr>
<tr class="total-row"><td>Total:</td><td>{{money .TotalDue}}</td></tr>
</table>
<div class="payment-terms"><strong>Payment Terms:</strong> {{.PaymentTerms}}</div>
{{if .Notes}}<div class="invoice-notes">{{.Notes}}</div>{{end}}
</div>`

var invoiceTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"styles": func() template.HTML { return template.HTML(invoiceStyles) },
	"value":  formatValue,
	"price":  formatPrice,
	"rate":   formatRate,
	"money":  formatMoney,
}).Parse(invoiceTemplate))

// InvoiceHTML renders a draft as a standalone HTML fragment. Unresolved
// values render as the visible placeholder text.
func InvoiceHTML(draft *models.InvoiceDraft) (string, error) {
	if draft == nil {
		return "<p>The input does not appear to be for an invoice generation request.</p>", nil
	}
	var b strings.Builder
	if err := invoiceTmpl.Execute(&b, draft); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RejectionHTML renders the not-an-invoice explanation.
func RejectionHTML(rejected *models.NotAnInvoice) string {
	reason := "The input does not appear to be for an invoice generation request."
	if rejected != nil && rejected.Reason != "" {
		reason = rejected.Reason
	}
	return "<p>" + template.HTMLEscapeString(reason) + "</p>"
}

func formatValue(v models.Value) template.HTML {
	if !v.IsResolved() {
		return `<span class="placeholder">PLACEHOLDER</span>`
	}
	return template.HTML(template.HTMLEscapeString(v.String()))
}

func formatPrice(v models.Value) template.HTML {
	if f, err := v.Float(); err == nil {
		return template.HTML(fmt.Sprintf("€%.2f", f))
	}
	return formatValue(v)
}

func formatRate(v models.Value) template.HTML {
	if f, err := v.Float(); err == nil {
		return template.HTML(fmt.Sprintf("%g%%", f))
	}
	return formatValue(v)
}

func formatMoney(a models.Amount) template.HTML {
	if !a.Known() {
		return `<span class="placeholder">PLACEHOLDER</span>`
	}
	return template.HTML(fmt.Sprintf("€%.2f", a.Float()))
}
