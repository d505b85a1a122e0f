package llm

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/thebtf/factura/pkg/models"
)

// SchemaError reports a model reply that failed contract validation. The
// session keeps the previous draft visible and lets the user retry.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "model reply failed validation: " + strings.Join(e.Problems, "; ")
}

type wireReply struct {
	Reasoning models.AnalysisResult `json:"reasoning"`
	Invoice   json.RawMessage       `json:"invoice"`
}

type wireLineItem struct {
	Name           models.Value  `json:"name"`
	Quantity       models.Value  `json:"quantity"`
	UnitPrice      models.Value  `json:"unit_price"`
	TaxRatePercent models.Value  `json:"tax_rate"`
	TotalPrice     models.Amount `json:"total_price"`
}

type wireInvoice struct {
	BusinessName    string         `json:"business_name"`
	BusinessAddress string         `json:"business_address"`
	BusinessContact string         `json:"business_contact"`
	InvoiceNumber   string         `json:"invoice_number"`
	InvoiceDate     string         `json:"invoice_date"`
	DueDate         string         `json:"due_date"`
	CustomerName    string         `json:"customer_name"`
	CustomerAddress string         `json:"customer_address"`
	CustomerContact string         `json:"customer_contact"`
	Items           []wireLineItem `json:"items"`
	Subtotal        models.Amount  `json:"subtotal"`
	Tax             models.Amount  `json:"tax"`
	TotalDue        models.Amount  `json:"total_due"`
	PaymentTerms    string         `json:"payment_terms"`
	Notes           string         `json:"notes"`
}

// ParseReply validates the raw model output against the reply schema and
// decodes it into a TurnReply. Exactly one of Draft and Rejected is set.
func ParseReply(raw string) (*models.TurnReply, error) {
	result, err := compiledReplySchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		// Not even JSON.
		return nil, &SchemaError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &SchemaError{Problems: problems}
	}

	var wire wireReply
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &SchemaError{Problems: []string{err.Error()}}
	}

	reply := &models.TurnReply{Analysis: wire.Reasoning}

	// The invoice slot is a variant: a draft or the rejection object.
	var probe struct {
		Output *string `json:"output"`
	}
	if err := json.Unmarshal(wire.Invoice, &probe); err != nil {
		return nil, &SchemaError{Problems: []string{err.Error()}}
	}
	if probe.Output != nil {
		reply.Rejected = &models.NotAnInvoice{Reason: *probe.Output}
		return reply, nil
	}

	var inv wireInvoice
	if err := json.Unmarshal(wire.Invoice, &inv); err != nil {
		return nil, &SchemaError{Problems: []string{fmt.Sprintf("decode invoice: %v", err)}}
	}
	reply.Draft = inv.toDraft()
	return reply, nil
}

func (w *wireInvoice) toDraft() *models.InvoiceDraft {
	draft := &models.InvoiceDraft{
		BusinessName:    w.BusinessName,
		BusinessAddress: w.BusinessAddress,
		BusinessContact: w.BusinessContact,
		InvoiceNumber:   w.InvoiceNumber,
		InvoiceDate:     w.InvoiceDate,
		DueDate:         w.DueDate,
		CustomerName:    w.CustomerName,
		CustomerAddress: w.CustomerAddress,
		CustomerContact: w.CustomerContact,
		Subtotal:        w.Subtotal,
		Tax:             w.Tax,
		TotalDue:        w.TotalDue,
		PaymentTerms:    w.PaymentTerms,
		Notes:           w.Notes,
	}
	for _, item := range w.Items {
		draft.Items = append(draft.Items, models.LineItemView{
			Name:           item.Name.String(),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TaxRatePercent: item.TaxRatePercent,
			TotalPrice:     item.TotalPrice,
		})
	}
	return draft
}
