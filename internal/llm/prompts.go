package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/factura/pkg/models"
)

// builtinSystemPrompt is used when no prompt file is configured. It pins the
// reply contract the parser validates.
const builtinSystemPrompt = `You are an invoice drafting assistant for small businesses.

You receive an invoicing request together with the company record: business
details, the item catalog (name, unit_price, tax_rate) and known customers.

Always answer with a single JSON object of this exact shape:
{
  "reasoning": {
    "is_valid_invoice": <bool>,
    "has_new_items": <bool>,
    "analysis": "<your reading of the request>",
    "decisions": "<which catalog items you matched and why>",
    "calculations": "<line totals, subtotal, tax, total due>",
    "available_items": [
      {"name": "...", "quantity": <int>, "unit_price": <number>, "tax_rate": <number>, "total_price": <number>}
    ],
    "new_items": [
      {"name": "...", "quantity": ..., "unit_price": ..., "tax_rate": ...}
    ]
  },
  "invoice": { ...full invoice... } | {"output": "<why this is not an invoicing request>"}
}

Rules:
- Match requested items against the catalog case-insensitively. Matched items
  go to available_items with catalog prices; never invent a price for them.
- Items absent from the catalog go to new_items. Use the string "PLACEHOLDER"
  for every new-item field the request does not specify. Do not guess.
- The invoice object needs business_name, business_address, business_contact,
  invoice_number, invoice_date, due_date, customer_name, customer_address,
  customer_contact, items, subtotal, tax, total_due and payment_terms. Use
  "PLACEHOLDER" for amounts that depend on unresolved new-item fields.
- If the input is not an invoicing request, set is_valid_invoice to false and
  return {"output": "..."} in the invoice slot instead of an invoice.
- On follow-up turns a CURRENT INVOICE STATE block shows the user's edits.
  Treat those values as authoritative and keep them unless the user asks for
  a change.`

// SystemPrompt returns the prompt text, preferring the configured file.
func SystemPrompt(path string) (string, error) {
	if path == "" {
		return builtinSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load system prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// BuildUserTurn assembles the first user message of a session: the request,
// the current date and the full company record.
func BuildUserTurn(request string, now time.Time, biz *models.Business) (string, error) {
	companyJSON, err := json.MarshalIndent(biz, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nCurrent Date: %s\n\nCompany Info:\n%s",
		request, now.Format("2006-01-02"), companyJSON), nil
}

// BuildFollowUp assembles a follow-up user message: the new instruction plus
// a snapshot of the reconciled item state so the model sees user edits.
func BuildFollowUp(message string, known []models.KnownItem, pending []models.PendingItem) string {
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n")
	b.WriteString("\n=== CURRENT INVOICE STATE ===\n")

	if len(known) > 0 {
		b.WriteString("\nAVAILABLE ITEMS (From company database):\n")
		for i, item := range known {
			fmt.Fprintf(&b, "%d. %s - Qty: %d, Unit Price: €%.2f, Tax Rate: %g%%, Total: €%.2f\n",
				i+1, item.Name, item.Quantity, item.UnitPrice, item.TaxRatePercent, item.TotalPrice)
		}
	}

	if len(pending) > 0 {
		b.WriteString("\nNEW ITEMS TO BE ADDED TO DATABASE (Current state after user edits):\n")
		for i, item := range pending {
			fmt.Fprintf(&b, "%d. %s - Qty: %s, Unit Price: %s, Tax Rate: %s\n",
				i+1, item.Name.String(), item.Quantity.String(),
				item.UnitPrice.String(), item.TaxRatePercent.String())

			var missing []string
			for _, field := range item.Fields() {
				if !field.Value.IsResolved() {
					missing = append(missing, field.Name)
				}
			}
			if len(missing) > 0 {
				fmt.Fprintf(&b, "   -> Still needs: %s\n", strings.Join(missing, ", "))
			} else {
				b.WriteString("   -> All fields completed by user (ready to add to database)\n")
			}
		}
	}

	if len(known) == 0 && len(pending) == 0 {
		b.WriteString("\nNo items currently in the invoice.\n")
	}

	b.WriteString("\n=== END CURRENT STATE ===\n")
	return b.String()
}
