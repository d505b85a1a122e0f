package models

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PendingItemProposal is a new-item candidate as proposed by the model.
// Any field may carry the unresolved sentinel; that is legitimate input, not
// a schema violation.
type PendingItemProposal struct {
	Name           Value `json:"name"`
	Quantity       Value `json:"quantity"`
	UnitPrice      Value `json:"unit_price"`
	TaxRatePercent Value `json:"tax_rate"`
}

// AnalysisResult is the typed decode of the model's reasoning block for one
// turn.
type AnalysisResult struct {
	IsValidInvoiceRequest bool                  `json:"is_valid_invoice"`
	HasNewItems           bool                  `json:"has_new_items"`
	AnalysisNarrative     string                `json:"analysis"`
	DecisionNarrative     string                `json:"decisions"`
	CalculationsNarrative string                `json:"calculations"`
	AvailableItems        []KnownItem           `json:"available_items"`
	ProposedNewItems      []PendingItemProposal `json:"new_items"`
}

// NotAnInvoice carries the model's explanation for declining to draft.
type NotAnInvoice struct {
	Reason string `json:"output"`
}

// TurnReply is a fully parsed model reply: the analysis plus either a draft
// or the rejection.
type TurnReply struct {
	Analysis AnalysisResult
	Draft    *InvoiceDraft
	Rejected *NotAnInvoice
}
