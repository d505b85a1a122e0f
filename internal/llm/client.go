// Package llm is the model boundary: prompt assembly, the chat completion
// call and the schema-validated decode of the structured reply.
package llm

import (
	"context"

	"github.com/thebtf/factura/pkg/models"
)

// Client produces one raw model reply for a conversation history. The first
// history entry is expected to be the system prompt.
type Client interface {
	Complete(ctx context.Context, history []models.Message) (string, error)
}
