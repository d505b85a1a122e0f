package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/thebtf/factura/internal/config"
	"github.com/thebtf/factura/pkg/models"
)

// LangChainClient is the production Client over an OpenAI-compatible chat
// endpoint. JSON mode is always requested; the parser enforces the shape.
type LangChainClient struct {
	model llms.Model
}

// NewLangChainClient builds a client from the configuration. The API key is
// read from OPENAI_API_KEY only.
func NewLangChainClient(cfg *config.Config) (*LangChainClient, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.ModelBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.ModelBaseURL))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		opts = append(opts, openai.WithToken(key))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init model client: %w", err)
	}
	return &LangChainClient{model: model}, nil
}

// Complete sends the conversation and returns the raw reply text. The timeout
// comes from the installed config, so a settings reload applies to the next
// call without rebuilding the client.
func (c *LangChainClient) Complete(ctx context.Context, history []models.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Get().ModelTimeout)
	defer cancel()

	msgs := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		var role llms.ChatMessageType
		switch m.Role {
		case models.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case models.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}

	started := time.Now()
	resp, err := c.model.GenerateContent(ctx, msgs, llms.WithJSONMode())
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}

	log.Debug().
		Int("messages", len(msgs)).
		Dur("elapsed", time.Since(started)).
		Msg("model call completed")
	return resp.Choices[0].Content, nil
}
