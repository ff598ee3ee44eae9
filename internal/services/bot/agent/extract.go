package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/instaagents/discovery/internal/services/bot/llm"
)

// extractBusinessInfo asks the model for structured business facts from the
// transcript. Extraction is best effort: provider and parse failures both
// yield zero BusinessInfo so the dialogue keeps moving.
func (e *Engine) extractBusinessInfo(ctx context.Context, messages []Message) BusinessInfo {
	reply, err := e.invoker.Invoke(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: extractionPrompt(renderTranscript(messages))}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return BusinessInfo{}
	}
	info, ok := parseBusinessInfo(reply)
	if !ok {
		return BusinessInfo{}
	}
	return info
}

// parseBusinessInfo decodes a model reply into BusinessInfo, tolerating
// markdown code fences around the JSON payload.
func parseBusinessInfo(reply string) (BusinessInfo, bool) {
	var info BusinessInfo
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &info); err != nil {
		return BusinessInfo{}, false
	}
	return info, true
}

// stripCodeFences unwraps a ```json or bare ``` fenced block, returning the
// trimmed inner payload. Unfenced replies pass through trimmed.
func stripCodeFences(raw string) string {
	if _, after, found := strings.Cut(raw, "```json"); found {
		inner, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(inner)
	}
	if _, after, found := strings.Cut(raw, "```"); found {
		inner, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(raw)
}
