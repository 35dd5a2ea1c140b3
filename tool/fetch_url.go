package tool

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coderlang-ai/coderlang/core"
)

const (
	fetchURLMaxChars = 5000
	fetchURLMaxBody  = 1 << 20 // 1 MiB response cap
)

// fetchURLTool fetches a URL and returns its text content with HTML markup
// stripped, capped to a size a model prompt can absorb.
type fetchURLTool struct {
	client *http.Client
}

// NewFetchURLTool constructs the fetch_url tool. A nil client gets a default
// with a 15s timeout.
func NewFetchURLTool(client *http.Client) Tool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &fetchURLTool{client: client}
}

func (t *fetchURLTool) Name() string { return "fetch_url" }

func (t *fetchURLTool) Description() string {
	return "Fetch a URL and return its text content with HTML tags removed. Useful for reading a page found during research."
}

func (t *fetchURLTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "The http(s) URL to fetch"},
		},
		"required": []string{"url"},
	}
}

func (t *fetchURLTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return nil, NewToolError(t.Name(), "field 'url' must be a non-empty string", "VALIDATION_ERROR")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, NewToolError(t.Name(), "only http and https URLs are supported", "VALIDATION_ERROR")
	}

	req, err := http.NewRequestWithContext(tc.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewToolError(t.Name(), fmt.Sprintf("invalid url: %v", err), "VALIDATION_ERROR")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, NewToolError(t.Name(), fmt.Sprintf("fetch failed: %v", err), "EXECUTION_ERROR")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, NewToolError(t.Name(), fmt.Sprintf("fetch returned status %d", resp.StatusCode), "EXECUTION_ERROR")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchURLMaxBody))
	if err != nil {
		return nil, NewToolError(t.Name(), fmt.Sprintf("read body: %v", err), "EXECUTION_ERROR")
	}

	text := stripHTML(string(body))
	truncated := false
	if len(text) > fetchURLMaxChars {
		text = text[:fetchURLMaxChars]
		truncated = true
	}

	return map[string]any{
		"url":       rawURL,
		"text":      text,
		"truncated": truncated,
	}, nil
}

// stripHTML removes tags plus script/style bodies and collapses whitespace.
func stripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	skipUntil := "" // closing tag whose content is dropped (script/style)
	lower := strings.ToLower(s)

	for i := 0; i < len(s); i++ {
		if skipUntil != "" {
			if strings.HasPrefix(lower[i:], skipUntil) {
				i += len(skipUntil) - 1
				skipUntil = ""
				inTag = false
			}
			continue
		}
		switch {
		case s[i] == '<':
			inTag = true
			if strings.HasPrefix(lower[i:], "<script") {
				skipUntil = "</script>"
			} else if strings.HasPrefix(lower[i:], "<style") {
				skipUntil = "</style>"
			}
		case s[i] == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteByte(s[i])
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
