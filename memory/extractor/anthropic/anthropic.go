// Package anthropic extracts memories from conversation transcripts with
// the Claude API. The model reads a transcript and returns a JSON array of
// memory candidates, which are converted to records for the resolved
// namespace.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/evermindhq/mnemo-go-sdk/core"
	"github.com/evermindhq/mnemo-go-sdk/memory"
)

const (
	// DefaultModel is the Claude model used when none is configured.
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTokens = 1024
)

const extractionPrompt = `You are a memory extraction system. Read the conversation
transcript and extract facts worth remembering long-term about the user.

Return ONLY a JSON array. Each element must have:
  "content":    a short self-contained statement (string, required)
  "type":       one of "fact", "preference", "goal", "episode", "relationship"
  "importance": a number between 0.0 and 1.0

Guidelines:
- Extract stable information: preferences, goals, facts about the user's life.
- Skip small talk, pleasantries, and information only relevant to this session.
- Prefer few high-quality memories over many weak ones.
- Return [] if nothing is worth remembering.`

// Extractor extracts memories using the Claude API.
type Extractor struct {
	client    *anthropicsdk.Client
	model     string
	maxTokens int64
	log       *zap.Logger
}

// Option configures the extractor.
type Option func(*Extractor)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(e *Extractor) {
		e.model = model
	}
}

// WithMaxTokens overrides the maximum response tokens.
func WithMaxTokens(n int64) Option {
	return func(e *Extractor) {
		e.maxTokens = n
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Extractor) {
		e.log = log
	}
}

// New creates an extractor backed by the given Anthropic client.
func New(client *anthropicsdk.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:    client,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract sends the transcript to Claude and parses the returned memory
// candidates into records scoped to ns.
func (e *Extractor) Extract(ctx context.Context, ns memory.Namespace, messages []core.Message) ([]*memory.MemoryRecord, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(formatTranscript(messages))),
		},
		System: []anthropicsdk.TextBlockParam{
			{Text: extractionPrompt},
		},
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	records := parseCandidates(text, ns)
	e.log.Debug("extraction complete",
		zap.String("namespace", ns.Path()),
		zap.Int("messages", len(messages)),
		zap.Int("records", len(records)))
	return records, nil
}

// formatTranscript renders messages as "role: content" lines.
func formatTranscript(messages []core.Message) string {
	var b strings.Builder
	b.WriteString("Transcript:\n\n")
	for _, msg := range messages {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// parseCandidates reads the model output as a JSON array of memory
// candidates. Models sometimes wrap the array in prose or a code fence, so
// the first bracketed span is recovered before parsing. Malformed elements
// are skipped rather than failing the whole batch.
func parseCandidates(text string, ns memory.Namespace) []*memory.MemoryRecord {
	payload := extractJSONArray(text)
	if payload == "" {
		return nil
	}

	parsed := gjson.Parse(payload)
	if !parsed.IsArray() {
		return nil
	}

	var records []*memory.MemoryRecord
	parsed.ForEach(func(_, item gjson.Result) bool {
		content := strings.TrimSpace(item.Get("content").String())
		if content == "" {
			return true
		}

		rec := memory.NewMemoryRecord(ns, content, memory.ParseMemoryType(item.Get("type").String()))
		if imp := item.Get("importance"); imp.Exists() {
			rec.Importance = memory.ClampImportance(imp.Float())
		}
		records = append(records, rec)
		return true
	})
	return records
}

// extractJSONArray returns the first top-level [...] span in text.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
