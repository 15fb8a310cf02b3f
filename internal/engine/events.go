// Package engine runs exchanges against the Claude Code CLI. The CLI is
// treated as an opaque request/response service: sage hands it a prompt
// plus configuration and consumes the typed event stream it emits in
// stream-json mode, one JSON object per line.
package engine

import "encoding/json"

// Event types emitted by the engine.
const (
	// TypeSystem carries engine lifecycle notices; the "init" subtype
	// includes the session identifier used as the resume token.
	TypeSystem = "system"
	// TypeAssistant carries response content fragments.
	TypeAssistant = "assistant"
	// TypeResult is the terminal event carrying turn count, usage, and the
	// error flag.
	TypeResult = "result"
)

// SubtypeInit marks the initialization system event.
const SubtypeInit = "init"

// Event is one decoded entry of the engine's stream. Fields are populated
// according to Type; unknown event types are passed through untouched so
// newer engine versions don't break the stream loop.
type Event struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Assistant events
	Message *Message `json:"message,omitempty"`

	// Result events
	IsError      bool    `json:"is_error,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	DurationMS   int64   `json:"duration_ms,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	Usage        *Usage  `json:"usage,omitempty"`
	ResultText   string  `json:"result,omitempty"`
}

// Message is the content container of an assistant event.
type Message struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one fragment of assistant output. Only text blocks are
// rendered; tool-use blocks are skipped.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage reports token consumption for an exchange.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Text concatenates the text blocks of an assistant event.
func (e *Event) Text() string {
	if e.Message == nil {
		return ""
	}
	var out string
	for _, block := range e.Message.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

// IsInit reports whether this is the initialization event carrying a newly
// issued resume token.
func (e *Event) IsInit() bool {
	return e.Type == TypeSystem && e.Subtype == SubtypeInit
}

// ParseEvent decodes a single stream line. Malformed lines yield an error;
// the stream loop skips them rather than aborting the exchange.
func ParseEvent(line []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Result summarizes a completed exchange.
type Result struct {
	// Completed reports whether a terminal result event arrived. A result
	// with usage can be completed yet still flagged as an error.
	Completed bool
	// ResumeToken is the session identifier issued by the init event.
	ResumeToken string
	// Turns is the number of conversational turns reported.
	Turns int
	// Usage is the token consumption reported by the terminal event.
	Usage Usage
	// IsError reports whether the engine flagged the exchange as failed.
	IsError bool
	// Text is the final response text from the terminal event.
	Text string
}
