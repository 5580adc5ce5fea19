package chat

import (
	"strings"
	"sync"
)

// Role is the author of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the chat service.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the append-only conversation. Only the chat worker appends.
type History struct {
	mu   sync.Mutex
	msgs []Message
}

// Append adds a message.
func (h *History) Append(role Role, content string) {
	h.mu.Lock()
	h.msgs = append(h.msgs, Message{Role: role, Content: content})
	h.mu.Unlock()
}

// Messages returns a copy of the conversation so far.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Speaker prefixes used in the rendered transcript.
const (
	UserPrefix      = "You: "
	AssistantPrefix = "Hitomi: "
)

// Transcript is the rendered conversation shown in the bubble. It lives on
// the UI loop.
type Transcript struct {
	lines []string
}

// Append adds a line.
func (t *Transcript) Append(line string) {
	t.lines = append(t.lines, line)
}

// Lines returns the lines in order.
func (t *Transcript) Lines() []string {
	return append([]string(nil), t.lines...)
}

// String joins the lines with a blank line between them.
func (t *Transcript) String() string {
	return strings.Join(t.lines, "\n\n")
}
