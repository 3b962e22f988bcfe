package domain

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the conversation. Interrupted marks assistant
// turns that were cut off by barge-in or a mid-stream service failure.
type Turn struct {
	Role        Role
	Text        string
	Interrupted bool
}

// History holds the ordered conversation turns plus a fixed system prompt.
// It is owned by the orchestrator goroutine and is not safe for concurrent
// mutation; Snapshot copies are handed to the chat client.
type History struct {
	system     string
	turns      []Turn
	charBudget int
}

// NewHistory creates a history with the given system prompt and a rough
// character budget for truncation. A budget of 0 disables truncation.
func NewHistory(system string, charBudget int) *History {
	return &History{system: system, charBudget: charBudget}
}

func (h *History) AppendUser(text string) {
	h.turns = append(h.turns, Turn{Role: RoleUser, Text: text})
	h.truncate()
}

func (h *History) AppendAssistant(text string) {
	h.turns = append(h.turns, Turn{Role: RoleAssistant, Text: text})
	h.truncate()
}

// AppendAssistantInterrupted records a reply that was cut off; only the
// text already emitted to playback is kept.
func (h *History) AppendAssistantInterrupted(text string) {
	h.turns = append(h.turns, Turn{Role: RoleAssistant, Text: text, Interrupted: true})
	h.truncate()
}

// Snapshot returns the system prompt followed by the retained turns.
func (h *History) Snapshot() []Turn {
	out := make([]Turn, 0, len(h.turns)+1)
	if h.system != "" {
		out = append(out, Turn{Role: RoleSystem, Text: h.system})
	}
	return append(out, h.turns...)
}

// Len returns the number of non-system turns.
func (h *History) Len() int { return len(h.turns) }

// Last returns the most recent turn, if any.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// truncate drops the oldest non-system turns while the total size exceeds
// the budget, always keeping at least the current exchange (last two turns).
func (h *History) truncate() {
	if h.charBudget <= 0 {
		return
	}
	for len(h.turns) > 2 && h.size() > h.charBudget {
		h.turns = h.turns[1:]
	}
}

func (h *History) size() int {
	total := len(h.system)
	for _, t := range h.turns {
		total += len(t.Text)
	}
	return total
}

// ValidTranscriptText trims recognizer output and reports whether anything
// speakable remains.
func ValidTranscriptText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	return trimmed, trimmed != ""
}
