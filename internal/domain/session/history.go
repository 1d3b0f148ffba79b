package session

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/tablefinder/internal/domain"
)

// DefaultHistoryTurns is the history capacity when none is configured.
const DefaultHistoryTurns = 20

// Turn is one message of the conversation.
type Turn struct {
	Role domain.MessageRole `json:"role"`
	Text string             `json:"text"`
	At   time.Time          `json:"at"`
}

// History is a bounded FIFO of turns: appending past capacity evicts the oldest.
type History struct {
	turns    []Turn
	capacity int
}

// NewHistory creates an empty history. Non-positive capacity uses DefaultHistoryTurns.
func NewHistory(capacity int) History {
	if capacity <= 0 {
		capacity = DefaultHistoryTurns
	}
	return History{capacity: capacity}
}

// Append adds turns, evicting the oldest ones beyond capacity.
func (h *History) Append(turns ...Turn) {
	if h.capacity <= 0 {
		h.capacity = DefaultHistoryTurns
	}
	h.turns = append(h.turns, turns...)
	if over := len(h.turns) - h.capacity; over > 0 {
		kept := make([]Turn, h.capacity)
		copy(kept, h.turns[over:])
		h.turns = kept
	}
}

// Turns returns a copy of the turns, oldest first.
func (h History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of stored turns.
func (h History) Len() int { return len(h.turns) }

// Capacity returns the maximum number of turns.
func (h History) Capacity() int { return h.capacity }

// Clear drops all turns and keeps the capacity.
func (h *History) Clear() { h.turns = nil }

// Clone returns an independent copy.
func (h History) Clone() History {
	return History{turns: h.Turns(), capacity: h.capacity}
}

// Messages converts turns into the LLM message form.
func (h History) Messages() []domain.Message {
	out := make([]domain.Message, len(h.turns))
	for i, t := range h.turns {
		out[i] = domain.Message{Role: t.Role, Text: t.Text}
	}
	return out
}

// MarshalJSON renders the turns as a list.
func (h History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Turns())
}
