// Package wizard drives the dispute-intake conversation: it routes each user
// turn through the extractor, collects evidence and hands a validated field
// set to the persistence gateway.
package wizard

import (
	"encoding/json"
	"fmt"
	"time"

	"disputeai/evidence"
	"disputeai/extract"
)

// State is the position of a session in the intake flow.
type State string

const (
	StateChatting         State = "chatting"
	StateAwaitingEvidence State = "awaiting_evidence"
	StateCompleted        State = "completed"
	// StateFailed is only ever reported on an Outcome. The session itself
	// returns to StateChatting so the user can retry.
	StateFailed State = "failed"
)

// Session is the full, serialisable state of one intake.
type Session struct {
	ID            string            `json:"id"`
	State         State             `json:"state"`
	Transcript    []extract.Message `json:"transcript"`
	Fields        map[string]string `json:"fields"`
	Evidence      []evidence.Item   `json:"evidence"`
	EvidenceMeta  evidence.Meta     `json:"evidence_meta"`
	DisputeID     string            `json:"dispute_id,omitempty"`
	ProofAttached bool              `json:"proof_attached"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Visible returns the transcript without the system instruction.
func (s *Session) Visible() []extract.Message {
	out := make([]extract.Message, 0, len(s.Transcript))
	for _, m := range s.Transcript {
		if m.Role == extract.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Session) say(text string) {
	s.Transcript = append(s.Transcript, extract.Message{Role: extract.RoleAssistant, Content: text})
}

func (s *Session) hear(text string) {
	s.Transcript = append(s.Transcript, extract.Message{Role: extract.RoleUser, Content: text})
}

func encodeSession(s *Session) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("wizard: encode session %s: %w", s.ID, err)
	}
	return raw, nil
}

func decodeSession(raw []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("wizard: decode session: %w", err)
	}
	if s.Fields == nil {
		s.Fields = map[string]string{}
	}
	return &s, nil
}
