// Package extract turns a running dispute-intake transcript into either a
// conversational reply or a structured operation chosen by a language model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Role tags a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Kind is the shape of an extraction result.
type Kind string

const (
	KindReply           Kind = "reply"
	KindRequestEvidence Kind = "request_evidence"
	KindSubmit          Kind = "submit"
)

// Operation names declared to the model.
const (
	OpRequestEvidence = "request_evidence"
	OpSubmitDispute   = "submit_dispute"
)

var (
	// ErrEmptyResponse signals the model returned no usable choice.
	ErrEmptyResponse = errors.New("extract: empty model response")
	// ErrMalformedArguments signals a structured payload that is not a JSON object.
	ErrMalformedArguments = errors.New("extract: malformed operation arguments")
	// ErrUnknownOperation signals the model invoked an operation that was never declared.
	ErrUnknownOperation = errors.New("extract: unknown operation")
)

// Result is what the controller routes on.
type Result struct {
	Kind Kind
	// Reply is the model's free text. It may accompany an operation.
	Reply string
	// Fields is only set for KindSubmit.
	Fields map[string]string
}

// Extractor maps a transcript to a Result.
type Extractor interface {
	Extract(ctx context.Context, transcript []Message) (Result, error)
}

// DecodeArguments parses an operation's JSON argument payload into string
// field values. Numbers and booleans are rendered as strings; nulls and empty
// strings are dropped. Anything other than a flat JSON object is rejected.
func DecodeArguments(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedArguments)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedArguments)
	}

	out := make(map[string]string, len(payload))
	for name, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(val); s != "" {
				out[name] = s
			}
		case float64:
			out[name] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			if val {
				out[name] = "yes"
			} else {
				out[name] = "no"
			}
		default:
			return nil, fmt.Errorf("%w: field %q is not a scalar", ErrMalformedArguments, name)
		}
	}
	return out, nil
}
