package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"disputeai/schema"
)

func newTestExtractor(t *testing.T, msg openai.ChatCompletionMessage, inspect func(openai.ChatCompletionRequest)) *OpenAIExtractor {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if inspect != nil {
			inspect(req)
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{Index: 0, Message: msg, FinishReason: "stop"},
			},
		})
	}))
	t.Cleanup(server.Close)

	ex, err := NewOpenAIExtractor(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5,
	}, schema.Dispute())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return ex
}

func seedTranscript() []Message {
	return append(Seed(schema.Dispute()), Message{Role: RoleUser, Content: "My Amazon order never arrived."})
}

func TestOpenAIExtractor_Reply(t *testing.T) {
	ex := newTestExtractor(t, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: "Sorry to hear that. When did you buy it?",
	}, func(req openai.ChatCompletionRequest) {
		if len(req.Messages) != 3 {
			t.Errorf("expected full transcript of 3 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("first message must be the system instruction, got %s", req.Messages[0].Role)
		}
		if len(req.Tools) != 2 {
			t.Errorf("expected 2 declared tools, got %d", len(req.Tools))
		}
	})

	res, err := ex.Extract(context.Background(), seedTranscript())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Kind != KindReply || res.Reply != "Sorry to hear that. When did you buy it?" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOpenAIExtractor_RequestEvidence(t *testing.T) {
	ex := newTestExtractor(t, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: OpRequestEvidence, Arguments: "{}"},
		}},
	}, nil)

	res, err := ex.Extract(context.Background(), seedTranscript())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Kind != KindRequestEvidence {
		t.Fatalf("expected request_evidence, got %+v", res)
	}
}

func TestOpenAIExtractor_Submit(t *testing.T) {
	args := `{"platform_name":"Amazon","purchase_date":"2025-05-01","amount":49.99,"currency":"USD","contacted_platform":false,"training_consent":true,"order_number":null}`
	ex := newTestExtractor(t, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_2",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: OpSubmitDispute, Arguments: args},
		}},
	}, nil)

	res, err := ex.Extract(context.Background(), seedTranscript())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Kind != KindSubmit {
		t.Fatalf("expected submit, got %+v", res)
	}
	want := map[string]string{
		"platform_name":      "Amazon",
		"purchase_date":      "2025-05-01",
		"amount":             "49.99",
		"currency":           "USD",
		"contacted_platform": "no",
		"training_consent":   "yes",
	}
	if len(res.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), res.Fields)
	}
	for k, v := range want {
		if res.Fields[k] != v {
			t.Errorf("field %s: expected %q got %q", k, v, res.Fields[k])
		}
	}
}

func TestOpenAIExtractor_MalformedArguments(t *testing.T) {
	ex := newTestExtractor(t, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_3",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: OpSubmitDispute, Arguments: `{"platform_name": "Amaz`},
		}},
	}, nil)

	_, err := ex.Extract(context.Background(), seedTranscript())
	if !errors.Is(err, ErrMalformedArguments) {
		t.Fatalf("expected ErrMalformedArguments, got %v", err)
	}
}

func TestOpenAIExtractor_UnknownOperation(t *testing.T) {
	ex := newTestExtractor(t, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_4",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "delete_account", Arguments: "{}"},
		}},
	}, nil)

	if _, err := ex.Extract(context.Background(), seedTranscript()); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestOpenAIExtractor_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer server.Close()

	ex, err := NewOpenAIExtractor(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5}, schema.Dispute())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	_, err = ex.Extract(context.Background(), seedTranscript())
	if err == nil || !strings.Contains(err.Error(), "chat completion") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewOpenAIExtractor_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIExtractor(Config{}, schema.Dispute()); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestTools_SubmitParametersFollowSchema(t *testing.T) {
	tools := Tools(schema.Dispute())
	raw, err := json.Marshal(tools[1].Function.Parameters)
	if err != nil {
		t.Fatalf("marshal parameters: %v", err)
	}
	var params struct {
		Properties map[string]struct {
			Enum []string `json:"enum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("unmarshal parameters: %v", err)
	}
	if _, ok := params.Properties[schema.FieldContactDescription]; !ok {
		t.Fatalf("gated field should be declared as a property")
	}
	for _, name := range params.Required {
		if name == schema.FieldContactDescription {
			t.Fatalf("gated field must not be statically required")
		}
	}
	if got := params.Properties[schema.FieldTrainingConsent].Enum; len(got) != 2 {
		t.Fatalf("yes/no field should carry a two-value enum, got %v", got)
	}
}

func TestDecodeArguments_RejectsNested(t *testing.T) {
	if _, err := DecodeArguments(`{"platform_name":{"name":"Amazon"}}`); !errors.Is(err, ErrMalformedArguments) {
		t.Fatalf("expected ErrMalformedArguments, got %v", err)
	}
	if _, err := DecodeArguments(`[1,2]`); !errors.Is(err, ErrMalformedArguments) {
		t.Fatalf("expected ErrMalformedArguments for array payload, got %v", err)
	}
	if _, err := DecodeArguments(`null`); !errors.Is(err, ErrMalformedArguments) {
		t.Fatalf("expected ErrMalformedArguments for null payload, got %v", err)
	}
}
