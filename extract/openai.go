package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"

	"disputeai/schema"
)

// Config holds the LLM connection settings.
type Config struct {
	APIKey string
	// BaseURL overrides the OpenAI endpoint for compatible gateways.
	BaseURL string
	Model   string
	// Timeout bounds one chat completion, in seconds.
	Timeout int
	// RequestsPerSecond paces calls across all sessions; zero disables pacing.
	RequestsPerSecond float64
	Temperature       float32
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Model:             openai.GPT4oMini,
		Timeout:           30,
		RequestsPerSecond: 5,
		Temperature:       0.2,
	}
}

// OpenAIExtractor implements Extractor with OpenAI function calling.
type OpenAIExtractor struct {
	client  *openai.Client
	config  Config
	limiter *rate.Limiter
	tools   []openai.Tool
}

// NewOpenAIExtractor creates an extractor whose submit operation is shaped by s.
func NewOpenAIExtractor(config Config, s *schema.Schema) (*OpenAIExtractor, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("extract: OpenAI API key is required")
	}
	if s == nil {
		return nil, fmt.Errorf("extract: field schema is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &OpenAIExtractor{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		limiter: limiter,
		tools:   Tools(s),
	}, nil
}

// Extract sends the transcript with the declared operations and classifies the answer.
func (e *OpenAIExtractor) Extract(ctx context.Context, transcript []Message) (Result, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("extract: rate limit: %w", err)
		}
	}

	model := e.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := time.Duration(e.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, m := range transcript {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Tools:       e.tools,
		ToolChoice:  "auto",
		Temperature: e.config.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extract: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, ErrEmptyResponse
	}

	return classify(resp.Choices[0].Message)
}

func classify(msg openai.ChatCompletionMessage) (Result, error) {
	reply := strings.TrimSpace(msg.Content)
	if len(msg.ToolCalls) == 0 {
		if reply == "" {
			return Result{}, ErrEmptyResponse
		}
		return Result{Kind: KindReply, Reply: reply}, nil
	}

	// Only the first call is honoured; the controller advances one step per turn.
	call := msg.ToolCalls[0].Function
	switch call.Name {
	case OpRequestEvidence:
		return Result{Kind: KindRequestEvidence, Reply: reply}, nil
	case OpSubmitDispute:
		fields, err := DecodeArguments(call.Arguments)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindSubmit, Reply: reply, Fields: fields}, nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOperation, call.Name)
	}
}

// Tools declares request_evidence and submit_dispute, the latter with one
// string property per schema field.
func Tools(s *schema.Schema) []openai.Tool {
	props := make(map[string]jsonschema.Definition)
	var required []string
	for _, f := range s.Fields() {
		def := jsonschema.Definition{
			Type:        jsonschema.String,
			Description: f.Description,
		}
		switch f.Kind {
		case schema.KindEnum:
			def.Enum = f.Options
		case schema.KindYesNo:
			def.Enum = []string{schema.Yes, schema.No}
		}
		props[f.Name] = def
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        OpRequestEvidence,
				Description: "Ask the user to upload proof (receipts, screenshots, correspondence) for the dispute.",
				Parameters: jsonschema.Definition{
					Type:       jsonschema.Object,
					Properties: map[string]jsonschema.Definition{},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        OpSubmitDispute,
				Description: "Submit the dispute once every required field has been explicitly confirmed by the user.",
				Parameters: jsonschema.Definition{
					Type:       jsonschema.Object,
					Properties: props,
					Required:   required,
				},
			},
		},
	}
}
