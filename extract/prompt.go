package extract

import (
	"fmt"
	"strings"

	"disputeai/schema"
)

// OpeningPrompt is the first assistant message of every intake session.
const OpeningPrompt = "Hi! I'm here to help you file a dispute about a purchase. " +
	"Tell me what happened: where did you buy it, and what went wrong?"

// EvidencePrompt is appended when the model asks for proof.
const EvidencePrompt = "Please upload any proof you have, such as receipts, screenshots of the order, " +
	"or messages with the seller. Tell me what kind of evidence it is, then confirm once you are done."

// EvidenceCompleteMessage is the synthetic user turn recorded when the user
// finishes uploading.
const EvidenceCompleteMessage = "I have finished uploading my evidence."

// SystemPrompt builds the extraction rules given to the model.
func SystemPrompt(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString(`You are the intake assistant of Disput.ai. You collect the facts needed to file a purchase dispute by chatting with the user.

RULES:
1. Ask for one or two missing facts at a time, in plain language.
2. NEVER invent, guess or infer a value. Only use values the user stated explicitly in this conversation.
3. If a value is ambiguous, ask the user to confirm it before using it.
4. When the user describes the problem and has proof available, call request_evidence once.
5. Call submit_dispute only after the user has explicitly confirmed every required field below.
6. Dates are YYYY-MM-DD, amounts are plain decimal numbers, currencies are ISO 4217 codes.

FIELDS:
`)
	for _, f := range s.Fields() {
		req := "optional"
		switch {
		case f.Required:
			req = "required"
		case f.GatedBy != "":
			req = fmt.Sprintf("required when %s is yes", f.GatedBy)
		}
		fmt.Fprintf(&b, "- %s (%s): %s", f.Name, req, f.Description)
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, " One of: %s.", strings.Join(f.Options, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Seed returns the initial transcript: system rules followed by the opening prompt.
func Seed(s *schema.Schema) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt(s)},
		{Role: RoleAssistant, Content: OpeningPrompt},
	}
}
