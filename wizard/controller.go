package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"disputeai/dispute"
	"disputeai/evidence"
	"disputeai/extract"
	"disputeai/schema"
)

var (
	ErrEmptyMessage        = errors.New("wizard: message is empty")
	ErrSessionCompleted    = errors.New("wizard: session already completed")
	ErrNotAwaitingEvidence = errors.New("wizard: session is not awaiting evidence")
)

// persistTimeout bounds the dispute writes once they run detached from the
// caller's context.
const persistTimeout = 30 * time.Second

// RedirectDelay is how long a client shows the confirmation before leaving
// a completed session.
const RedirectDelay = 2 * time.Second

const (
	msgExtractionFailed = "Sorry, something went wrong while processing your message. Please try again."
	msgSignInRequired   = "You need to be signed in to file a dispute. Please log in and send your confirmation again."
	msgPersistFailed    = "Sorry, we could not save your dispute. Nothing was filed. Please try again in a moment."
	msgFiled            = "Thank you! Your dispute has been filed. You will be redirected to your dispute shortly."
	msgFiledNoProof     = "Your dispute has been filed, but we could not attach your evidence. You can review it from your dispute list."
	msgEmptyReply       = "Could you tell me a bit more?"
)

// Persister stores a completed intake.
type Persister interface {
	Persist(ctx context.Context, userID string, fields map[string]string, items []evidence.Item, meta evidence.Meta) (dispute.Submission, error)
}

// Uploader stores evidence files for an owner prefix.
type Uploader interface {
	Collect(ctx context.Context, owner string, files []evidence.File) []evidence.Outcome
}

// Outcome describes the result of one controller step.
type Outcome struct {
	State State
	// Reply is the assistant message appended by this step.
	Reply         string
	DisputeID     string
	ProofAttached bool
	// Missing lists schema fields that blocked a submission.
	Missing       []string
	RedirectAfter time.Duration
}

// Controller is the intake state machine. It holds no per-session state:
// every call works on the Session passed in.
type Controller struct {
	schema    *schema.Schema
	extractor extract.Extractor
	uploader  Uploader
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
}

// NewController builds the state machine. A nil logger disables logging.
func NewController(s *schema.Schema, extractor extract.Extractor, uploader Uploader, persister Persister, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		schema:    s,
		extractor: extractor,
		uploader:  uploader,
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for session timestamps.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Start returns a fresh session seeded with the system instruction and the
// opening prompt.
func (c *Controller) Start(id string) *Session {
	now := c.now().UTC()
	return &Session{
		ID:         id,
		State:      StateChatting,
		Transcript: extract.Seed(c.schema),
		Fields:     map[string]string{},
		Evidence:   []evidence.Item{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SendMessage records a user turn and advances the session.
func (c *Controller) SendMessage(ctx context.Context, sess *Session, identity, text string) (Outcome, error) {
	if sess.State == StateCompleted {
		return Outcome{}, ErrSessionCompleted
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}
	sess.hear(text)
	return c.step(ctx, sess, identity), nil
}

// AddEvidence uploads files in order. Stored files are appended to the
// session evidence; failed ones are only reported.
func (c *Controller) AddEvidence(ctx context.Context, sess *Session, files []evidence.File, meta evidence.Meta) ([]evidence.Outcome, error) {
	if sess.State != StateAwaitingEvidence {
		return nil, ErrNotAwaitingEvidence
	}

	outcomes := c.uploader.Collect(ctx, sess.ID, files)
	sess.Evidence = append(sess.Evidence, evidence.Succeeded(outcomes)...)
	if meta.Type != "" {
		sess.EvidenceMeta.Type = strings.TrimSpace(meta.Type)
	}
	if meta.Description != "" {
		sess.EvidenceMeta.Description = strings.TrimSpace(meta.Description)
	}
	sess.UpdatedAt = c.now().UTC()

	for _, o := range outcomes {
		if !o.OK() {
			c.logger.Warn("evidence upload failed",
				zap.String("session_id", sess.ID),
				zap.String("file", o.File),
				zap.Error(o.Err),
			)
		}
	}
	return outcomes, nil
}

// ConfirmEvidence ends the upload phase and lets the model continue.
func (c *Controller) ConfirmEvidence(ctx context.Context, sess *Session, identity string) (Outcome, error) {
	if sess.State != StateAwaitingEvidence {
		return Outcome{}, ErrNotAwaitingEvidence
	}
	sess.State = StateChatting
	sess.hear(extract.EvidenceCompleteMessage)
	return c.step(ctx, sess, identity), nil
}

func (c *Controller) step(ctx context.Context, sess *Session, identity string) Outcome {
	defer func() { sess.UpdatedAt = c.now().UTC() }()

	res, err := c.extractor.Extract(ctx, sess.Transcript)
	if err != nil {
		c.logger.Warn("extraction failed", zap.String("session_id", sess.ID), zap.Error(err))
		return c.fail(sess, msgExtractionFailed)
	}

	switch res.Kind {
	case extract.KindRequestEvidence:
		if res.Reply != "" {
			sess.say(res.Reply)
		}
		sess.say(extract.EvidencePrompt)
		sess.State = StateAwaitingEvidence
		return Outcome{State: sess.State, Reply: extract.EvidencePrompt}

	case extract.KindSubmit:
		return c.submit(ctx, sess, identity, res.Fields)

	default:
		reply := res.Reply
		if reply == "" {
			reply = msgEmptyReply
		}
		sess.say(reply)
		return Outcome{State: sess.State, Reply: reply}
	}
}

func (c *Controller) submit(ctx context.Context, sess *Session, identity string, proposed map[string]string) Outcome {
	for name, v := range c.schema.Normalize(proposed) {
		sess.Fields[name] = v
	}

	if err := c.schema.Validate(sess.Fields); err != nil {
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			return c.fail(sess, msgExtractionFailed)
		}
		reply := c.validationMessage(verr)
		sess.say(reply)
		sess.State = StateChatting
		return Outcome{State: sess.State, Reply: reply, Missing: verr.Missing}
	}

	if identity == "" {
		sess.say(msgSignInRequired)
		sess.State = StateChatting
		return Outcome{State: sess.State, Reply: msgSignInRequired}
	}

	// The dispute and its bundle are written in two steps; a client that
	// disconnects in between must not leave the dispute without evidence.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	sub, err := c.persister.Persist(pctx, identity, sess.Fields, sess.Evidence, sess.EvidenceMeta)
	if err != nil {
		c.logger.Error("dispute not persisted", zap.String("session_id", sess.ID), zap.Error(err))
		return c.fail(sess, msgPersistFailed)
	}

	reply := msgFiled
	if sub.BundleErr != nil {
		reply = msgFiledNoProof
	}
	sess.say(reply)
	sess.State = StateCompleted
	sess.DisputeID = sub.Dispute.ID
	sess.ProofAttached = sub.Bundle != nil
	return Outcome{
		State:         StateCompleted,
		Reply:         reply,
		DisputeID:     sub.Dispute.ID,
		ProofAttached: sess.ProofAttached,
		RedirectAfter: RedirectDelay,
	}
}

func (c *Controller) fail(sess *Session, reply string) Outcome {
	sess.say(reply)
	sess.State = StateChatting
	return Outcome{State: StateFailed, Reply: reply}
}

func (c *Controller) validationMessage(verr *schema.ValidationError) string {
	var b strings.Builder
	b.WriteString("Before I can file your dispute I still need a few details.")
	if len(verr.Missing) > 0 {
		fmt.Fprintf(&b, " Missing: %s.", strings.Join(c.schema.Labels(verr.Missing), ", "))
	}
	if len(verr.Invalid) > 0 {
		names := make([]string, 0, len(verr.Invalid))
		for n := range verr.Invalid {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(&b, " %s %s.", c.schema.Labels([]string{n})[0], verr.Invalid[n])
		}
	}
	return b.String()
}
