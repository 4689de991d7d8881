package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/ai"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/metrics"
)

const (
	DefaultTimeout = 30 * time.Second

	FailureText = "Sorry, something went wrong while preparing advice. Please try again."
	TimeoutText = "That took too long to answer. Please try again."
)

var (
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrBusy         = errors.New("a reply is still in progress")
)

// Responder answers one query. *ai.Assistant implements it.
type Responder interface {
	Respond(ctx context.Context, query string) (*ai.Reply, error)
}

type Option func(*Controller)

// WithTimeout bounds a single submission. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHistory persists the log in store under key.
func WithHistory(store HistoryStore, key string) Option {
	return func(c *Controller) {
		c.history = store
		c.key = key
	}
}

// WithKeepHistory leaves the persisted log in place on Close.
func WithKeepHistory(keep bool) Option {
	return func(c *Controller) { c.keepHistory = keep }
}

// WithNotifier is called with the cause whenever a submission fails.
func WithNotifier(notify func(error)) Option {
	return func(c *Controller) { c.notify = notify }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.logger = log }
}

// Controller owns one conversation log. Submissions are serialized: while one is in
// flight further submissions fail with ErrBusy.
type Controller struct {
	responder   Responder
	history     HistoryStore
	key         string
	timeout     time.Duration
	keepHistory bool
	notify      func(error)
	logger      *zap.Logger
	now         func() time.Time

	mu         sync.Mutex
	messages   []Message
	busy       bool
	lastActive time.Time
}

// NewController restores the persisted log, if any. A log that cannot be read is
// logged and replaced by an empty one.
func NewController(ctx context.Context, responder Responder, opts ...Option) *Controller {
	c := &Controller{
		responder: responder,
		history:   NewMemoryStore(),
		key:       DefaultKey,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastActive = c.now()
	c.logger = logger.WithFields(c.logger, logger.StringFields(logger.StringField{Key: logger.FieldSession, Value: c.key})...)

	restored, err := c.history.Load(ctx, c.key)
	if err != nil {
		c.logger.Warn("failed to restore chat history", zap.Error(err))
		return c
	}
	c.messages = settle(restored)
	if len(c.messages) > 0 {
		c.logger.Debug("restored chat history", zap.Int("messages", len(c.messages)))
	}

	return c
}

// settle resolves placeholders left behind by an interrupted process.
func settle(messages []Message) []Message {
	for i := range messages {
		if messages[i].Loading {
			messages[i].Loading = false
			messages[i].Failed = true
			messages[i].Text = FailureText
		}
	}
	return messages
}

// Submit appends the user message and a placeholder, waits for the responder and
// replaces the placeholder with the reply. Failures become a failure message in the
// log, so the only errors returned are ErrEmptyMessage and ErrBusy.
func (c *Controller) Submit(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return Message{}, ErrBusy
	}
	c.busy = true
	now := c.now()
	c.lastActive = now
	placeholder := newMessage(SenderAssistant, "", now)
	placeholder.Loading = true
	c.messages = append(c.messages, newMessage(SenderUser, text, now), placeholder)
	c.persistLocked(ctx)
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	reply, err := c.respond(callCtx, text)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	result := placeholder
	result.Loading = false
	result.Timestamp = c.now()

	switch {
	case err == nil:
		result.Text = reply.Advice
		result.Sources = reply.Sources
		metrics.ChatReplies.WithLabelValues(metrics.OutcomeOK).Inc()
	case timedOut:
		result.Text = TimeoutText
		result.Failed = true
		metrics.ChatReplies.WithLabelValues(metrics.OutcomeTimeout).Inc()
		c.logger.Error("chat reply timed out", append(logger.QueryFields("", text), zap.Duration("timeout", c.timeout))...)
	default:
		result.Text = FailureText
		result.Failed = true
		metrics.ChatReplies.WithLabelValues(metrics.OutcomeError).Inc()
		c.logger.Error("chat reply failed", append(logger.QueryFields("", text), zap.Error(err))...)
	}

	c.mu.Lock()
	c.replaceLocked(result)
	c.busy = false
	c.lastActive = result.Timestamp
	c.persistLocked(ctx)
	c.mu.Unlock()

	if result.Failed && c.notify != nil {
		c.notify(err)
	}

	return result, nil
}

func (c *Controller) respond(ctx context.Context, text string) (reply *ai.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("responder panicked: %v", r)
		}
	}()

	if c.responder == nil {
		return nil, errors.New("no responder configured")
	}
	reply, err = c.responder.Respond(ctx, text)
	if err == nil && reply == nil {
		err = errors.New("responder returned no reply")
	}
	return reply, err
}

// replaceLocked swaps the placeholder with the same id. A log cleared mid-flight
// gets nothing back.
func (c *Controller) replaceLocked(msg Message) {
	for i := range c.messages {
		if c.messages[i].ID == msg.ID {
			c.messages[i] = msg
			return
		}
	}
}

func (c *Controller) persistLocked(ctx context.Context) {
	// Persistence outlives request cancellation.
	ctx = context.WithoutCancel(ctx)
	if err := c.history.Save(ctx, c.key, c.messages); err != nil {
		c.logger.Warn("failed to persist chat history", zap.Error(err))
	}
}

// Messages returns a copy of the conversation log.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneMessages(c.messages)
}

// LastActive is the time of the last submission or reply, or of construction.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Reset empties the log and its persisted copy.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	return c.history.Clear(ctx, c.key)
}

// Close ends the conversation. The persisted log is cleared unless the controller
// was built with WithKeepHistory(true).
func (c *Controller) Close(ctx context.Context) error {
	if c.keepHistory {
		return nil
	}
	return c.history.Clear(ctx, c.key)
}
