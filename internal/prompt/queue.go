package prompt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"steemauth/internal/domain"
)

// Prompt kinds.
const (
	KindPIN       = "pin"
	KindActiveKey = "active_key"
	KindURL       = "url"
)

var (
	// ErrUnknownPrompt is returned for an id that is not pending.
	ErrUnknownPrompt = errors.New("unknown prompt")
	// ErrDismissed is returned to the requester when the user dismissed the prompt.
	ErrDismissed = errors.New("prompt dismissed")
	// ErrEmptyAnswer is returned when the user answered with nothing.
	ErrEmptyAnswer = errors.New("empty answer")
)

// Prompt is a question waiting for the user. URL prompts are notices; they
// carry a link and nobody waits for their answer.
type Prompt struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Username  domain.Username `json:"username,omitempty"`
	Operation string          `json:"operation,omitempty"`
	Payload   domain.Payload  `json:"payload,omitempty"`
	URL       string          `json:"url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type answer struct {
	value string
	err   error
}

type entry struct {
	prompt Prompt
	reply  chan answer
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) QueueOption {
	return func(q *Queue) { q.log = log.With().Str("component", "prompt").Logger() }
}

// Queue holds prompts until a UI answers them.
type Queue struct {
	log zerolog.Logger

	mu      sync.Mutex
	order   []string
	entries map[string]*entry
}

// NewQueue returns an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		log:     zerolog.Nop(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RequestPIN queues a PIN prompt and waits for its answer.
func (q *Queue) RequestPIN(ctx context.Context, username domain.Username) (string, error) {
	return q.wait(ctx, Prompt{Kind: KindPIN, Username: username})
}

// RequestActiveKey queues an active key prompt and waits for its answer.
func (q *Queue) RequestActiveKey(
	ctx context.Context,
	username domain.Username,
	operation string,
	payload domain.Payload,
) (string, error) {
	return q.wait(ctx, Prompt{Kind: KindActiveKey, Username: username, Operation: operation, Payload: payload})
}

// OpenURL queues a notice with url. It does not wait.
func (q *Queue) OpenURL(_ context.Context, url string) error {
	q.add(Prompt{Kind: KindURL, URL: url}, nil)
	return nil
}

// Pending returns the open prompts, oldest first.
func (q *Queue) Pending() []Prompt {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Prompt, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.entries[id].prompt)
	}
	return out
}

// Answer delivers value to the prompt with id. Answering a URL notice
// dismisses it.
func (q *Queue) Answer(id, value string) error {
	if value == "" {
		return q.resolve(id, answer{err: ErrEmptyAnswer})
	}
	return q.resolve(id, answer{value: value})
}

// Dismiss closes the prompt with id; its requester gets ErrDismissed.
func (q *Queue) Dismiss(id string) error {
	return q.resolve(id, answer{err: ErrDismissed})
}

func (q *Queue) resolve(id string, a answer) error {
	q.mu.Lock()
	e, ok := q.remove(id)
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrompt, id)
	}
	if e.reply != nil {
		e.reply <- a
	}
	q.log.Debug().Str("id", id).Str("kind", e.prompt.Kind).Msg("prompt resolved")
	return nil
}

func (q *Queue) wait(ctx context.Context, p Prompt) (string, error) {
	reply := make(chan answer, 1)
	id := q.add(p, reply)

	select {
	case a := <-reply:
		return a.value, a.err
	case <-ctx.Done():
		q.mu.Lock()
		q.remove(id)
		q.mu.Unlock()
		return "", ctx.Err()
	}
}

func (q *Queue) add(p Prompt, reply chan answer) string {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()

	q.mu.Lock()
	q.entries[p.ID] = &entry{prompt: p, reply: reply}
	q.order = append(q.order, p.ID)
	q.mu.Unlock()

	q.log.Debug().Str("id", p.ID).Str("kind", p.Kind).Str("username", p.Username.String()).Msg("prompt queued")
	return p.ID
}

// remove must be called with the lock held.
func (q *Queue) remove(id string) (*entry, bool) {
	e, ok := q.entries[id]
	if !ok {
		return nil, false
	}
	delete(q.entries, id)
	for i, o := range q.order {
		if o == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return e, true
}

// Compile-time assertions that Queue implements the prompt interfaces.
var (
	_ domain.PINHandler       = (*Queue)(nil)
	_ domain.ActiveKeyHandler = (*Queue)(nil)
	_ domain.URLOpener        = (*Queue)(nil)
)
