package keychain

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

// DefaultPresenceTimeout is how long the shim counts as present after its
// last poll.
const DefaultPresenceTimeout = 30 * time.Second

// Request kinds.
const (
	KindBroadcast  = "broadcast"
	KindSignBuffer = "sign_buffer"
)

// ErrUnknownRequest is returned by Respond for an id that is not pending.
var ErrUnknownRequest = errors.New("unknown keychain request")

// Request is a call waiting for the extension. The shim reads it, forwards
// it to the extension and posts the answer back with Respond.
type Request struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	Username   domain.Username    `json:"username"`
	Operations []domain.Operation `json:"operations,omitempty"`
	Message    string             `json:"message,omitempty"`
	Authority  string             `json:"authority"`
	CreatedAt  time.Time          `json:"created_at"`
}

// LateHandler receives the answer to a request whose caller stopped waiting.
type LateHandler func(req Request, resp domain.ExtensionResponse)

type pending struct {
	req   Request
	reply chan domain.ExtensionResponse
	// abandoned is set once the caller's context ended. The request stays
	// queued since the extension may already be showing it to the user.
	abandoned bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithPresenceTimeout sets how long a poll keeps the bridge available.
func WithPresenceTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.presence = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Bridge) { b.log = log.With().Str("component", "keychain").Logger() }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// Bridge relays extension calls to a browser shim.
type Bridge struct {
	presence time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSeen time.Time
	order    []string
	pending  map[string]*pending
	late     LateHandler
}

// NewBridge returns a bridge with no shim attached.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		presence: DefaultPresenceTimeout,
		log:      zerolog.Nop(),
		now:      time.Now,
		pending:  make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetLateHandler sets where answers to abandoned requests go. nil drops them.
func (b *Bridge) SetLateHandler(h LateHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.late = h
}

// Touch records that the shim is present.
func (b *Bridge) Touch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSeen = b.now()
}

// Connected reports whether the shim polled within the presence timeout.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.lastSeen.IsZero() && b.now().Sub(b.lastSeen) <= b.presence
}

// Available reports whether an extension can be reached.
func (b *Bridge) Available() bool { return b.Connected() }

// RequestBroadcast asks the extension to sign and broadcast ops. It blocks
// until the shim responds or ctx ends.
func (b *Bridge) RequestBroadcast(
	ctx context.Context,
	username domain.Username,
	ops []domain.Operation,
	authority string,
) (domain.ExtensionResponse, error) {
	return b.request(ctx, Request{
		Kind:       KindBroadcast,
		Username:   username,
		Operations: ops,
		Authority:  authority,
	})
}

// RequestSignBuffer asks the extension to sign message. It blocks until the
// shim responds or ctx ends.
func (b *Bridge) RequestSignBuffer(
	ctx context.Context,
	username domain.Username,
	message string,
	authority string,
) (domain.ExtensionResponse, error) {
	return b.request(ctx, Request{
		Kind:      KindSignBuffer,
		Username:  username,
		Message:   message,
		Authority: authority,
	})
}

// Pending returns the unanswered requests, oldest first.
func (b *Bridge) Pending() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Request, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.pending[id].req)
	}
	return out
}

// Respond delivers the extension's answer to the request with id. An answer
// to a request whose caller gave up goes to the late handler.
func (b *Bridge) Respond(id string, resp domain.ExtensionResponse) error {
	b.mu.Lock()
	p, ok := b.remove(id)
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	late, abandoned := b.late, p.abandoned
	if !abandoned {
		// Buffered, and sent under the lock so request sees it once the entry is gone.
		p.reply <- resp
	}
	b.mu.Unlock()

	log := b.log.Debug().Str("id", id).Bool("success", resp.Success)
	if !abandoned {
		log.Msg("request answered")
		return nil
	}
	if late == nil {
		log.Msg("late answer dropped")
		return nil
	}
	log.Msg("late answer")
	late(p.req, resp)
	return nil
}

func (b *Bridge) request(ctx context.Context, req Request) (domain.ExtensionResponse, error) {
	req.ID = uuid.NewString()
	req.CreatedAt = b.now()
	p := &pending{req: req, reply: make(chan domain.ExtensionResponse, 1)}

	b.mu.Lock()
	b.pending[req.ID] = p
	b.order = append(b.order, req.ID)
	b.mu.Unlock()

	b.log.Debug().
		Str("id", req.ID).
		Str("kind", req.Kind).
		Str("username", req.Username.String()).
		Msg("request queued")

	select {
	case resp := <-p.reply:
		return resp, nil
	case <-ctx.Done():
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.pending[req.ID]; !ok {
			// Answered while ctx ended.
			return <-p.reply, nil
		}
		p.abandoned = true
		b.log.Debug().Str("id", req.ID).Msg("caller stopped waiting")
		return domain.ExtensionResponse{}, &domain.ExtensionPendingError{RequestID: req.ID, Err: ctx.Err()}
	}
}

// remove must be called with the lock held.
func (b *Bridge) remove(id string) (*pending, bool) {
	p, ok := b.pending[id]
	if !ok {
		return nil, false
	}
	delete(b.pending, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return p, true
}

// Compile-time assertion that Bridge implements domain.ExtensionSigner.
var _ domain.ExtensionSigner = (*Bridge)(nil)
