package tracker

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"steemauth/internal/domain"
)

// Default messages used when the caller leaves them empty.
const (
	DefaultPendingMessage = "Transaction sent to Keychain for signing. Please check your Keychain extension."
	DefaultSuccessMessage = "Transaction completed successfully!"
	DefaultErrorMessage   = "Transaction failed"
)

// Ticket identifies one Start. It is passed back to Finish.
type Ticket struct {
	seq uint64
	typ string
}

// Type returns the operation type the ticket was started for.
func (t Ticket) Type() string { return t.typ }

// Valid reports whether the ticket came from Start.
func (t Ticket) Valid() bool { return t.seq != 0 }

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tracker) { t.log = log.With().Str("component", "tracker").Logger() }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is safe for concurrent use.
type Tracker struct {
	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	seq      uint64
	state    domain.TransactionState
	stateSeq uint64
	latest   map[string]uint64
	open     map[uint64]string
	results  map[string]domain.OperationResult
	history  *deque.Deque
}

// New returns an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		log:     zerolog.Nop(),
		now:     time.Now,
		latest:  make(map[string]uint64),
		open:    make(map[uint64]string),
		results: make(map[string]domain.OperationResult),
		history: deque.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start marks opType as pending and makes it the current state. It replaces
// any cached result for opType.
func (t *Tracker) Start(opType, pendingMessage string) Ticket {
	if pendingMessage == "" {
		pendingMessage = DefaultPendingMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	ticket := Ticket{seq: t.seq, typ: opType}
	t.open[ticket.seq] = opType
	t.latest[opType] = ticket.seq

	t.state = domain.TransactionState{
		Type:           opType,
		Status:         domain.StatusPending,
		PendingMessage: pendingMessage,
	}
	t.stateSeq = ticket.seq

	if opType != "" {
		t.results[opType] = domain.OperationResult{Status: domain.StatusPending, Success: pendingMessage}
	}

	t.log.Debug().Str("type", opType).Uint64("ticket", ticket.seq).Msg("transaction started")
	return ticket
}

// Finish moves the ticket to its terminal state and appends a history record.
// It returns false, and records nothing, when the ticket already finished.
func (t *Tracker) Finish(
	ticket Ticket,
	success bool,
	txID string,
	successMessage string,
	errorMessage string,
) (domain.TransactionRecord, bool) {
	if successMessage == "" {
		successMessage = DefaultSuccessMessage
	}
	if errorMessage == "" {
		errorMessage = DefaultErrorMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.open[ticket.seq]; !ok {
		t.log.Debug().Str("type", ticket.typ).Uint64("ticket", ticket.seq).Msg("ignoring finish of closed ticket")
		return domain.TransactionRecord{}, false
	}
	delete(t.open, ticket.seq)

	status := domain.StatusError
	if success {
		status = domain.StatusSuccess
	}

	// The current state only follows the ticket that last claimed it.
	if t.stateSeq == ticket.seq {
		t.state.Status = status
		t.state.TransactionID = txID
		t.state.SuccessMessage = ""
		t.state.ErrorMessage = ""
		if success {
			t.state.SuccessMessage = successMessage
		} else {
			t.state.ErrorMessage = errorMessage
		}
	}

	if ticket.typ != "" && t.latest[ticket.typ] == ticket.seq {
		if success {
			msg := successMessage
			if txID != "" {
				msg += " Transaction ID: " + txID
			}
			t.results[ticket.typ] = domain.OperationResult{Status: status, Success: msg}
		} else {
			t.results[ticket.typ] = domain.OperationResult{Status: status, Error: errorMessage}
		}
	}

	record := domain.TransactionRecord{
		ID:            txID,
		Type:          ticket.typ,
		Status:        status,
		TransactionID: txID,
		Timestamp:     t.now(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if success {
		record.Message = successMessage
	} else {
		record.ErrorMessage = errorMessage
	}
	t.history.PushFront(record)

	t.log.Debug().
		Str("type", ticket.typ).
		Uint64("ticket", ticket.seq).
		Str("status", string(status)).
		Str("transaction_id", txID).
		Msg("transaction finished")

	return record, true
}

// Pending returns the number of unfinished tickets.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// ClearResults clears the cached result of the given types, or of every type
// when none is given. History is untouched.
func (t *Tracker) ClearResults(opTypes ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(opTypes) == 0 {
		t.results = make(map[string]domain.OperationResult)
		return
	}
	for _, typ := range opTypes {
		delete(t.results, typ)
	}
}

// Reset returns the current state to idle. Cached results, history and open
// tickets are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = domain.TransactionState{}
	t.stateSeq = 0
}

// State returns the current state.
func (t *Tracker) State() domain.TransactionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the cached result for opType.
func (t *Tracker) Result(opType string) (domain.OperationResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[opType]
	return r, ok
}

// Results returns a copy of every cached result.
func (t *Tracker) Results() map[string]domain.OperationResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.OperationResult, len(t.results))
	for k, v := range t.results {
		out[k] = v
	}
	return out
}

// History returns the records, most recent first.
func (t *Tracker) History() []domain.TransactionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TransactionRecord, 0, t.history.Len())
	for i := 0; i < t.history.Len(); i++ {
		out = append(out, t.history.At(i).(domain.TransactionRecord))
	}
	return out
}

// Delete removes the first record with the given id and reports whether one
// was found.
func (t *Tracker) Delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := deque.New()
	found := false
	for i := 0; i < t.history.Len(); i++ {
		record := t.history.At(i).(domain.TransactionRecord)
		if !found && record.ID == id {
			found = true
			continue
		}
		kept.PushBack(record)
	}
	if found {
		t.history = kept
	}
	return found
}
