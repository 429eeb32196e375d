package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"steemauth/internal/domain"
)

// HookEvent describes a successful send.
type HookEvent struct {
	TransactionID string
	Operation     string
	Payload       domain.Payload
	Options       Options
}

// Hook is called once per successful send. Its error is only logged.
type Hook func(ctx context.Context, event HookEvent) error

// HookID identifies a registered hook.
type HookID string

type hookEntry struct {
	id   HookID
	hook Hook
}

// RegisterHook adds h and returns the id to unregister it with.
func (d *Dispatcher) RegisterHook(h Hook) HookID {
	id := HookID(uuid.NewString())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hookEntry{id: id, hook: h})
	return id
}

// UnregisterHook removes the hook and reports whether it was registered.
// Invocations already started are not interrupted.
func (d *Dispatcher) UnregisterHook(id HookID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, entry := range d.hooks {
		if entry.id == id {
			d.hooks = append(d.hooks[:i:i], d.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// Wait blocks until every hook invocation started so far has returned.
func (d *Dispatcher) Wait() {
	d.running.Wait()
}

func (d *Dispatcher) runHooks(event HookEvent) {
	d.mu.Lock()
	hooks := make([]hookEntry, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.Unlock()

	for _, entry := range hooks {
		d.running.Add(1)
		go d.runHook(entry, event)
	}
}

func (d *Dispatcher) runHook(entry hookEntry, event HookEvent) {
	defer d.running.Done()

	log := d.log.With().
		Str("hook", string(entry.id)).
		Str("operation", event.Operation).
		Str("transaction_id", event.TransactionID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("hook panicked")
		}
	}()

	if err := entry.hook(context.Background(), event); err != nil {
		log.Warn().Err(err).Msg("hook failed")
	}
}
