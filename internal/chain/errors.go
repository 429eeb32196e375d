package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"steemauth/internal/domain"
)

// StackEntry is one frame of the node's error stack.
type StackEntry struct {
	Format string         `json:"format"`
	Data   map[string]any `json:"data"`
}

// ErrorData is the structured part of a node error.
type ErrorData struct {
	Code    int          `json:"code"`
	Name    string       `json:"name"`
	Message string       `json:"message"`
	Stack   []StackEntry `json:"stack"`
}

// RPCError is a JSON-RPC error returned by the node.
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Detail())
}

// Detail renders the stack formats with their data, falling back to the
// plain message when the node sent no stack.
func (e *RPCError) Detail() string {
	if e.Data == nil || len(e.Data.Stack) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Data.Stack))
	for _, entry := range e.Data.Stack {
		if entry.Format == "" {
			continue
		}
		parts = append(parts, render(entry.Format, entry.Data))
	}
	if len(parts) == 0 {
		return e.Message
	}
	return strings.Join(parts, "; ")
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// render substitutes ${field} with the matching data value. Unknown fields
// are left as they are.
func render(format string, data map[string]any) string {
	return placeholder.ReplaceAllStringFunc(format, func(m string) string {
		field := m[2 : len(m)-1]
		v, ok := data[field]
		if !ok {
			return m
		}
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.Marshal(v)
		if err != nil {
			return m
		}
		return string(b)
	})
}

var missingAuthority = regexp.MustCompile(`missing (required )?(posting |active |owner )?authority`)

// Classify turns a broadcast failure into a *domain.TxError. Errors that are
// already classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var tx *domain.TxError
	if errors.As(err, &tx) {
		return err
	}
	msg := err.Error()
	var rpc *RPCError
	if errors.As(err, &rpc) {
		msg = rpc.Detail()
	}
	return ClassifyMessage(msg, err)
}

// ClassifyMessage classifies a failure message reported by the chain or a
// signer that relayed it.
func ClassifyMessage(msg string, cause error) *domain.TxError {
	lower := strings.ToLower(msg)
	switch {
	case missingAuthority.MatchString(lower):
		return domain.NewTxError(
			domain.ErrInsufficientAuthority,
			"The key used cannot authorize this operation. Sign it again with your active key. ("+msg+")",
			cause,
		)
	case strings.Contains(lower, "sufficient funds"),
		strings.Contains(lower, "sufficient balance"),
		strings.Contains(lower, "insufficient_balance"):
		return domain.NewTxError(
			domain.ErrInsufficientFunds,
			"Your balance is too low for this operation. ("+msg+")",
			cause,
		)
	default:
		return domain.NewTxError(domain.ErrBroadcastFailed, msg, cause)
	}
}
