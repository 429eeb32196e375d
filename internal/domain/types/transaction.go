package types

import "time"

// Status is the lifecycle of a tracked transaction.
type Status string

const (
	StatusIdle    Status = ""
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// TransactionRecord is an immutable entry of the history log.
type TransactionRecord struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Status        Status    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Message       string    `json:"message"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransactionState is the tracker's "current" slot.
type TransactionState struct {
	Type           string `json:"type"`
	Status         Status `json:"status"`
	TransactionID  string `json:"transaction_id,omitempty"`
	PendingMessage string `json:"pending_message,omitempty"`
	SuccessMessage string `json:"success_message,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// IsPending reports whether the slot awaits a result.
func (s TransactionState) IsPending() bool { return s.Status == StatusPending }

// OperationResult is the per-operation-type cached outcome shown by a UI.
type OperationResult struct {
	Status  Status `json:"status,omitempty"`
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
