package types

import (
	"encoding/json"
	"fmt"
)

// Payload is the opaque JSON body of an operation.
type Payload map[string]any

// Operation is a named chain action. On the wire it is ["name", {payload}].
type Operation struct {
	Name    string
	Payload Payload
}

// MarshalJSON encodes the operation as a two-element array.
func (o Operation) MarshalJSON() ([]byte, error) {
	payload := o.Payload
	if payload == nil {
		payload = Payload{}
	}
	return json.Marshal([]any{o.Name, payload})
}

// UnmarshalJSON decodes a two-element array.
func (o *Operation) UnmarshalJSON(b []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("operation must be a [name, payload] pair: %w", err)
	}
	if err := json.Unmarshal(pair[0], &o.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &o.Payload)
}

// BroadcastResult is the chain's acknowledgement of a broadcast transaction.
type BroadcastResult struct {
	ID       string `json:"id"`
	BlockNum uint32 `json:"block_num"`
	TrxNum   uint32 `json:"trx_num"`
	Expired  bool   `json:"expired"`
}
