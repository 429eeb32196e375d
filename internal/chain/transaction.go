package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"steemauth/internal/crypto"
	"steemauth/internal/domain"
)

const (
	timeLayout = "2006-01-02T15:04:05"

	// maxSignAttempts bounds the expiration bumps spent looking for a
	// canonical signature.
	maxSignAttempts = 32
)

type globalProperties struct {
	HeadBlockNumber uint32 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
	Time            string `json:"time"`
}

type transaction struct {
	RefBlockNum    uint16             `json:"ref_block_num"`
	RefBlockPrefix uint32             `json:"ref_block_prefix"`
	Expiration     string             `json:"expiration"`
	Operations     []domain.Operation `json:"operations"`
	Extensions     []any              `json:"extensions"`
	Signatures     []string           `json:"signatures"`
}

// SubmitSignedOperations signs ops with key and broadcasts them in one
// transaction, waiting for inclusion in a block.
//
// Steps:
//  1. Reference the head block and set the expiration past the head time.
//  2. Have the node serialize the unsigned transaction.
//  3. Sign sha256(chain id || serialized transaction); on a non-canonical
//     signature bump the expiration by a second and sign again.
//  4. Broadcast the signed transaction synchronously.
func (c *Client) SubmitSignedOperations(
	ctx context.Context,
	ops []domain.Operation,
	key *crypto.PrivateKey,
) (domain.BroadcastResult, error) {
	var props globalProperties
	if err := c.call(ctx, "condenser_api.get_dynamic_global_properties", []any{}, &props); err != nil {
		return domain.BroadcastResult{}, err
	}
	blockID, err := hex.DecodeString(props.HeadBlockID)
	if err != nil || len(blockID) < 8 {
		return domain.BroadcastResult{}, fmt.Errorf("invalid head block id %q", props.HeadBlockID)
	}
	head, err := time.Parse(timeLayout, props.Time)
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("invalid head block time: %w", err)
	}

	tx := transaction{
		RefBlockNum:    uint16(props.HeadBlockNumber & 0xFFFF),
		RefBlockPrefix: binary.LittleEndian.Uint32(blockID[4:8]),
		Operations:     ops,
		Extensions:     []any{},
		Signatures:     []string{},
	}
	expiration := head.Add(c.expiration)

	for attempt := 0; attempt < maxSignAttempts; attempt++ {
		tx.Expiration = expiration.UTC().Format(timeLayout)

		digest, err := c.digest(ctx, tx)
		if err != nil {
			return domain.BroadcastResult{}, err
		}
		sig, err := key.SignDigest(digest)
		if errors.Is(err, crypto.ErrNonCanonical) {
			expiration = expiration.Add(time.Second)
			continue
		}
		if err != nil {
			return domain.BroadcastResult{}, fmt.Errorf("could not sign transaction: %w", err)
		}

		tx.Signatures = []string{hex.EncodeToString(sig)}
		var res domain.BroadcastResult
		if err := c.call(ctx, "condenser_api.broadcast_transaction_synchronous", []any{tx}, &res); err != nil {
			return domain.BroadcastResult{}, err
		}

		c.log.Info().Str("transaction_id", res.ID).Uint32("block_num", res.BlockNum).Msg("transaction broadcast")
		return res, nil
	}

	return domain.BroadcastResult{}, fmt.Errorf("no canonical signature after %d attempts", maxSignAttempts)
}

// digest returns the signature digest of the unsigned transaction.
func (c *Client) digest(ctx context.Context, tx transaction) ([]byte, error) {
	var serialized string
	if err := c.call(ctx, "condenser_api.get_transaction_hex", []any{tx}, &serialized); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(serialized)
	if err != nil || len(raw) == 0 {
		return nil, errors.New("invalid transaction hex")
	}
	// The serialization ends with the (empty) signature array length.
	raw = raw[:len(raw)-1]

	h := sha256.New()
	h.Write(c.chainID)
	h.Write(raw)
	return h.Sum(nil), nil
}
