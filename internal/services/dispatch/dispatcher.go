package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"steemauth/internal/chain"
	"steemauth/internal/crypto"
	"steemauth/internal/domain"
	"steemauth/internal/metrics"
	"steemauth/internal/services/tracker"
)

// DefaultCustomJSONID is the custom_json id used when the caller gives none.
const DefaultCustomJSONID = "future"

// Signing path labels, as reported in Result.Method and the send metrics.
const (
	MethodNone        = "none"
	MethodExplicitKey = "explicit-key"
)

var (
	// ErrNothingPending is returned by CompleteExternal when no send of the
	// operation type waits for an external signature.
	ErrNothingPending = errors.New("no transaction awaiting an external signature")

	errSuperseded = errors.New("superseded by a newer request of the same type")
)

// rejectionHints are substrings of extension messages that mean the user
// declined rather than the broadcast failing. They are only consulted for
// messages the chain classification does not recognise.
var rejectionHints = []string{
	"user cancel",
	"canceled by the user",
	"cancelled by the user",
	"rejected by user",
	"declined by the user",
	"request was declined",
	"request was ignored",
}

// Options tune a single send.
type Options struct {
	// RequiredAuth is the authority the operation needs. Zero means posting.
	RequiredAuth domain.Authority
	// ExplicitActiveKey, when set, signs with this WIF and skips every other path.
	ExplicitActiveKey string `json:"-"`
	PendingMessage    string
	SuccessMessage    string
}

// Result is the outcome of a successful send.
type Result struct {
	TransactionID string
	Method        string
	Broadcast     domain.BroadcastResult
	Record        domain.TransactionRecord
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithExtension sets the Keychain extension signer.
func WithExtension(ext domain.ExtensionSigner) Option {
	return func(d *Dispatcher) { d.extension = ext }
}

// WithThirdParty sets the SteemLogin signer.
func WithThirdParty(signer domain.ThirdPartySigner) Option {
	return func(d *Dispatcher) { d.thirdParty = signer }
}

// WithURLOpener sets where signing links are handed to the user.
func WithURLOpener(opener domain.URLOpener) Option {
	return func(d *Dispatcher) { d.opener = opener }
}

// WithPINHandler sets the handler asked for the PIN of the stored key.
func WithPINHandler(h domain.PINHandler) Option {
	return func(d *Dispatcher) { d.pin = h }
}

// WithActiveKeyHandler sets the handler asked for one-off active keys.
func WithActiveKeyHandler(h domain.ActiveKeyHandler) Option {
	return func(d *Dispatcher) { d.activeKey = h }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log.With().Str("component", "dispatch").Logger() }
}

// WithMetrics sets the collectors sends are counted in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

type awaiting struct {
	ticket tracker.Ticket
	event  HookEvent
}

// Dispatcher sends operations on behalf of the active account.
type Dispatcher struct {
	session    domain.AuthSession
	enc        domain.EncryptionService
	chain      domain.ChainClient
	tracker    *tracker.Tracker
	extension  domain.ExtensionSigner
	thirdParty domain.ThirdPartySigner
	opener     domain.URLOpener
	log        zerolog.Logger
	metrics    *metrics.Metrics

	mu        sync.Mutex
	pin       domain.PINHandler
	activeKey domain.ActiveKeyHandler
	hooks     []hookEntry
	external  map[string]awaiting
	// abandoned holds extension sends whose caller stopped waiting, by
	// bridge request id.
	abandoned map[string]awaiting

	running sync.WaitGroup
}

// New constructs a Dispatcher. session provides the active identity, enc the
// key that unlocks stored private keys, chain the broadcast for locally signed
// transactions and t the status of every send.
func New(
	session domain.AuthSession,
	enc domain.EncryptionService,
	chain domain.ChainClient,
	t *tracker.Tracker,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		session:  session,
		enc:      enc,
		chain:    chain,
		tracker:  t,
		log:      zerolog.Nop(),
		metrics:  metrics.New(nil),
		external:  make(map[string]awaiting),
		abandoned: make(map[string]awaiting),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetPINHandler replaces the PIN handler. nil removes it.
func (d *Dispatcher) SetPINHandler(h domain.PINHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pin = h
}

// SetActiveKeyHandler replaces the active key handler. nil removes it.
func (d *Dispatcher) SetActiveKeyHandler(h domain.ActiveKeyHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeKey = h
}

// Send signs and broadcasts one operation.
//
// Steps:
//  1. Mark the operation type pending in the tracker.
//  2. Route to the signing path of the active account.
//  3. Finish the tracker entry with the outcome and run hooks on success.
//
// A send handed to a signing link returns a *domain.PendingSignatureError and
// stays pending until CompleteExternal is called for its type. A send whose
// ctx ends while the extension holds it returns a *domain.ExtensionPendingError
// and stays pending until CompleteExtension reports the extension's answer.
func (d *Dispatcher) Send(ctx context.Context, name string, payload domain.Payload, opts Options) (Result, error) {
	started := time.Now()
	ticket := d.tracker.Start(name, opts.PendingMessage)
	d.metrics.SetPending(d.tracker.Pending())

	op := domain.Operation{Name: name, Payload: payload}
	method, res, err := d.route(ctx, op, opts)
	d.metrics.Send(method, err, time.Since(started))

	log := d.log.With().Str("operation", name).Str("method", method).Logger()
	event := HookEvent{Operation: name, Payload: payload, Options: opts}
	event.Options.ExplicitActiveKey = ""

	var pending *domain.PendingSignatureError
	if errors.As(err, &pending) {
		d.await(name, awaiting{ticket: ticket, event: event})
		log.Info().Str("url", pending.URL).Msg("transaction awaiting external signature")
		return Result{Method: method}, err
	}
	var late *domain.ExtensionPendingError
	if errors.As(err, &late) {
		d.mu.Lock()
		d.abandoned[late.RequestID] = awaiting{ticket: ticket, event: event}
		d.mu.Unlock()
		log.Info().Str("request_id", late.RequestID).Msg("stopped waiting for the extension")
		return Result{Method: method}, err
	}

	if err != nil {
		record, _ := d.tracker.Finish(ticket, false, "", "", domain.Message(err))
		d.metrics.SetPending(d.tracker.Pending())
		log.Warn().Err(err).Msg("transaction failed")
		return Result{Method: method, Record: record}, err
	}

	record, _ := d.tracker.Finish(ticket, true, res.ID, opts.SuccessMessage, "")
	d.metrics.SetPending(d.tracker.Pending())
	log.Info().Str("transaction_id", res.ID).Msg("transaction sent")

	event.TransactionID = res.ID
	d.runHooks(event)

	return Result{TransactionID: res.ID, Method: method, Broadcast: res, Record: record}, nil
}

// CompleteExternal reconciles the result of a signing link opened by Send for
// opType. A nil err marks the send successful and runs the hooks.
func (d *Dispatcher) CompleteExternal(opType, txID string, err error) (domain.TransactionRecord, error) {
	d.mu.Lock()
	waiting, ok := d.external[opType]
	delete(d.external, opType)
	d.mu.Unlock()
	if !ok {
		return domain.TransactionRecord{}, fmt.Errorf("%w: %s", ErrNothingPending, opType)
	}

	var record domain.TransactionRecord
	if err != nil {
		record, ok = d.tracker.Finish(waiting.ticket, false, "", "", domain.Message(err))
	} else {
		record, ok = d.tracker.Finish(waiting.ticket, true, txID, waiting.event.Options.SuccessMessage, "")
	}
	d.metrics.SetPending(d.tracker.Pending())
	if !ok {
		return domain.TransactionRecord{}, fmt.Errorf("%w: %s", ErrNothingPending, opType)
	}

	log := d.log.With().Str("operation", opType).Str("transaction_id", txID).Logger()
	if err != nil {
		log.Warn().Err(err).Msg("external signature failed")
		return record, nil
	}
	log.Info().Msg("external signature completed")

	event := waiting.event
	event.TransactionID = txID
	d.runHooks(event)
	return record, nil
}

// CompleteExtension reconciles an extension answer that arrived after the
// caller of Send stopped waiting. id is the extension request id carried by
// the *domain.ExtensionPendingError Send returned.
func (d *Dispatcher) CompleteExtension(id string, resp domain.ExtensionResponse) (domain.TransactionRecord, error) {
	d.mu.Lock()
	waiting, ok := d.abandoned[id]
	delete(d.abandoned, id)
	d.mu.Unlock()
	if !ok {
		return domain.TransactionRecord{}, fmt.Errorf("%w: extension request %s", ErrNothingPending, id)
	}

	res, err := extensionOutcome(resp)
	var record domain.TransactionRecord
	if err != nil {
		record, ok = d.tracker.Finish(waiting.ticket, false, "", "", domain.Message(err))
	} else {
		record, ok = d.tracker.Finish(waiting.ticket, true, res.ID, waiting.event.Options.SuccessMessage, "")
	}
	d.metrics.SetPending(d.tracker.Pending())
	if !ok {
		return domain.TransactionRecord{}, fmt.Errorf("%w: extension request %s", ErrNothingPending, id)
	}

	log := d.log.With().Str("operation", waiting.event.Operation).Str("request_id", id).Logger()
	if err != nil {
		log.Warn().Err(err).Msg("late extension answer failed")
		return record, nil
	}
	log.Info().Str("transaction_id", res.ID).Msg("late extension answer completed")

	event := waiting.event
	event.TransactionID = res.ID
	d.runHooks(event)
	return record, nil
}

// CustomJSON sends a custom_json operation authorized by the active account's
// posting key. payload is encoded as the operation's json field.
func (d *Dispatcher) CustomJSON(ctx context.Context, id string, payload any) (Result, error) {
	if id == "" {
		id = DefaultCustomJSONID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("could not encode custom_json payload: %w", err)
	}

	auths := []string{}
	if sess := d.session.Session(); sess.Username != "" {
		auths = append(auths, sess.Username.String())
	}

	return d.Send(ctx, "custom_json", domain.Payload{
		"id":                     id,
		"required_auths":         []string{},
		"required_posting_auths": auths,
		"json":                   string(body),
	}, Options{})
}

// await records a send waiting for an external signature. A previous one of
// the same type can no longer be completed and is closed.
func (d *Dispatcher) await(opType string, w awaiting) {
	d.mu.Lock()
	prev, replaced := d.external[opType]
	d.external[opType] = w
	d.mu.Unlock()

	if replaced {
		d.tracker.Finish(prev.ticket, false, "", "", errSuperseded.Error())
		d.metrics.SetPending(d.tracker.Pending())
	}
}

func (d *Dispatcher) route(
	ctx context.Context,
	op domain.Operation,
	opts Options,
) (string, domain.BroadcastResult, error) {
	// Read the generation before the session so a switch in between is seen
	// as a change.
	gen := d.session.Generation()
	sess := d.session.Session()
	if !sess.IsAuthenticated() {
		return MethodNone, domain.BroadcastResult{}, domain.ErrNotAuthenticated
	}

	if opts.ExplicitActiveKey != "" {
		res, err := d.submit(ctx, op, opts.ExplicitActiveKey)
		return MethodExplicitKey, res, err
	}

	method := sess.AuthMethod.String()
	var (
		res domain.BroadcastResult
		err error
	)
	switch sess.AuthMethod {
	case domain.AuthExtension:
		res, err = d.viaExtension(ctx, sess.Username, op, opts.RequiredAuth)
	case domain.AuthThirdParty:
		res, err = d.viaThirdParty(ctx, sess.Username, op, opts.RequiredAuth)
	case domain.AuthDirectKey:
		res, err = d.viaDirectKey(ctx, gen, sess.Username, op, opts.RequiredAuth)
	default:
		return MethodNone, res, domain.ErrNotAuthenticated
	}
	return method, res, err
}

func (d *Dispatcher) viaExtension(
	ctx context.Context,
	username domain.Username,
	op domain.Operation,
	auth domain.Authority,
) (domain.BroadcastResult, error) {
	if d.extension == nil || !d.extension.Available() {
		return domain.BroadcastResult{}, domain.ErrExtensionUnavailable
	}

	resp, err := d.extension.RequestBroadcast(ctx, username, []domain.Operation{op}, auth.ExtensionLabel())
	var late *domain.ExtensionPendingError
	if errors.As(err, &late) {
		return domain.BroadcastResult{}, err
	}
	if err != nil {
		return domain.BroadcastResult{}, domain.NewTxError(domain.ErrBroadcastFailed, err.Error(), err)
	}
	return extensionOutcome(resp)
}

// extensionOutcome turns the extension's answer into a broadcast result or a
// classified failure. Chain errors relayed by the extension win over the
// rejection hints.
func extensionOutcome(resp domain.ExtensionResponse) (domain.BroadcastResult, error) {
	if resp.Success {
		return extensionResult(resp.Result), nil
	}

	msg := extensionMessage(resp)
	if resp.Error == "user_cancel" {
		return domain.BroadcastResult{}, userRejected(msg)
	}
	classified := chain.ClassifyMessage(msg, errors.New(msg))
	if errors.Is(classified, domain.ErrBroadcastFailed) && rejected(msg) {
		return domain.BroadcastResult{}, userRejected(msg)
	}
	return domain.BroadcastResult{}, classified
}

func userRejected(msg string) *domain.TxError {
	return domain.NewTxError(
		domain.ErrUserRejected,
		"You declined the request in Keychain. Nothing was broadcast. ("+msg+")",
		nil,
	)
}

func (d *Dispatcher) viaThirdParty(
	ctx context.Context,
	username domain.Username,
	op domain.Operation,
	auth domain.Authority,
) (domain.BroadcastResult, error) {
	if d.thirdParty == nil {
		return domain.BroadcastResult{}, fmt.Errorf("%w: no third-party signer", domain.ErrHandlerNotConfigured)
	}
	// The token only grants posting scope.
	if auth.Elevated() {
		return domain.BroadcastResult{}, d.redirect(ctx, op)
	}

	account, ok := d.session.Account(username)
	if !ok || account.AccessToken == "" {
		return domain.BroadcastResult{}, fmt.Errorf("%w: no access token for %s", domain.ErrNotAuthenticated, username)
	}

	res, err := d.thirdParty.Broadcast(ctx, account.AccessToken, []domain.Operation{op})
	if errors.Is(err, domain.ErrInvalidScope) {
		d.log.Debug().Str("operation", op.Name).Msg("token scope too narrow, falling back to signing link")
		return domain.BroadcastResult{}, d.redirect(ctx, op)
	}
	if err != nil {
		return domain.BroadcastResult{}, chain.Classify(err)
	}
	return res, nil
}

func (d *Dispatcher) redirect(ctx context.Context, op domain.Operation) error {
	link, err := d.thirdParty.SignURL(op.Name, op.Payload)
	if err != nil {
		return domain.NewTxError(domain.ErrBroadcastFailed, "could not build signing link", err)
	}
	if d.opener != nil {
		if err := d.opener.OpenURL(ctx, link); err != nil {
			d.log.Warn().Err(err).Str("operation", op.Name).Msg("could not open signing link")
		}
	}
	return &domain.PendingSignatureError{Operation: op.Name, URL: link}
}

func (d *Dispatcher) viaDirectKey(
	ctx context.Context,
	gen uint64,
	username domain.Username,
	op domain.Operation,
	auth domain.Authority,
) (domain.BroadcastResult, error) {
	if auth.Elevated() {
		d.mu.Lock()
		h := d.activeKey
		d.mu.Unlock()
		if h == nil {
			return domain.BroadcastResult{}, fmt.Errorf("%w: %s authority needs an active key", domain.ErrHandlerNotConfigured, auth)
		}
		wif, err := h.RequestActiveKey(ctx, username, op.Name, op.Payload)
		if err != nil {
			return domain.BroadcastResult{}, fmt.Errorf("could not get %s key: %w", auth, err)
		}
		return d.submit(ctx, op, wif)
	}

	wif, err := d.postingKey(ctx, gen, username)
	if err != nil {
		return domain.BroadcastResult{}, err
	}
	if d.session.Generation() != gen {
		return domain.BroadcastResult{}, fmt.Errorf("%w: account changed before signing", domain.ErrKeyNotAvailable)
	}
	return d.submit(ctx, op, wif)
}

// postingKey decrypts the stored key of username, asking for the PIN when no
// key of that account is current.
func (d *Dispatcher) postingKey(ctx context.Context, gen uint64, username domain.Username) (string, error) {
	account, ok := d.session.Account(username)
	if !ok || account.EncryptedPrivateKey == "" {
		return "", fmt.Errorf("%w: no stored key for %s", domain.ErrKeyNotAvailable, username)
	}

	if key, ok := d.enc.Current(); ok && key.Username == username {
		wif, err := d.enc.DecryptWith(key, account.EncryptedPrivateKey)
		if err == nil {
			return wif, nil
		}
		d.enc.ClearKey()
		return "", domain.NewTxError(domain.ErrDecryptionFailed, "The stored key could not be unlocked. Enter your PIN again.", err)
	}

	d.mu.Lock()
	h := d.pin
	d.mu.Unlock()
	if h == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrKeyNotAvailable, domain.ErrHandlerNotConfigured)
	}

	pin, err := h.RequestPIN(ctx, username)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrKeyNotAvailable, err)
	}
	if d.session.Generation() != gen {
		return "", fmt.Errorf("%w: account changed while waiting for the PIN", domain.ErrKeyNotAvailable)
	}

	key, err := d.enc.DeriveKey(username, pin, domain.PurposePIN)
	if err != nil {
		return "", fmt.Errorf("could not derive encryption key: %w", err)
	}
	if d.session.Generation() != gen {
		// The switch cleared the previous key; do not leave this one current.
		d.enc.ClearKey()
		return "", fmt.Errorf("%w: account changed while deriving the key", domain.ErrKeyNotAvailable)
	}
	wif, err := d.enc.DecryptWith(key, account.EncryptedPrivateKey)
	if err != nil {
		d.enc.ClearKey()
		return "", domain.NewTxError(domain.ErrDecryptionFailed, "Incorrect PIN. Please try again.", err)
	}
	return wif, nil
}

func (d *Dispatcher) submit(ctx context.Context, op domain.Operation, wif string) (domain.BroadcastResult, error) {
	key, err := crypto.ParseWIF(wif)
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}
	defer key.Zero()

	res, err := d.chain.SubmitSignedOperations(ctx, []domain.Operation{op}, key)
	if err != nil {
		return domain.BroadcastResult{}, chain.Classify(err)
	}
	return res, nil
}

func rejected(msg string) bool {
	msg = strings.ToLower(msg)
	for _, hint := range rejectionHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func extensionMessage(resp domain.ExtensionResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.Error != "" {
		return resp.Error
	}
	return "the extension did not broadcast the transaction"
}

// extensionResult reads the broadcast acknowledgement out of the extension's
// free-form result.
func extensionResult(result any) domain.BroadcastResult {
	if id, ok := result.(string); ok {
		return domain.BroadcastResult{ID: id}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return domain.BroadcastResult{}
	}
	var ack struct {
		ID            string `json:"id"`
		TxID          string `json:"tx_id"`
		TransactionID string `json:"transaction_id"`
		BlockNum      uint32 `json:"block_num"`
		TrxNum        uint32 `json:"trx_num"`
		Expired       bool   `json:"expired"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return domain.BroadcastResult{}
	}

	res := domain.BroadcastResult{BlockNum: ack.BlockNum, TrxNum: ack.TrxNum, Expired: ack.Expired}
	switch {
	case ack.ID != "":
		res.ID = ack.ID
	case ack.TxID != "":
		res.ID = ack.TxID
	default:
		res.ID = ack.TransactionID
	}
	return res
}
