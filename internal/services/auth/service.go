package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"steemauth/internal/crypto"
	"steemauth/internal/domain"
	"steemauth/internal/metrics"
	"steemauth/internal/store"
)

// loginChallenge is the buffer the extension signs to prove key ownership.
const loginChallenge = "hello"

// Option configures a Service.
type Option func(*Service)

// WithExtension sets the browser extension signer. Without it extension
// logins fail with domain.ErrExtensionUnavailable.
func WithExtension(ext domain.ExtensionSigner) Option {
	return func(s *Service) { s.extension = ext }
}

// WithThirdParty sets the third-party signer used for token logins.
func WithThirdParty(signer domain.ThirdPartySigner) Option {
	return func(s *Service) { s.thirdParty = signer }
}

// WithSwitchPolicy sets how SwitchAccount re-establishes non-token accounts.
func WithSwitchPolicy(p SwitchPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithAddressPrefix sets the public key prefix of the chain.
func WithAddressPrefix(prefix string) Option {
	return func(s *Service) { s.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log.With().Str("component", "auth").Logger() }
}

// WithMetrics sets the collectors login attempts are counted in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the authentication state machine.
//
// It owns the session and the registry; callers only get copies. Chain and
// signer calls run without holding the lock, so a login that waits on the
// user does not block readers.
type Service struct {
	enc        domain.EncryptionService
	chain      domain.ChainClient
	extension  domain.ExtensionSigner
	thirdParty domain.ThirdPartySigner
	kv         domain.Storage
	keys       store.Keys
	accounts   *store.AccountStore
	policy     SwitchPolicy
	prefix     string
	log        zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu         sync.Mutex
	session    domain.Session
	registry   domain.Registry
	profiles   map[domain.Username]*domain.ChainAccount
	generation uint64
	loaded     bool
}

// New constructs an auth Service. namespace prefixes every storage key.
func New(
	namespace string,
	enc domain.EncryptionService,
	chain domain.ChainClient,
	kv domain.Storage,
	opts ...Option,
) *Service {
	keys := store.Keys{Prefix: namespace}
	s := &Service{
		enc:      enc,
		chain:    chain,
		kv:       kv,
		keys:     keys,
		accounts: store.NewAccountStore(kv, keys),
		policy:   TrustCached,
		prefix:   crypto.DefaultAddressPrefix,
		log:      zerolog.Nop(),
		metrics:  metrics.New(nil),
		now:      time.Now,
		profiles: make(map[domain.Username]*domain.ChainAccount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginDirect verifies wif against the account's on-chain authorities,
// encrypts it under a key derived from pin and logs the account in.
//
// Steps:
//  1. Parse the WIF and fetch the account from the chain.
//  2. Check that its public key is authorized at posting level or above.
//  3. Derive the PIN key and encrypt the WIF for storage.
//  4. Register the account and persist the session pointers.
func (s *Service) LoginDirect(ctx context.Context, username domain.Username, wif, pin string) error {
	username = username.Normalize()
	err := s.loginDirect(ctx, username, wif, pin)
	s.observe(domain.AuthDirectKey, username, err)
	return err
}

func (s *Service) loginDirect(ctx context.Context, username domain.Username, wif, pin string) error {
	if pin == "" {
		return fmt.Errorf("%w: a PIN is required to protect the key at rest", domain.ErrInvalidCredential)
	}
	key, err := crypto.ParseWIF(wif)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}
	defer key.Zero()

	prev := s.begin()

	profile, err := s.fetchProfile(ctx, username)
	if err != nil {
		s.abort(prev, false)
		return err
	}

	pub := key.PublicKey().WithPrefix(s.prefix)
	if !profile.HasKey(pub.String(), domain.Posting) {
		s.abort(prev, false)
		s.log.Debug().Str("username", username.String()).Str("key", crypto.Fingerprint(pub)).Msg("key not authorized")
		return fmt.Errorf("%w: %s is not an authorized key of %s", domain.ErrInvalidCredential, pub, username)
	}

	// From here on the previous identity's key is gone.
	symmetric, err := s.enc.DeriveKey(username, pin, domain.PurposePIN)
	if err != nil {
		s.abort(prev, true)
		return fmt.Errorf("could not derive encryption key: %w", err)
	}
	ciphertext, err := s.enc.EncryptWith(symmetric, key.WIF())
	if err != nil {
		s.abort(prev, true)
		return fmt.Errorf("could not encrypt private key: %w", err)
	}

	account := domain.Account{
		Username:            username,
		AuthMethod:          domain.AuthDirectKey,
		EncryptedPrivateKey: ciphertext,
		AddedAt:             s.now(),
	}

	s.mu.Lock()
	err = s.commitLocked(account, &profile)
	s.mu.Unlock()
	if err != nil {
		s.abort(prev, true)
		return err
	}
	return nil
}

// LoginExtension asks the extension to sign a fixed challenge with the
// account's posting key. It blocks until the extension answers or ctx ends.
func (s *Service) LoginExtension(ctx context.Context, username domain.Username) error {
	username = username.Normalize()
	err := s.loginExtension(ctx, username)
	s.observe(domain.AuthExtension, username, err)
	return err
}

func (s *Service) loginExtension(ctx context.Context, username domain.Username) error {
	if s.extension == nil || !s.extension.Available() {
		return domain.ErrExtensionUnavailable
	}

	prev := s.begin()

	profile, err := s.fetchProfile(ctx, username)
	if err != nil {
		s.abort(prev, false)
		return err
	}

	resp, err := s.extension.RequestSignBuffer(ctx, username, loginChallenge, domain.Posting.ExtensionLabel())
	if err != nil {
		s.abort(prev, false)
		return fmt.Errorf("%w: %w", domain.ErrExtensionSigningRejected, err)
	}
	if !resp.Success {
		s.abort(prev, false)
		return fmt.Errorf("%w: %s", domain.ErrExtensionSigningRejected, responseMessage(resp))
	}

	account := domain.Account{
		Username:   username,
		AuthMethod: domain.AuthExtension,
		AddedAt:    s.now(),
	}

	s.mu.Lock()
	s.dropKeyLocked()
	err = s.commitLocked(account, &profile)
	s.mu.Unlock()
	if err != nil {
		s.abort(prev, true)
		return err
	}
	return nil
}

// LoginThirdParty exchanges accessToken for the signer's profile. An empty
// token falls back to the persisted one. On failure the persisted token is
// removed.
func (s *Service) LoginThirdParty(ctx context.Context, accessToken string) error {
	username, err := s.loginThirdParty(ctx, accessToken)
	s.observe(domain.AuthThirdParty, username, err)
	return err
}

func (s *Service) loginThirdParty(ctx context.Context, token string) (domain.Username, error) {
	if s.thirdParty == nil {
		return "", fmt.Errorf("%w: no third-party signer", domain.ErrHandlerNotConfigured)
	}
	if token == "" {
		stored, _, err := s.kv.Get(s.keys.AccessToken())
		if err != nil {
			return "", fmt.Errorf("could not read access token: %w", err)
		}
		token = stored
	}
	if token == "" {
		return "", fmt.Errorf("%w: no access token", domain.ErrInvalidCredential)
	}

	prev := s.begin()

	me, err := s.thirdParty.Me(ctx, token)
	if err == nil && me.Name == "" {
		err = errors.New("profile has no account name")
	}
	if err != nil {
		s.abort(prev, false)
		if derr := s.kv.Delete(s.keys.AccessToken()); derr != nil {
			s.log.Warn().Err(derr).Msg("could not remove rejected access token")
		}
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}

	username := me.Name.Normalize()
	profile := me.Account
	if profile == nil {
		fetched, err := s.fetchProfile(ctx, username)
		if err != nil {
			s.log.Warn().Err(err).Str("username", username.String()).Msg("could not fetch profile for token login")
		} else {
			profile = &fetched
		}
	}

	account := domain.Account{
		Username:    username,
		AuthMethod:  domain.AuthThirdParty,
		AccessToken: token,
		AddedAt:     s.now(),
	}

	s.mu.Lock()
	s.dropKeyLocked()
	err = s.commitLocked(account, profile)
	s.mu.Unlock()
	if err != nil {
		s.abort(prev, true)
		return username, err
	}
	return username, nil
}

// Logout clears the session, the encryption key and the persisted session
// pointers. The account registry survives.
func (s *Service) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked()
}

// LogoutAll logs out and forgets every registered account.
func (s *Service) LogoutAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *multierror.Error
	if err := s.logoutLocked(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.accounts.ClearRegistry(); err != nil {
		result = multierror.Append(result, fmt.Errorf("could not clear account registry: %w", err))
	}
	s.registry = domain.Registry{}
	s.profiles = make(map[domain.Username]*domain.ChainAccount)
	s.loaded = true

	s.log.Info().Msg("all accounts removed")
	return result.ErrorOrNil()
}

func (s *Service) logoutLocked() error {
	username := s.session.Username
	s.session = domain.Session{}
	s.dropKeyLocked()

	err := s.clearPointers()
	if username != "" {
		s.log.Info().Str("username", username.String()).Msg("logged out")
	}
	return err
}

// SwitchAccount makes a registered account the active one. The encryption key
// is always cleared, so a DirectKey account needs its PIN again. On failure the
// previous session is kept.
func (s *Service) SwitchAccount(ctx context.Context, username domain.Username) error {
	username = username.Normalize()

	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	account, ok := s.registry.Get(username)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, username)
	}
	prev := s.session
	cached := s.profiles[username]
	s.session.State = domain.Authenticating
	s.dropKeyLocked()
	s.mu.Unlock()

	profile, err := s.reestablish(ctx, account, cached)
	if err != nil {
		s.abort(prev, true)
		return fmt.Errorf("could not switch to %s: %w", username, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(account); err != nil {
		s.session = prev
		s.generation++
		return fmt.Errorf("could not persist session: %w", err)
	}
	s.activateLocked(account, profile)

	s.log.Info().
		Str("username", username.String()).
		Str("method", account.AuthMethod.String()).
		Str("policy", s.policy.String()).
		Msg("switched account")
	return nil
}

func (s *Service) reestablish(
	ctx context.Context,
	account domain.Account,
	cached *domain.ChainAccount,
) (*domain.ChainAccount, error) {
	if account.AuthMethod == domain.AuthThirdParty {
		if s.thirdParty == nil {
			return nil, fmt.Errorf("%w: no third-party signer", domain.ErrHandlerNotConfigured)
		}
		me, err := s.thirdParty.Me(ctx, account.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
		}
		if me.Name.Normalize() != account.Username {
			return nil, fmt.Errorf("%w: token belongs to %s", domain.ErrInvalidCredential, me.Name)
		}
		if me.Account != nil {
			return me.Account, nil
		}
		return cached, nil
	}

	if s.policy == TrustCached {
		return cached, nil
	}
	profile, err := s.fetchProfile(ctx, account.Username)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// RestoreFromStorage re-establishes the persisted session at startup. Any
// failure logs out and clears the persisted pointers. A restored DirectKey
// session has no encryption key until the first send asks for the PIN.
func (s *Service) RestoreFromStorage(ctx context.Context) error {
	label, ok, err := s.kv.Get(s.keys.LoginAuth())
	if err != nil {
		return fmt.Errorf("could not read persisted session: %w", err)
	}
	if !ok || label == "" {
		return nil
	}
	name, _, err := s.kv.Get(s.keys.AuthName())
	if err != nil {
		return fmt.Errorf("could not read persisted session: %w", err)
	}

	err = s.restore(ctx, label, domain.Username(name).Normalize())
	if err == nil {
		return nil
	}

	s.mu.Lock()
	s.session = domain.Session{}
	s.dropKeyLocked()
	cerr := s.clearPointers()
	s.mu.Unlock()

	if cerr != nil {
		s.log.Error().Err(cerr).Msg("could not clear persisted session")
	}
	s.log.Warn().Err(err).Str("method", label).Msg("could not restore session")
	return fmt.Errorf("could not restore session: %w", err)
}

func (s *Service) restore(ctx context.Context, label string, username domain.Username) error {
	method, ok := domain.ParseAuthMethod(label)
	if !ok {
		return fmt.Errorf("unknown login method %q", label)
	}

	if method == domain.AuthThirdParty {
		return s.LoginThirdParty(ctx, "")
	}
	if username == "" {
		return errors.New("no persisted username")
	}

	s.mu.Lock()
	err := s.loadLocked()
	account, known := s.registry.Get(username)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if !known || account.AuthMethod != method {
		account = domain.Account{Username: username, AuthMethod: method, AddedAt: s.now()}
	}
	if method == domain.AuthDirectKey && account.EncryptedPrivateKey == "" {
		ciphertext, _, err := s.kv.Get(s.keys.EncryptedKey())
		if err != nil {
			return fmt.Errorf("could not read stored key: %w", err)
		}
		if ciphertext == "" {
			return fmt.Errorf("%w: no stored key for %s", domain.ErrKeyNotAvailable, username)
		}
		account.EncryptedPrivateKey = ciphertext
	}

	prev := s.begin()

	profile, err := s.fetchProfile(ctx, username)
	if err != nil {
		s.abort(prev, false)
		return err
	}

	s.mu.Lock()
	err = s.commitLocked(account, &profile)
	s.mu.Unlock()
	if err != nil {
		s.abort(prev, false)
		return err
	}
	return nil
}

// RemoveAccount forgets a registered account. Removing the active account
// logs out.
func (s *Service) RemoveAccount(username domain.Username) error {
	username = username.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	account, ok := s.registry.Get(username)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, username)
	}
	s.registry.Remove(username)
	if err := s.accounts.SaveRegistry(s.registry); err != nil {
		s.registry.Put(account)
		return fmt.Errorf("could not save account registry: %w", err)
	}
	delete(s.profiles, username)

	s.log.Info().Str("username", username.String()).Msg("account removed")

	if s.session.Username == username {
		return s.logoutLocked()
	}
	return nil
}

// RefreshProfile re-fetches the active account's chain profile.
func (s *Service) RefreshProfile(ctx context.Context) error {
	sess := s.Session()
	if !sess.IsAuthenticated() {
		return domain.ErrNotAuthenticated
	}

	profile, err := s.fetchProfile(ctx, sess.Username)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[sess.Username] = &profile
	if s.session.Username == sess.Username {
		s.session.Profile = &profile
	}
	return nil
}

// Session returns a copy of the session.
func (s *Service) Session() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess.Profile != nil {
		profile := *sess.Profile
		sess.Profile = &profile
	}
	return sess
}

// Account returns the registered account for username.
func (s *Service) Account(username domain.Username) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.log.Error().Err(err).Msg("could not load account registry")
		return domain.Account{}, false
	}
	return s.registry.Get(username.Normalize())
}

// Accounts returns the registered accounts in insertion order.
func (s *Service) Accounts() []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.log.Error().Err(err).Msg("could not load account registry")
		return nil
	}
	return s.registry.List()
}

// Generation returns a counter that changes on every identity or key change.
func (s *Service) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// begin enters Authenticating and returns the session to fall back to.
func (s *Service) begin() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.session
	s.session.State = domain.Authenticating
	return prev
}

// abort restores prev. keyLost marks that the encryption key changed while
// authenticating.
func (s *Service) abort(prev domain.Session, keyLost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keyLost {
		s.dropKeyLocked()
	}
	if s.session.State == domain.Authenticating {
		s.session = prev
	}
}

func (s *Service) dropKeyLocked() {
	s.enc.ClearKey()
	s.generation++
}

// commitLocked registers account, persists it and makes it the active one.
func (s *Service) commitLocked(account domain.Account, profile *domain.ChainAccount) error {
	if err := s.loadLocked(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}

	prev, existed := s.registry.Get(account.Username)
	if existed && !prev.AddedAt.IsZero() {
		account.AddedAt = prev.AddedAt
	}
	s.registry.Put(account)
	if err := s.accounts.SaveRegistry(s.registry); err != nil {
		if existed {
			s.registry.Put(prev)
		} else {
			s.registry.Remove(account.Username)
		}
		return fmt.Errorf("could not save account registry: %w", err)
	}
	if err := s.persist(account); err != nil {
		return fmt.Errorf("could not persist session: %w", err)
	}

	s.activateLocked(account, profile)
	return nil
}

func (s *Service) activateLocked(account domain.Account, profile *domain.ChainAccount) {
	if profile != nil {
		s.profiles[account.Username] = profile
	}
	s.session = domain.Session{
		State:      domain.LoggedIn,
		Username:   account.Username,
		AuthMethod: account.AuthMethod,
		Profile:    s.profiles[account.Username],
	}
	s.generation++
}

func (s *Service) loadLocked() error {
	if s.loaded {
		return nil
	}
	reg, err := s.accounts.LoadRegistry()
	if err != nil {
		return err
	}
	s.registry = reg
	s.loaded = true
	return nil
}

// persist writes the session pointers of account.
func (s *Service) persist(account domain.Account) error {
	var result *multierror.Error
	set := func(key, value string) {
		if value == "" {
			if err := s.kv.Delete(key); err != nil {
				result = multierror.Append(result, fmt.Errorf("could not delete %s: %w", key, err))
			}
			return
		}
		if err := s.kv.Set(key, value); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not set %s: %w", key, err))
		}
	}

	set(s.keys.LoginAuth(), account.AuthMethod.String())
	set(s.keys.AuthName(), account.Username.String())
	set(s.keys.AccessToken(), account.AccessToken)
	set(s.keys.EncryptedKey(), account.EncryptedPrivateKey)

	return result.ErrorOrNil()
}

func (s *Service) clearPointers() error {
	var result *multierror.Error
	for _, key := range s.keys.SessionPointers() {
		if err := s.kv.Delete(key); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not delete %s: %w", key, err))
		}
	}
	return result.ErrorOrNil()
}

func (s *Service) fetchProfile(ctx context.Context, username domain.Username) (domain.ChainAccount, error) {
	accounts, err := s.chain.GetAccounts(ctx, []domain.Username{username})
	if err != nil {
		return domain.ChainAccount{}, fmt.Errorf("could not fetch account %s: %w", username, err)
	}
	if len(accounts) == 0 {
		return domain.ChainAccount{}, fmt.Errorf("%w: account %s does not exist", domain.ErrInvalidCredential, username)
	}
	return accounts[0], nil
}

func (s *Service) observe(method domain.AuthMethod, username domain.Username, err error) {
	s.metrics.Login(method, err)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username.String()).Str("method", method.String()).Msg("login failed")
		return
	}
	s.log.Info().Str("username", username.String()).Str("method", method.String()).Msg("logged in")
}

func responseMessage(resp domain.ExtensionResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.Error != "" {
		return resp.Error
	}
	return "request was not approved"
}

// Compile-time assertion that Service implements domain.AuthSession.
var _ domain.AuthSession = (*Service)(nil)
