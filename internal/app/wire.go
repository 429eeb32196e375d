package app

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"steemauth/internal/api"
	"steemauth/internal/chain"
	"steemauth/internal/domain"
	"steemauth/internal/keychain"
	"steemauth/internal/metrics"
	"steemauth/internal/prompt"
	"steemauth/internal/services/auth"
	"steemauth/internal/services/dispatch"
	"steemauth/internal/services/encryption"
	"steemauth/internal/services/tracker"
	"steemauth/internal/store"
	"steemauth/internal/steemlogin"
)

// Prompter asks the user for secrets and shows signing links. Both
// prompt.Terminal and prompt.Queue implement it.
type Prompter interface {
	domain.PINHandler
	domain.ActiveKeyHandler
	domain.URLOpener
}

// Wire bundles all stores, services, and clients.
type Wire struct {
	Config     Config
	Storage    domain.Storage
	Encryption *encryption.Service
	Chain      domain.ChainClient
	SteemLogin *steemlogin.Client
	Keychain   *keychain.Bridge
	Prompts    *prompt.Queue
	Auth       *auth.Service
	Tracker    *tracker.Tracker
	Dispatcher *dispatch.Dispatcher
	Registry   *prometheus.Registry
	HTTP       *http.Client

	log     zerolog.Logger
	closers []func() error
}

// NewWire constructs the dependency graph from cfg. The dispatcher asks
// prompter for PINs and active keys; a nil prompter routes them to the
// prompt queue served over HTTP.
func NewWire(cfg Config, log zerolog.Logger, prompter Prompter) (*Wire, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	policy, err := auth.ParseSwitchPolicy(cfg.SwitchPolicy)
	if err != nil {
		return nil, err
	}

	w := Wire{
		Config: cfg,
		HTTP:   cfg.HTTP,
		log:    log,
	}
	if w.HTTP == nil {
		w.HTTP = &http.Client{Timeout: 30 * time.Second}
	}

	// Durable storage
	switch cfg.StorageBackend {
	case BackendBadger:
		db, err := store.OpenBadger(filepath.Join(cfg.Home, "db"))
		if err != nil {
			return nil, err
		}
		w.Storage = db
		w.closers = append(w.closers, db.Close)
	default:
		w.Storage = store.NewFileStore(cfg.Home)
	}

	// Chain access, with a short-lived profile cache in front
	node, err := chain.NewClient(cfg.RPCURL, cfg.ChainID,
		chain.WithHTTPClient(w.HTTP),
		chain.WithLogger(log),
	)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.Chain = node
	if cfg.CacheSize > 0 {
		cached, err := chain.NewCachedClient(node, cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		w.Chain = cached
		w.closers = append(w.closers, func() error { cached.Close(); return nil })
	}

	// Signers and prompts
	w.SteemLogin = steemlogin.New(cfg.AppName, cfg.CallbackURL,
		steemlogin.WithBaseURL(cfg.SteemLoginURL),
		steemlogin.WithAPIURL(cfg.SteemLoginAPI),
		steemlogin.WithHTTPClient(w.HTTP),
		steemlogin.WithLogger(log),
	)
	w.Keychain = keychain.NewBridge(keychain.WithLogger(log))
	w.Prompts = prompt.NewQueue(prompt.WithLogger(log))
	if prompter == nil {
		prompter = w.Prompts
	}

	// High-level services
	w.Registry = prometheus.NewRegistry()
	m := metrics.New(w.Registry)

	w.Encryption = encryption.New(cfg.AppName,
		encryption.WithIterations(cfg.Iterations),
		encryption.WithLogger(log),
	)
	w.Auth = auth.New(cfg.AppName, w.Encryption, w.Chain, w.Storage,
		auth.WithExtension(w.Keychain),
		auth.WithThirdParty(w.SteemLogin),
		auth.WithSwitchPolicy(policy),
		auth.WithAddressPrefix(cfg.AddressPrefix),
		auth.WithLogger(log),
		auth.WithMetrics(m),
	)
	w.Tracker = tracker.New(tracker.WithLogger(log))
	w.Dispatcher = dispatch.New(w.Auth, w.Encryption, w.Chain, w.Tracker,
		dispatch.WithExtension(w.Keychain),
		dispatch.WithThirdParty(w.SteemLogin),
		dispatch.WithURLOpener(prompter),
		dispatch.WithPINHandler(prompter),
		dispatch.WithActiveKeyHandler(prompter),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(m),
	)
	w.Keychain.SetLateHandler(func(req keychain.Request, resp domain.ExtensionResponse) {
		_, err := w.Dispatcher.CompleteExtension(req.ID, resp)
		if err != nil {
			log.Debug().Err(err).Str("id", req.ID).Str("kind", req.Kind).Msg("late keychain answer not reconciled")
		}
	})

	return &w, nil
}

// API returns the HTTP bridge over the wired services.
func (w *Wire) API() *api.Server {
	return api.New(w.Auth, w.Dispatcher, w.Tracker,
		api.WithKeychain(w.Keychain),
		api.WithPrompts(w.Prompts),
		api.WithGatherer(w.Registry),
		api.WithLoginURL(func(state string) string { return w.SteemLogin.LoginURL(nil, state) }),
		api.WithLogger(w.log),
	)
}

// Close waits for running hooks and releases the stores and caches.
func (w *Wire) Close() error {
	if w.Dispatcher != nil {
		w.Dispatcher.Wait()
	}

	var merr *multierror.Error
	for i := len(w.closers) - 1; i >= 0; i-- {
		err := w.closers[i]()
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	w.closers = nil

	err := merr.ErrorOrNil()
	if err != nil {
		return fmt.Errorf("could not close: %w", err)
	}
	return nil
}
