package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steemauth/internal/domain"
	"steemauth/internal/mocks"
	"steemauth/internal/services/auth"
	"steemauth/internal/services/encryption"
	"steemauth/internal/store"
)

var keys = store.Keys{Prefix: "app"}

type fixture struct {
	enc   *encryption.Service
	chain *mocks.ChainClient
	ext   *mocks.ExtensionSigner
	tp    *mocks.ThirdPartySigner
	kv    *mocks.Storage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		enc:   encryption.New("app", encryption.WithIterations(1000)),
		chain: mocks.BaselineChainClient(t),
		ext:   mocks.BaselineExtensionSigner(t),
		tp:    mocks.BaselineThirdPartySigner(t),
		kv:    mocks.BaselineStorage(t),
	}
}

func (f *fixture) service(opts ...auth.Option) *auth.Service {
	base := []auth.Option{
		auth.WithExtension(f.ext),
		auth.WithThirdParty(f.tp),
		auth.WithLogger(mocks.NoopLogger),
	}
	return auth.New("app", f.enc, f.chain, f.kv, append(base, opts...)...)
}

func (f *fixture) stored(t *testing.T, key string) string {
	t.Helper()
	v, _, err := f.kv.Get(key)
	require.NoError(t, err)
	return v
}

func TestService_LoginDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("nominal case", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()
		gen := svc.Generation()

		err := svc.LoginDirect(ctx, " Alice", mocks.GenericWIF, mocks.GenericPIN)
		require.NoError(t, err)

		sess := svc.Session()
		assert.True(t, sess.IsAuthenticated())
		assert.Equal(t, mocks.GenericUsername, sess.Username)
		assert.Equal(t, domain.AuthDirectKey, sess.AuthMethod)
		require.NotNil(t, sess.Profile)
		assert.Equal(t, mocks.GenericUsername, sess.Profile.Name)
		assert.NotEqual(t, gen, svc.Generation())

		account, ok := svc.Account(mocks.GenericUsername)
		require.True(t, ok)
		assert.Empty(t, account.AccessToken)

		// The stored key decrypts back to the WIF under the PIN key.
		pt, err := f.enc.Decrypt(account.EncryptedPrivateKey)
		require.NoError(t, err)
		assert.Equal(t, mocks.GenericWIF, pt)

		assert.Equal(t, "steem", f.stored(t, keys.LoginAuth()))
		assert.Equal(t, "alice", f.stored(t, keys.AuthName()))
		assert.Equal(t, account.EncryptedPrivateKey, f.stored(t, keys.EncryptedKey()))
		assert.NotContains(t, f.stored(t, keys.Accounts()), mocks.GenericWIF)
	})

	t.Run("active key also grants posting", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()

		err := svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericActiveWIF, mocks.GenericPIN)
		assert.NoError(t, err)
	})

	t.Run("key of another account", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()

		err := svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericOtherWIF, mocks.GenericPIN)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)

		assert.False(t, svc.Session().IsAuthenticated())
		assert.Equal(t, domain.LoggedOut, svc.Session().State)
		assert.Empty(t, svc.Accounts())
		_, ok := f.enc.Current()
		assert.False(t, ok)
	})

	t.Run("malformed key", func(t *testing.T) {
		f := newFixture(t)
		err := f.service().LoginDirect(ctx, mocks.GenericUsername, "not-a-key", mocks.GenericPIN)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("missing PIN", func(t *testing.T) {
		f := newFixture(t)
		err := f.service().LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, "")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("account does not exist", func(t *testing.T) {
		f := newFixture(t)
		f.chain.GetAccountsFunc = func(context.Context, []domain.Username) ([]domain.ChainAccount, error) {
			return nil, nil
		}
		err := f.service().LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("chain failure", func(t *testing.T) {
		f := newFixture(t)
		f.chain.GetAccountsFunc = func(context.Context, []domain.Username) ([]domain.ChainAccount, error) {
			return nil, mocks.GenericError
		}
		err := f.service().LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN)
		assert.ErrorIs(t, err, mocks.GenericError)
	})

	t.Run("failure keeps previous session", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()
		require.NoError(t, svc.LoginExtension(ctx, mocks.GenericOther))

		err := svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericOtherWIF, mocks.GenericPIN)
		require.Error(t, err)

		sess := svc.Session()
		assert.True(t, sess.IsAuthenticated())
		assert.Equal(t, mocks.GenericOther, sess.Username)
	})
}

func TestService_LoginExtension(t *testing.T) {
	ctx := context.Background()

	t.Run("nominal case", func(t *testing.T) {
		f := newFixture(t)
		var gotMessage, gotAuthority string
		f.ext.RequestSignBufferFunc = func(_ context.Context, _ domain.Username, message, authority string) (domain.ExtensionResponse, error) {
			gotMessage, gotAuthority = message, authority
			return domain.ExtensionResponse{Success: true}, nil
		}
		svc := f.service()

		require.NoError(t, svc.LoginExtension(ctx, mocks.GenericUsername))
		assert.Equal(t, "hello", gotMessage)
		assert.Equal(t, "Posting", gotAuthority)

		sess := svc.Session()
		assert.Equal(t, domain.AuthExtension, sess.AuthMethod)
		assert.Equal(t, "keychain", f.stored(t, keys.LoginAuth()))
		assert.Empty(t, f.stored(t, keys.EncryptedKey()))

		account, ok := svc.Account(mocks.GenericUsername)
		require.True(t, ok)
		assert.Empty(t, account.EncryptedPrivateKey)
		assert.Empty(t, account.AccessToken)
	})

	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t)
		f.ext.RequestSignBufferFunc = func(context.Context, domain.Username, string, string) (domain.ExtensionResponse, error) {
			return domain.ExtensionResponse{Success: false, Message: "Request was canceled by the user."}, nil
		}
		svc := f.service()

		err := svc.LoginExtension(ctx, mocks.GenericUsername)
		assert.ErrorIs(t, err, domain.ErrExtensionSigningRejected)
		assert.Contains(t, err.Error(), "canceled by the user")
		assert.Equal(t, domain.LoggedOut, svc.Session().State)
		assert.Empty(t, svc.Accounts())
	})

	t.Run("caller deadline", func(t *testing.T) {
		f := newFixture(t)
		f.ext.RequestSignBufferFunc = func(ctx context.Context, _ domain.Username, _ string, _ string) (domain.ExtensionResponse, error) {
			<-ctx.Done()
			return domain.ExtensionResponse{}, ctx.Err()
		}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := f.service().LoginExtension(cctx, mocks.GenericUsername)
		assert.ErrorIs(t, err, domain.ErrExtensionSigningRejected)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.ext.AvailableFunc = func() bool { return false }
		err := f.service().LoginExtension(ctx, mocks.GenericUsername)
		assert.ErrorIs(t, err, domain.ErrExtensionUnavailable)
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		svc := auth.New("app", f.enc, f.chain, f.kv)
		err := svc.LoginExtension(ctx, mocks.GenericUsername)
		assert.ErrorIs(t, err, domain.ErrExtensionUnavailable)
	})

	t.Run("clears the previous key", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()
		require.NoError(t, svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))

		require.NoError(t, svc.LoginExtension(ctx, mocks.GenericOther))
		_, ok := f.enc.Current()
		assert.False(t, ok)
	})
}

func TestService_LoginThirdParty(t *testing.T) {
	ctx := context.Background()

	t.Run("nominal case", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()

		require.NoError(t, svc.LoginThirdParty(ctx, mocks.GenericToken))

		sess := svc.Session()
		assert.Equal(t, domain.AuthThirdParty, sess.AuthMethod)
		assert.Equal(t, mocks.GenericUsername, sess.Username)
		assert.Equal(t, mocks.GenericToken, f.stored(t, keys.AccessToken()))
		assert.Equal(t, "steemlogin", f.stored(t, keys.LoginAuth()))

		account, ok := svc.Account(mocks.GenericUsername)
		require.True(t, ok)
		assert.Equal(t, mocks.GenericToken, account.AccessToken)
	})

	t.Run("falls back to stored token", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(keys.AccessToken(), "stored"))
		var got string
		f.tp.MeFunc = func(_ context.Context, token string) (domain.ThirdPartyProfile, error) {
			got = token
			return domain.ThirdPartyProfile{Name: mocks.GenericUsername}, nil
		}

		require.NoError(t, f.service().LoginThirdParty(ctx, ""))
		assert.Equal(t, "stored", got)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(keys.AccessToken(), mocks.GenericToken))
		f.tp.MeFunc = func(context.Context, string) (domain.ThirdPartyProfile, error) {
			return domain.ThirdPartyProfile{}, mocks.GenericError
		}
		svc := f.service()

		err := svc.LoginThirdParty(ctx, mocks.GenericToken)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
		assert.Equal(t, domain.LoggedOut, svc.Session().State)

		_, ok, err := f.kv.Get(keys.AccessToken())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t)
		err := f.service().LoginThirdParty(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()
	require.NoError(t, svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))
	gen := svc.Generation()

	require.NoError(t, svc.Logout())

	assert.Equal(t, domain.Session{}, svc.Session())
	assert.NotEqual(t, gen, svc.Generation())
	_, ok := f.enc.Current()
	assert.False(t, ok)
	for _, key := range keys.SessionPointers() {
		_, ok, err := f.kv.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	// The registry survives a plain logout.
	assert.Len(t, svc.Accounts(), 1)
}

func TestService_Logout_AggregatesErrors(t *testing.T) {
	f := newFixture(t)
	f.kv.DeleteFunc = func(string) error { return mocks.GenericError }
	svc := f.service()

	err := svc.Logout()
	require.ErrorIs(t, err, mocks.GenericError)
	// One failure per session pointer.
	assert.Equal(t, len(keys.SessionPointers()), len(unwrapAll(err)))
}

func unwrapAll(err error) []error {
	var multi interface{ WrappedErrors() []error }
	if errors.As(err, &multi) {
		return multi.WrappedErrors()
	}
	return []error{err}
}

func TestService_LogoutAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()
	require.NoError(t, svc.LoginExtension(ctx, mocks.GenericOther))
	require.NoError(t, svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))

	require.NoError(t, svc.LogoutAll())

	assert.Empty(t, svc.Accounts())
	_, ok, err := f.kv.Get(keys.Accounts())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SwitchAccount(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, f *fixture, opts ...auth.Option) *auth.Service {
		svc := f.service(opts...)
		require.NoError(t, svc.LoginDirect(ctx, mocks.GenericOther, mocks.GenericOtherWIF, mocks.GenericPIN))
		require.NoError(t, svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))
		return svc
	}

	t.Run("unknown account", func(t *testing.T) {
		f := newFixture(t)
		svc := login(t, f)
		before := svc.Session()
		gen := svc.Generation()

		err := svc.SwitchAccount(ctx, "carol")
		assert.ErrorIs(t, err, domain.ErrUnknownAccount)

		assert.Equal(t, before, svc.Session())
		assert.Equal(t, gen, svc.Generation())
		_, ok := f.enc.Current()
		assert.True(t, ok)
	})

	t.Run("trust cached clears key without network", func(t *testing.T) {
		f := newFixture(t)
		svc := login(t, f)
		f.chain.GetAccountsFunc = func(context.Context, []domain.Username) ([]domain.ChainAccount, error) {
			t.Fatal("chain must not be called")
			return nil, nil
		}
		gen := svc.Generation()

		require.NoError(t, svc.SwitchAccount(ctx, mocks.GenericOther))

		sess := svc.Session()
		assert.Equal(t, mocks.GenericOther, sess.Username)
		assert.Equal(t, domain.AuthDirectKey, sess.AuthMethod)
		require.NotNil(t, sess.Profile)
		assert.Equal(t, mocks.GenericOther, sess.Profile.Name)
		assert.NotEqual(t, gen, svc.Generation())

		_, ok := f.enc.Current()
		assert.False(t, ok)

		account, _ := svc.Account(mocks.GenericOther)
		assert.Equal(t, account.EncryptedPrivateKey, f.stored(t, keys.EncryptedKey()))
		assert.Equal(t, "bob", f.stored(t, keys.AuthName()))
	})

	t.Run("revalidate fetches the account", func(t *testing.T) {
		f := newFixture(t)
		svc := login(t, f, auth.WithSwitchPolicy(auth.Revalidate))
		calls := 0
		f.chain.GetAccountsFunc = func(_ context.Context, names []domain.Username) ([]domain.ChainAccount, error) {
			calls++
			return []domain.ChainAccount{mocks.GenericChainAccount(names[0])}, nil
		}

		require.NoError(t, svc.SwitchAccount(ctx, mocks.GenericOther))
		assert.Equal(t, 1, calls)
	})

	t.Run("revalidate failure keeps previous session", func(t *testing.T) {
		f := newFixture(t)
		svc := login(t, f, auth.WithSwitchPolicy(auth.Revalidate))
		f.chain.GetAccountsFunc = func(context.Context, []domain.Username) ([]domain.ChainAccount, error) {
			return nil, nil
		}

		err := svc.SwitchAccount(ctx, mocks.GenericOther)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)

		sess := svc.Session()
		assert.True(t, sess.IsAuthenticated())
		assert.Equal(t, mocks.GenericUsername, sess.Username)
		// The key stays cleared.
		_, ok := f.enc.Current()
		assert.False(t, ok)
	})

	t.Run("third party re-runs token exchange", func(t *testing.T) {
		f := newFixture(t)
		f.tp.MeFunc = func(context.Context, string) (domain.ThirdPartyProfile, error) {
			return domain.ThirdPartyProfile{Name: mocks.GenericOther}, nil
		}
		svc := f.service()
		require.NoError(t, svc.LoginThirdParty(ctx, mocks.GenericToken))
		require.NoError(t, svc.LoginExtension(ctx, mocks.GenericUsername))

		calls := 0
		f.tp.MeFunc = func(_ context.Context, token string) (domain.ThirdPartyProfile, error) {
			calls++
			assert.Equal(t, mocks.GenericToken, token)
			return domain.ThirdPartyProfile{Name: mocks.GenericOther}, nil
		}

		require.NoError(t, svc.SwitchAccount(ctx, mocks.GenericOther))
		assert.Equal(t, 1, calls)
		assert.Equal(t, domain.AuthThirdParty, svc.Session().AuthMethod)
		assert.Equal(t, mocks.GenericToken, f.stored(t, keys.AccessToken()))
	})
}

func TestService_RestoreFromStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service()
		require.NoError(t, svc.RestoreFromStorage(ctx))
		assert.Equal(t, domain.LoggedOut, svc.Session().State)
	})

	t.Run("direct key", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service().LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))

		// A new process: same storage, fresh key state.
		f.enc = encryption.New("app", encryption.WithIterations(1000))
		svc := f.service()
		require.NoError(t, svc.RestoreFromStorage(ctx))

		sess := svc.Session()
		assert.True(t, sess.IsAuthenticated())
		assert.Equal(t, domain.AuthDirectKey, sess.AuthMethod)
		_, ok := f.enc.Current()
		assert.False(t, ok)
	})

	t.Run("direct key from pointers only", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(keys.LoginAuth(), "steem"))
		require.NoError(t, f.kv.Set(keys.AuthName(), "alice"))
		require.NoError(t, f.kv.Set(keys.EncryptedKey(), "ciphertext"))

		svc := f.service()
		require.NoError(t, svc.RestoreFromStorage(ctx))
		account, ok := svc.Account(mocks.GenericUsername)
		require.True(t, ok)
		assert.Equal(t, "ciphertext", account.EncryptedPrivateKey)
	})

	t.Run("extension", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service().LoginExtension(ctx, mocks.GenericUsername))
		f.ext.RequestSignBufferFunc = func(context.Context, domain.Username, string, string) (domain.ExtensionResponse, error) {
			t.Fatal("restore must not ask the extension")
			return domain.ExtensionResponse{}, nil
		}

		svc := f.service()
		require.NoError(t, svc.RestoreFromStorage(ctx))
		assert.Equal(t, domain.AuthExtension, svc.Session().AuthMethod)
	})

	t.Run("third party", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service().LoginThirdParty(ctx, mocks.GenericToken))

		svc := f.service()
		require.NoError(t, svc.RestoreFromStorage(ctx))
		assert.Equal(t, domain.AuthThirdParty, svc.Session().AuthMethod)
	})

	t.Run("failure clears pointers", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service().LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))
		f.chain.GetAccountsFunc = func(context.Context, []domain.Username) ([]domain.ChainAccount, error) {
			return nil, mocks.GenericError
		}

		svc := f.service()
		err := svc.RestoreFromStorage(ctx)
		assert.ErrorIs(t, err, mocks.GenericError)
		assert.Equal(t, domain.LoggedOut, svc.Session().State)
		for _, key := range keys.SessionPointers() {
			_, ok, err := f.kv.Get(key)
			require.NoError(t, err)
			assert.False(t, ok, key)
		}
		// Registered accounts are not forgotten.
		assert.Len(t, svc.Accounts(), 1)
	})

	t.Run("unknown method", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(keys.LoginAuth(), "bogus"))
		err := f.service().RestoreFromStorage(ctx)
		assert.Error(t, err)
		_, ok, _ := f.kv.Get(keys.LoginAuth())
		assert.False(t, ok)
	})
}

func TestService_RemoveAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()
	require.NoError(t, svc.LoginExtension(ctx, mocks.GenericOther))
	require.NoError(t, svc.LoginExtension(ctx, mocks.GenericUsername))

	require.NoError(t, svc.RemoveAccount(mocks.GenericOther))
	assert.True(t, svc.Session().IsAuthenticated())
	assert.Len(t, svc.Accounts(), 1)

	require.NoError(t, svc.RemoveAccount(mocks.GenericUsername))
	assert.False(t, svc.Session().IsAuthenticated())
	assert.Empty(t, svc.Accounts())

	assert.ErrorIs(t, svc.RemoveAccount("carol"), domain.ErrUnknownAccount)
}

func TestService_RefreshProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()

	assert.ErrorIs(t, svc.RefreshProfile(ctx), domain.ErrNotAuthenticated)

	require.NoError(t, svc.LoginExtension(ctx, mocks.GenericUsername))
	f.chain.GetAccountsFunc = func(_ context.Context, names []domain.Username) ([]domain.ChainAccount, error) {
		account := mocks.GenericChainAccount(names[0])
		account.Balance = "99.000 STEEM"
		return []domain.ChainAccount{account}, nil
	}

	require.NoError(t, svc.RefreshProfile(ctx))
	assert.Equal(t, "99.000 STEEM", svc.Session().Profile.Balance)
}

func TestService_SessionIsACopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()
	require.NoError(t, svc.LoginExtension(ctx, mocks.GenericUsername))

	sess := svc.Session()
	sess.Profile.Balance = "tampered"
	assert.NotEqual(t, "tampered", svc.Session().Profile.Balance)
}

func TestService_FileStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	enc := encryption.New("app", encryption.WithIterations(1000))
	chain := mocks.BaselineChainClient(t)

	svc := auth.New("app", enc, chain, store.NewFileStore(dir))
	require.NoError(t, svc.LoginDirect(ctx, mocks.GenericUsername, mocks.GenericWIF, mocks.GenericPIN))

	restored := auth.New("app", enc, chain, store.NewFileStore(dir))
	require.NoError(t, restored.RestoreFromStorage(ctx))
	assert.Equal(t, mocks.GenericUsername, restored.Session().Username)
	assert.Len(t, restored.Accounts(), 1)
}

func TestParseSwitchPolicy(t *testing.T) {
	p, err := auth.ParseSwitchPolicy("revalidate")
	require.NoError(t, err)
	assert.Equal(t, auth.Revalidate, p)

	p, err = auth.ParseSwitchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, auth.TrustCached, p)

	_, err = auth.ParseSwitchPolicy("sometimes")
	assert.Error(t, err)
}
