package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steemauth/internal/api"
	"steemauth/internal/domain"
	"steemauth/internal/keychain"
	"steemauth/internal/metrics"
	"steemauth/internal/mocks"
	"steemauth/internal/prompt"
	"steemauth/internal/services/auth"
	"steemauth/internal/services/dispatch"
	"steemauth/internal/services/encryption"
	"steemauth/internal/services/tracker"
)

type fixture struct {
	tp      *mocks.ThirdPartySigner
	bridge  *keychain.Bridge
	prompts *prompt.Queue
	auth    *auth.Service
	tracker *tracker.Tracker
	srv     *httptest.Server

	dispatcher *dispatch.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	f := &fixture{
		tp:      mocks.BaselineThirdPartySigner(t),
		bridge:  keychain.NewBridge(),
		prompts: prompt.NewQueue(),
		tracker: tracker.New(),
	}
	enc := encryption.New("app", encryption.WithIterations(1000))
	chain := mocks.BaselineChainClient(t)

	f.auth = auth.New("app", enc, chain, mocks.BaselineStorage(t),
		auth.WithExtension(f.bridge),
		auth.WithThirdParty(f.tp),
		auth.WithMetrics(m),
	)
	d := dispatch.New(f.auth, enc, chain, f.tracker,
		dispatch.WithExtension(f.bridge),
		dispatch.WithThirdParty(f.tp),
		dispatch.WithURLOpener(f.prompts),
		dispatch.WithPINHandler(f.prompts),
		dispatch.WithActiveKeyHandler(f.prompts),
		dispatch.WithMetrics(m),
	)
	f.dispatcher = d
	f.bridge.SetLateHandler(func(req keychain.Request, resp domain.ExtensionResponse) {
		_, _ = d.CompleteExtension(req.ID, resp)
	})
	server := api.New(f.auth, d, f.tracker,
		api.WithKeychain(f.bridge),
		api.WithPrompts(f.prompts),
		api.WithGatherer(reg),
		api.WithLoginURL(func(state string) string { return "https://steemlogin.com/oauth2/authorize?state=" + state }),
		api.WithLogger(mocks.NoopLogger),
	)

	f.srv = httptest.NewServer(server.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp, _ := f.do(t, http.MethodGet, "/login/steemlogin/callback?access_token="+mocks.GenericToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

type sessionBody struct {
	Session struct {
		State      string `json:"state"`
		Username   string `json:"username"`
		AuthMethod string `json:"auth_method"`
	} `json:"session"`
	Accounts []struct {
		Username string `json:"username"`
		Active   bool   `json:"active"`
	} `json:"accounts"`
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))
}

func TestServer_Login(t *testing.T) {
	t.Run("redirect", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.do(t, http.MethodGet, "/login/steemlogin", nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Location"), "/oauth2/authorize?state=")
	})

	t.Run("callback", func(t *testing.T) {
		f := newFixture(t)
		resp, body := f.do(t, http.MethodGet, "/session", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "logged_out", decode[sessionBody](t, body).Session.State)

		resp, body = f.do(t, http.MethodPost, "/login/steemlogin/callback", map[string]string{"access_token": mocks.GenericToken})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, string(body), mocks.GenericToken)

		sess := decode[sessionBody](t, body)
		assert.Equal(t, "logged_in", sess.Session.State)
		assert.Equal(t, "alice", sess.Session.Username)
		assert.Equal(t, "steemlogin", sess.Session.AuthMethod)
		require.Len(t, sess.Accounts, 1)
		assert.True(t, sess.Accounts[0].Active)
	})

	t.Run("form callback", func(t *testing.T) {
		f := newFixture(t)
		resp, err := http.PostForm(f.srv.URL+"/login/steemlogin/callback", url.Values{"access_token": {mocks.GenericToken}})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, f.auth.Session().IsAuthenticated())
	})

	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.do(t, http.MethodGet, "/login/steemlogin/callback", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newFixture(t)
		f.tp.MeFunc = func(context.Context, string) (domain.ThirdPartyProfile, error) {
			return domain.ThirdPartyProfile{}, mocks.GenericError
		}
		resp, body := f.do(t, http.MethodGet, "/login/steemlogin/callback?access_token=bad", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, decode[map[string]string](t, body)["error"], "invalid credential")
	})
}

func TestServer_SessionControl(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	resp, _ := f.do(t, http.MethodPost, "/switch/carol", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/switch/alice", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decode[sessionBody](t, body)
	assert.Equal(t, "logged_out", sess.Session.State)
	require.Len(t, sess.Accounts, 1)
	assert.False(t, sess.Accounts[0].Active)
}

func TestServer_Send(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		f := newFixture(t)
		resp, body := f.do(t, http.MethodPost, "/transactions/vote", map[string]any{"payload": map[string]any{}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "not authenticated", decode[map[string]string](t, body)["error"])
	})

	t.Run("bad authority", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		resp, _ := f.do(t, http.MethodPost, "/transactions/vote", map[string]any{"required_auth": "root"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("broadcast and history", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		resp, body := f.do(t, http.MethodPost, "/transactions/vote", map[string]any{
			"payload":         map[string]any{"voter": "alice", "author": "bob", "permlink": "p", "weight": 10000},
			"success_message": "Voted!",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		sent := decode[map[string]any](t, body)
		assert.Equal(t, "success", sent["status"])
		assert.Equal(t, mocks.GenericTxID, sent["transaction_id"])
		assert.Equal(t, "steemlogin", sent["method"])

		resp, body = f.do(t, http.MethodGet, "/results/vote", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Voted! Transaction ID: "+mocks.GenericTxID, decode[domain.OperationResult](t, body).Success)

		resp, _ = f.do(t, http.MethodGet, "/results/transfer", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, body = f.do(t, http.MethodGet, "/results", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, decode[map[string]domain.OperationResult](t, body), "vote")

		resp, body = f.do(t, http.MethodGet, "/state", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, domain.StatusSuccess, decode[domain.TransactionState](t, body).Status)

		resp, body = f.do(t, http.MethodGet, "/transactions", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		history := decode[[]domain.TransactionRecord](t, body)
		require.Len(t, history, 1)
		assert.Equal(t, mocks.GenericTxID, history[0].ID)

		resp, _ = f.do(t, http.MethodDelete, "/transactions/"+mocks.GenericTxID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp, _ = f.do(t, http.MethodDelete, "/transactions/"+mocks.GenericTxID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("signing link and completion", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		resp, body := f.do(t, http.MethodPost, "/transactions/transfer", map[string]any{
			"payload":       mocks.GenericPayload,
			"required_auth": "active",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		pending := decode[map[string]any](t, body)
		assert.Equal(t, "pending", pending["status"])
		assert.Contains(t, pending["url"], "/sign/transfer")

		// The link is also queued for the UI.
		resp, body = f.do(t, http.MethodGet, "/prompts", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		prompts := decode[[]prompt.Prompt](t, body)
		require.Len(t, prompts, 1)
		assert.Equal(t, prompt.KindURL, prompts[0].Kind)
		assert.Equal(t, pending["url"], prompts[0].URL)

		resp, body = f.do(t, http.MethodPost, "/transactions/transfer/complete", map[string]any{"transaction_id": "tx9"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		record := decode[domain.TransactionRecord](t, body)
		assert.Equal(t, domain.StatusSuccess, record.Status)
		assert.Equal(t, "tx9", record.TransactionID)

		resp, _ = f.do(t, http.MethodPost, "/transactions/transfer/complete", map[string]any{"transaction_id": "tx9"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("classified failure", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.tp.BroadcastFunc = func(context.Context, string, []domain.Operation) (domain.BroadcastResult, error) {
			return domain.BroadcastResult{}, io.ErrUnexpectedEOF
		}

		resp, _ := f.do(t, http.MethodPost, "/transactions/vote", map[string]any{"payload": map[string]any{}})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestServer_Keychain(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.bridge.Available())

	resp, body := f.do(t, http.MethodGet, "/keychain/requests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]keychain.Request](t, body))
	assert.True(t, f.bridge.Available())

	done := make(chan error, 1)
	go func() {
		done <- f.auth.LoginExtension(context.Background(), mocks.GenericUsername)
	}()

	var requests []keychain.Request
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/keychain/requests", nil)
		requests = decode[[]keychain.Request](t, body)
		return len(requests) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, keychain.KindSignBuffer, requests[0].Kind)

	resp, _ = f.do(t, http.MethodPost, "/keychain/requests/"+requests[0].ID, domain.ExtensionResponse{Success: true, Result: "sig"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NoError(t, <-done)
	assert.Equal(t, domain.AuthExtension, f.auth.Session().AuthMethod)

	resp, _ = f.do(t, http.MethodPost, "/keychain/requests/"+requests[0].ID, domain.ExtensionResponse{Success: true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_KeychainLateAnswer(t *testing.T) {
	f := newFixture(t)
	f.bridge.Touch()

	done := make(chan error, 1)
	go func() {
		done <- f.auth.LoginExtension(context.Background(), mocks.GenericUsername)
	}()
	require.Eventually(t, func() bool { return len(f.bridge.Pending()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, f.bridge.Respond(f.bridge.Pending()[0].ID, domain.ExtensionResponse{Success: true, Result: "sig"}))
	require.NoError(t, <-done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.dispatcher.Send(ctx, "vote", domain.Payload{"voter": "alice"}, dispatch.Options{})
	require.ErrorIs(t, err, domain.ErrPendingExternalSignature)

	resp, body := f.do(t, http.MethodGet, "/results/vote", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StatusPending, decode[domain.OperationResult](t, body).Status)

	// The shim still sees the request and posts the approval late.
	resp, body = f.do(t, http.MethodGet, "/keychain/requests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	requests := decode[[]keychain.Request](t, body)
	require.Len(t, requests, 1)
	assert.Equal(t, keychain.KindBroadcast, requests[0].Kind)

	resp, _ = f.do(t, http.MethodPost, "/keychain/requests/"+requests[0].ID, domain.ExtensionResponse{
		Success: true,
		Result:  map[string]any{"id": mocks.GenericTxID},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/results/vote", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[domain.OperationResult](t, body)
	assert.Equal(t, domain.StatusSuccess, result.Status)
	assert.Contains(t, result.Success, mocks.GenericTxID)
}

func TestServer_Prompts(t *testing.T) {
	f := newFixture(t)

	done := make(chan string, 1)
	go func() {
		pin, _ := f.prompts.RequestPIN(context.Background(), mocks.GenericUsername)
		done <- pin
	}()

	var prompts []prompt.Prompt
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/prompts", nil)
		prompts = decode[[]prompt.Prompt](t, body)
		return len(prompts) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, prompt.KindPIN, prompts[0].Kind)

	resp, _ := f.do(t, http.MethodPost, "/prompts/"+prompts[0].ID, map[string]any{"value": mocks.GenericPIN})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, mocks.GenericPIN, <-done)

	resp, _ = f.do(t, http.MethodPost, "/prompts/"+prompts[0].ID, map[string]any{"dismiss": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, _ := f.do(t, http.MethodPost, "/transactions/vote", map[string]any{"payload": map[string]any{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `steemauth_sends_total{method="steemlogin",outcome="success"} 1`)
	assert.Contains(t, string(body), `steemauth_logins_total{method="steemlogin",outcome="success"} 1`)
}
