package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"steemauth/internal/domain"
	"steemauth/internal/services/dispatch"
)

var errBadRequest = errors.New("bad request")

type sessionResponse struct {
	Session  domain.Session   `json:"session"`
	Accounts []accountSummary `json:"accounts"`
}

// accountSummary is an account without its secrets.
type accountSummary struct {
	Username   domain.Username   `json:"username"`
	AuthMethod domain.AuthMethod `json:"auth_method"`
	Active     bool              `json:"active"`
}

type sendRequest struct {
	Payload        domain.Payload `json:"payload"`
	RequiredAuth   string         `json:"required_auth"`
	ActiveKey      string         `json:"active_key"`
	PendingMessage string         `json:"pending_message"`
	SuccessMessage string         `json:"success_message"`
}

type sendResponse struct {
	Status        domain.Status             `json:"status"`
	TransactionID string                    `json:"transaction_id,omitempty"`
	Method        string                    `json:"method"`
	URL           string                    `json:"url,omitempty"`
	Record        *domain.TransactionRecord `json:"record,omitempty"`
}

type completeRequest struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

type answerRequest struct {
	Value   string `json:"value"`
	Dismiss bool   `json:"dismiss"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, "OK\n")
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) sessionView() sessionResponse {
	sess := s.session.Session()
	accounts := s.session.Accounts()
	out := sessionResponse{Session: sess, Accounts: make([]accountSummary, 0, len(accounts))}
	for _, a := range accounts {
		out.Accounts = append(out.Accounts, accountSummary{
			Username:   a.Username,
			AuthMethod: a.AuthMethod,
			Active:     sess.IsAuthenticated() && a.Username == sess.Username,
		})
	}
	return out
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Logout(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) switchAccount(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(mux.Vars(r)["username"])
	if err := s.session.SwitchAccount(r.Context(), username); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) loginRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.loginURL(uuid.NewString()), http.StatusFound)
}

// loginCallback is the SteemLogin redirect target. The token arrives in the
// query string or, for POST, in a form or JSON body.
func (s *Server) loginCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" && r.Method == http.MethodPost {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body struct {
				AccessToken string `json:"access_token"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				s.writeError(w, fmt.Errorf("%w: %s", errBadRequest, err))
				return
			}
			token = body.AccessToken
		} else {
			token = r.PostFormValue("access_token")
		}
	}
	if token == "" {
		s.writeError(w, fmt.Errorf("%w: missing access_token", errBadRequest))
		return
	}

	if err := s.session.LoginThirdParty(r.Context(), token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	operation := mux.Vars(r)["operation"]

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %s", errBadRequest, err))
		return
	}
	auth, ok := domain.ParseAuthority(req.RequiredAuth)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: unknown authority %q", errBadRequest, req.RequiredAuth))
		return
	}

	res, err := s.dispatcher.Send(r.Context(), operation, req.Payload, dispatch.Options{
		RequiredAuth:      auth,
		ExplicitActiveKey: req.ActiveKey,
		PendingMessage:    req.PendingMessage,
		SuccessMessage:    req.SuccessMessage,
	})

	var pending *domain.PendingSignatureError
	switch {
	case errors.As(err, &pending):
		s.writeJSON(w, http.StatusAccepted, sendResponse{
			Status: domain.StatusPending,
			Method: res.Method,
			URL:    pending.URL,
		})
	case err != nil:
		s.writeError(w, err)
	default:
		s.writeJSON(w, http.StatusOK, sendResponse{
			Status:        domain.StatusSuccess,
			TransactionID: res.TransactionID,
			Method:        res.Method,
			Record:        &res.Record,
		})
	}
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	operation := mux.Vars(r)["operation"]

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %s", errBadRequest, err))
		return
	}
	var failure error
	if req.Error != "" {
		failure = errors.New(req.Error)
	}

	record, err := s.dispatcher.CompleteExternal(operation, req.TransactionID, failure)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) listTransactions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.History())
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.tracker.Delete(id) {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "no transaction " + id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.State())
}

func (s *Server) listResults(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.Results())
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	operation := mux.Vars(r)["operation"]
	res, ok := s.tracker.Result(operation)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "no result for " + operation})
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// keychainRequests is polled by the browser shim, which also marks it present.
func (s *Server) keychainRequests(w http.ResponseWriter, _ *http.Request) {
	s.bridge.Touch()
	s.writeJSON(w, http.StatusOK, s.bridge.Pending())
}

func (s *Server) keychainRespond(w http.ResponseWriter, r *http.Request) {
	var resp domain.ExtensionResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		s.writeError(w, fmt.Errorf("%w: %s", errBadRequest, err))
		return
	}
	s.bridge.Touch()
	if err := s.bridge.Respond(mux.Vars(r)["id"], resp); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPrompts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.prompts.Pending())
}

func (s *Server) answerPrompt(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %s", errBadRequest, err))
		return
	}

	id := mux.Vars(r)["id"]
	var err error
	if req.Dismiss {
		err = s.prompts.Dismiss(id)
	} else {
		err = s.prompts.Answer(id, req.Value)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
