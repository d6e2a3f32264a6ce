// Package httpapi is the HTTP front of the authentication flow. Responses
// are the fixed status/body pairs of the protocol and nothing else: no
// stack traces, no downstream detail, and the same generic failure for a
// wrong code and a platform outage.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/mailgate/mailgate"
	"github.com/mailgate/mailgate/cookie"
	"github.com/mailgate/mailgate/middleware"
)

// API serves the authentication endpoints.
type API struct {
	engine *mailgate.Engine
}

// New wraps engine with the HTTP surface.
func New(engine *mailgate.Engine) *API {
	return &API{engine: engine}
}

// Routes returns the route table:
//
//	POST /auth/login    {email}              -> 200 {session}
//	POST /auth/otp      {email, otp, session}-> 200, sets all three cookies
//	POST /auth/refresh  refresh cookie       -> 200, sets access+expiry cookies
//	POST /auth/signout                       -> 200, clears all three cookies
//	GET  /auth/status   access cookie        -> 200 {email}
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", a.startLogin)
	mux.HandleFunc("POST /auth/otp", a.answerChallenge)
	mux.HandleFunc("POST /auth/refresh", a.refresh)
	mux.HandleFunc("POST /auth/signout", a.signOut)
	mux.Handle("GET /auth/status", middleware.Guard(a.engine)(http.HandlerFunc(a.status)))
	return mux
}

func (a *API) startLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	session, err := a.engine.StartLogin(requestContext(r), body.Email)
	if err != nil {
		if errors.Is(err, mailgate.ErrBadRequest) {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		http.Error(w, "Request failed", http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]string{"session": session})
}

func (a *API) answerChallenge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email   string `json:"email"`
		OTP     string `json:"otp"`
		Session string `json:"session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.OTP == "" || body.Session == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	creds, err := a.engine.AnswerChallenge(requestContext(r), body.Email, body.Session, body.OTP)
	if err != nil {
		http.Error(w, "Request failed", http.StatusBadRequest)
		return
	}

	cookie.Encode(creds.AccessToken, creds.RefreshToken, creds.AccessExpiry).Apply(w)
	w.WriteHeader(http.StatusOK)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := cookie.Extract(r.Header.Values("Cookie"), cookie.RefreshTokenName)
	if !ok {
		// No downstream call for an absent cookie.
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	creds, err := a.engine.Refresh(requestContext(r), refreshToken)
	if err != nil {
		if errors.Is(err, mailgate.ErrUnauthorized) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Request failed", http.StatusBadRequest)
		return
	}

	cookie.EncodeAccessOnly(creds.AccessToken, creds.AccessExpiry).Apply(w)
	w.WriteHeader(http.StatusOK)
}

func (a *API) signOut(w http.ResponseWriter, r *http.Request) {
	if refreshToken, ok := cookie.Extract(r.Header.Values("Cookie"), cookie.RefreshTokenName); ok {
		a.engine.SignOut(requestContext(r), refreshToken)
	}

	cookie.Clear().Apply(w)
	w.WriteHeader(http.StatusOK)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	email, err := a.engine.LookupEmail(requestContext(r), claims.Subject)
	if err != nil {
		if errors.Is(err, mailgate.ErrNotFound) {
			http.Error(w, "Email not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"email": email})
}

func requestContext(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return mailgate.WithClientIP(r.Context(), host)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
