package httpserver

import (
	"net/http"

	"topup-store/internal/auth"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type signInRequest struct {
	// Identifier is an email address or a username.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (a *api) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.Auth.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *api) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.Auth.SignIn(r.Context(), req.Identifier, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *api) signOut(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	if err := a.Auth.SignOut(r.Context(), p.AccessToken); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
