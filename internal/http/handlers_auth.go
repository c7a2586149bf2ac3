package http

import (
	"net/http"

	applog "cardspend/internal/log"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, s.maxUploadBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.auth.Register(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		applog.FieldOperation, applog.OpRegister)
	NewJSONResponse().JSON(tokenResponse{Token: token}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, s.maxUploadBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().JSON(tokenResponse{Token: token}).Write(w)
}
