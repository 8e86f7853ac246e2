package api

import (
	"net/http"

	"github.com/rmoraes/epistock/internal/auth"
)

// AuthHandler exchanges the shared operator password for a session token.
type AuthHandler struct {
	JWTSecret string
	Verifier  auth.Verifier
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}

	ok, err := h.Verifier.Verify(r.Context(), req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to verify credentials")
		return
	}
	if !ok {
		jsonError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400, // 24 hours
	})

	jsonResponse(w, http.StatusOK, map[string]string{"token": token})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
