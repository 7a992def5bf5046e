package server

import (
	"encoding/json"
	"net/http"

	"soundvault/core/auth"
	"soundvault/logger"
	"soundvault/model"
	"soundvault/repository"
)

// SignupRequest is the registration request body.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SignupHandler registers a new account and establishes a session.
func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, validationError("Invalid request body"))
		return
	}

	if err := validateUsername(req.Username); err != nil {
		writeError(w, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := validateEmail(req.Email); err != nil {
		writeError(w, err)
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeError(w, err)
		return
	}

	// Pre-check for field-specific conflict messages. The unique indexes
	// still catch the race below.
	if existing, err := h.users.GetUserByEmail(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	} else if existing != nil {
		writeError(w, conflictError("Email already registered"))
		return
	}
	if existing, err := h.users.GetUserByUsername(r.Context(), req.Username); err != nil {
		writeError(w, err)
		return
	} else if existing != nil {
		writeError(w, conflictError("Username already taken"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	userID, err := h.users.CreateUser(r.Context(), user)
	if err != nil {
		if err == repository.ErrDuplicateUser {
			writeError(w, conflictError("Username or email already exists"))
			return
		}
		writeError(w, err)
		return
	}
	user.ID = userID

	token, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSessionCookie(w, token, int(h.sessions.TTL().Seconds()))

	logger.Info("user registered", logger.String("username", user.Username), logger.Int64("userId", userID))

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// LoginHandler verifies credentials and establishes a session. Wrong email
// and wrong password produce the identical response so the endpoint cannot be
// used to probe which accounts exist.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, validationError("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, validationError("Email and password are required"))
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("login failed", logger.String("email", req.Email))
		writeError(w, authenticationError("Invalid email or password"))
		return
	}

	token, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSessionCookie(w, token, int(h.sessions.TTL().Seconds()))

	logger.Info("login successful", logger.String("username", user.Username))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// LogoutHandler destroys the caller's session.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionToken(r); token != "" {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
	}
	h.setSessionCookie(w, "", -1)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logout successful",
	})
}

// MeHandler returns the caller's account.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userFromContext(r.Context()),
	})
}
