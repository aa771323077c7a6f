package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-billdesk/auth"
	"github.com/diewo77/go-billdesk/httpx"
	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/internal/services"
	"github.com/diewo77/go-billdesk/validation"
)

// UserStore is the user persistence used by AuthHandler.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandler struct {
	users  UserStore
	signer *auth.Signer
	logger *zap.Logger
}

func NewAuthHandler(users UserStore, signer *auth.Signer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, signer: signer, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v := validation.Violations{}
	validation.Email("email", req.Email, v)
	validation.Required("password", req.Password, v)
	if !v.Empty() {
		writeError(w, r, h.logger, &services.ValidationError{Violations: v})
		return
	}

	user, err := h.users.ByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		writeError(w, r, h.logger, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, exp, err := h.signer.Issue(user.ID, string(user.Role))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	auth.SetSessionCookie(w, token, exp)
	h.logger.Info("user logged in", zap.String("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp, User: user})
}

type registerRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Register creates a back-office user. Admin only.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v := validation.Violations{}
	validation.Required("name", req.Name, v)
	validation.Email("email", req.Email, v)
	validation.MinLen("password", req.Password, 6, v)
	if req.Role != "" && !req.Role.Valid() {
		v["role"] = "invalid"
	}
	if !v.Empty() {
		writeError(w, r, h.logger, &services.ValidationError{Violations: v})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, h.logger, errors.Wrap(err, "hash password"))
		return
	}
	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: string(hash),
		Role:     req.Role,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, services.ErrDuplicateKey) {
			httpx.JSONError(w, http.StatusConflict, "email_already_exists", nil)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	httpx.JSON(w, http.StatusCreated, user)
}
