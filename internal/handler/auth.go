package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/config"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/repository"
	"github.com/iliyamo/podium-scheduler/internal/utils"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, email, password, fullName, role string, cost int) (uint64, error)
	ExistsWithRole(ctx context.Context, role string) (bool, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=190"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=120"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (h *AuthHandler) timeout(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.Cfg.RequestTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// issue creates a token pair for u and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u userPart) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// CheckAdmin reports whether the trainer account has been created.
func (h *AuthHandler) CheckAdmin(c echo.Context) error {
	ctx, cancel := h.timeout(c)
	defer cancel()
	exists, err := h.Users.ExistsWithRole(ctx, string(authz.RoleTrainer))
	if err != nil {
		return respondError(c, apperr.Storage(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"exists": exists})
}

// CreateAdmin creates the single trainer account. It refuses once one exists.
func (h *AuthHandler) CreateAdmin(c echo.Context) error {
	return h.register(c, authz.RoleTrainer)
}

// Register creates a parent account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	return h.register(c, authz.RoleParent)
}

func (h *AuthHandler) register(c echo.Context, role authz.Role) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := h.timeout(c)
	defer cancel()

	if role == authz.RoleTrainer {
		exists, err := h.Users.ExistsWithRole(ctx, string(authz.RoleTrainer))
		if err != nil {
			return respondError(c, apperr.Storage(err))
		}
		if exists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "trainer account already exists", "code": "trainer_exists"})
		}
	}

	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.FullName, string(role), h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists", "code": "email_exists"})
		}
		return respondError(c, apperr.Storage(err))
	}
	resp, err := h.issue(ctx, userPart{ID: uid, Email: req.Email, FullName: strings.TrimSpace(req.FullName), Role: string(role)})
	if err != nil {
		return respondError(c, apperr.Storage(err))
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := h.timeout(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials", "code": "unauthorized"})
		}
		return respondError(c, apperr.Storage(err))
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials", "code": "unauthorized"})
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role})
	if err != nil {
		return respondError(c, apperr.Storage(err))
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return respondError(c, apperr.Invalid("refresh_token", "is required"))
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := h.timeout(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh", "code": "unauthorized"})
		}
		return respondError(c, apperr.Storage(err))
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, apperr.Storage(err))
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh", "code": "unauthorized"})
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role})
	if err != nil {
		return respondError(c, apperr.Storage(err))
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or every token of the
// bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := h.timeout(c)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": "unauthorized"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, apperr.Storage(err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return respondError(c, apperr.Invalid("refresh_token", "provide Authorization header or refresh_token"))
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
	}
	uid, _ := claims.UserID()
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return respondError(c, apperr.Storage(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in account.
func (h *AuthHandler) Me(c echo.Context) error {
	id := identity(c)
	ctx, cancel := h.timeout(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id.UserID)
	if err != nil {
		return respondError(c, apperr.Storage(err))
	}
	return c.JSON(http.StatusOK, u)
}
