package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stackit/internal/auth"
	"stackit/internal/domain"
)

const (
	userContextKey = "stackit.user"
	tokenErrorKey  = "stackit.token_error"
)

type registerRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   string       `json:"expires_at"`
	User        UserResponse `json:"user"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// authenticate resolves the bearer token, if any, to a user. A request whose
// token is missing or does not verify continues anonymously; requireUser turns
// the remembered token error into a 401 on routes that need a caller.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		user, err := h.resolveToken(c, header)
		switch {
		case err == nil:
			c.Set(userContextKey, user)
		case errors.Is(err, auth.ErrInvalidToken):
			h.log.WithError(err).WithField("path", c.FullPath()).Debug("ignoring invalid bearer token")
			c.Set(tokenErrorKey, err)
		default:
			h.writeError(c, err)
			return
		}
		c.Next()
	}
}

func (h *Handler) resolveToken(c *gin.Context, header string) (*domain.User, error) {
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, fmt.Errorf("malformed authorization header: %w", auth.ErrInvalidToken)
	}

	claims, err := h.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := h.svc.Users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("token user %d no longer exists: %w", id, auth.ErrInvalidToken)
		}
		return nil, err
	}
	return user, nil
}

func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			c.Header("WWW-Authenticate", "Bearer")
			if v, ok := c.Get(tokenErrorKey); ok {
				if err, ok := v.(error); ok {
					h.writeError(c, err)
					return
				}
			}
			h.writeError(c, fmt.Errorf("authentication required: %w", domain.ErrUnauthorized))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(currentUser(c)))
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *domain.User) {
	token, expires, err := h.tokens.Issue(user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   formatTime(expires),
		User:        userToResponse(user),
	})
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: formatTime(user.CreatedAt),
	}
}

// authorToResponse omits the email address of other users.
func authorToResponse(user *domain.User) *UserResponse {
	if user == nil {
		return nil
	}
	resp := userToResponse(user)
	resp.Email = ""
	return &resp
}
