package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the gin context key holding the authenticated user id.
const userIDKey = "userId"

var (
	errNoAuthHeader  = errors.New("missing Authorization header")
	errBadAuthHeader = errors.New("invalid Authorization header format")
)

// requireUser guards /devices and /users in multi-user mode. A request
// without a valid bearer token is answered with 401 before any device
// handler runs.
func (h *Handler) requireUser(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		h.unauthorized(c, err.Error())
		return
	}

	userID, err := h.services.ParseToken(token)
	if err != nil {
		h.unauthorized(c, "invalid or expired token")
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadAuthHeader
	}
	return token, nil
}

func (h *Handler) unauthorized(c *gin.Context, msg string) {
	if h.log != nil {
		h.log.Debugw("auth_rejected", "path", c.FullPath(), "reason", msg)
	}
	c.Header("WWW-Authenticate", `Bearer realm="devices"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
