package server

import (
	"strings"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/gin-gonic/gin"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

var authSchemes = []string{"Bearer ", "Token "}

// RequireAuth resolves the Authorization header to a user and aborts with 401
// when it cannot.
func (api *TaskAPI) RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx.GetHeader("Authorization"))
		if token == "" {
			api.writeError(ctx, errors.ErrNotAuthenticated)
			return
		}

		user, err := api.auth.Resolve(ctx.Request.Context(), token)
		if err != nil {
			api.writeError(ctx, err)
			return
		}

		ctx.Set(tokenKey, token)
		ctx.Set(userKey, user)
		ctx.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	for _, scheme := range authSchemes {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return ""
}

func currentUser(ctx *gin.Context) *models.User {
	user, _ := ctx.MustGet(userKey).(*models.User)
	return user
}
