package middleware

import (
	"net/http"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/gin-gonic/gin"
)

// DefaultIdentityHeader é o header usado quando o host upstream autentica o usuário
const DefaultIdentityHeader = "X-User-ID"

// maxIdentityLength acompanha a coluna user_id
const maxIdentityLength = 100

// HeaderIdentity retorna um middleware que confia na identidade enviada pelo host.
// O valor é opaco: não é interpretado, apenas usado como chave.
func HeaderIdentity(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultIdentityHeader
	}

	return func(c *gin.Context) {
		userID := SanitizeIdentity(c.GetHeader(header))

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "identidade do usuário ausente",
				"code":    "IDENTITY_MISSING",
			})
			return
		}

		if len(userID) > maxIdentityLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "identidade do usuário inválida",
				"code":    "IDENTITY_INVALID",
			})
			return
		}

		setIdentity(c, userID, userID)
		c.Next()
	}
}

// setIdentity grava o usuário atual no contexto do gin e no logger da requisição
func setIdentity(c *gin.Context, userID, username string) {
	c.Set("user_id", userID)
	c.Set("username", username)

	ctx := logger.WithUserInfo(c.Request.Context(), userID, username)
	c.Request = c.Request.WithContext(ctx)
}

// UserID retorna o usuário atual definido pelo middleware de identidade
func UserID(c *gin.Context) string {
	return c.GetString("user_id")
}
