package handler

import (
	"errors"
	"net/http"

	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/gin-gonic/gin"
)

// respondError escreve o corpo de erro padrão da API
func respondError(c *gin.Context, status int, code, message string, err error) {
	resp := model.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	}
	if err != nil {
		resp.Details = err.Error()
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	c.JSON(status, resp)
}

// respondMissingIdentity é usado quando a rota foi alcançada sem usuário atual
func respondMissingIdentity(c *gin.Context) {
	respondError(c, http.StatusUnauthorized, "IDENTITY_MISSING", "identidade do usuário ausente", model.ErrMissingIdentity)
}
