package handler

import (
	"errors"
	"net/http"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/cleberrangel/pert-estimator/internal/widget"
	"github.com/gin-gonic/gin"
)

// TokenSource fornece o token CSRF embutido no formulário
type TokenSource interface {
	EnsureToken(userID string) (string, error)
}

// WidgetHandler renderiza o widget HTML do estimador
type WidgetHandler struct {
	estimator   *service.EstimatorService
	preferences *service.PreferenceService
	tokens      TokenSource
}

// NewWidgetHandler cria o handler do widget.
// tokens é nil quando a identidade vem de um host upstream.
func NewWidgetHandler(estimator *service.EstimatorService, preferences *service.PreferenceService, tokens TokenSource) *WidgetHandler {
	return &WidgetHandler{
		estimator:   estimator,
		preferences: preferences,
		tokens:      tokens,
	}
}

// Show renderiza o formulário pré-preenchido com as taxas salvas
// @Summary Widget do estimador
// @Tags widget
// @Produce html
// @Success 200 {string} string "HTML"
// @Router /widget [get]
func (h *WidgetHandler) Show(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondMissingIdentity(c)
		return
	}

	// Sem as taxas salvas o widget ainda funciona, só vem vazio
	defaults, err := h.preferences.Load(c.Request.Context(), userID)
	if err != nil {
		logger.FromGin(c).Warn().Err(err).Str("user_id", userID).Msg("Erro ao ler preferências para o widget")
		defaults = model.PreferenceDefaults{}
	}

	view, ok := h.withToken(c, widget.NewView(defaults), userID)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, widget.TemplateName, view)
}

// Submit calcula a estimativa enviada pelo formulário e renderiza o widget com os totais
// @Summary Envia o formulário do widget
// @Tags widget
// @Accept x-www-form-urlencoded
// @Produce html
// @Success 200 {string} string "HTML"
// @Failure 400 {string} string "HTML com os campos rejeitados"
// @Router /widget [post]
func (h *WidgetHandler) Submit(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondMissingIdentity(c)
		return
	}

	form := model.EstimateForm{
		Optimistic:           formValue(c, "optimistic"),
		Likely:               formValue(c, "likely"),
		Pessimistic:          formValue(c, "pessimistic"),
		HourlyRate:           formValue(c, "hourlyRate"),
		ContractorFeePercent: formValue(c, "contractorFeePercent"),
	}

	view, ok := h.withToken(c, widget.NewView(model.PreferenceDefaults{}).WithForm(form), userID)
	if !ok {
		return
	}

	_, result, err := h.estimator.ComputeAndDisplay(c.Request.Context(), userID, form)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			view.Errors = verr.Fields
			c.HTML(http.StatusBadRequest, widget.TemplateName, view)
			return
		}
		logger.FromGin(c).Error().Err(err).Msg("Erro ao calcular estimativa")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Erro interno do servidor", err)
		return
	}

	c.HTML(http.StatusOK, widget.TemplateName, view.WithResult(result))
}

func (h *WidgetHandler) withToken(c *gin.Context, view widget.View, userID string) (widget.View, bool) {
	if h.tokens == nil {
		return view, true
	}
	token, err := h.tokens.EnsureToken(userID)
	if err != nil {
		logger.FromGin(c).Error().Err(err).Msg("Erro ao gerar token CSRF")
		respondError(c, http.StatusInternalServerError, "CSRF_TOKEN_ERROR", "Erro ao gerar token CSRF", err)
		return view, false
	}
	view.CSRFToken = token
	return view, true
}

func formValue(c *gin.Context, field string) model.FieldValue {
	return model.FieldValue(middleware.SanitizeField(c.PostForm(field)))
}
