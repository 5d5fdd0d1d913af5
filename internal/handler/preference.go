package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/gin-gonic/gin"
)

// Campos aceitos pela ação save-rate-preference
const (
	fieldHourlyRate           = "hourlyRate"
	fieldContractorFeePercent = "contractorFeePercent"
	fieldAction               = "action"
)

// PreferenceHandler gerencia a leitura e a gravação das taxas do usuário
type PreferenceHandler struct {
	preferences *service.PreferenceService
}

// NewPreferenceHandler cria um novo handler de preferências
func NewPreferenceHandler(preferences *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{
		preferences: preferences,
	}
}

// GetPreferences retorna as taxas salvas do usuário atual
// @Summary Lê as taxas salvas
// @Description Strings vazias quando o usuário ainda não salvou nada
// @Tags preferences
// @Produce json
// @Success 200 {object} model.PreferenceResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/preferences [get]
func (h *PreferenceHandler) GetPreferences(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondMissingIdentity(c)
		return
	}

	defaults, err := h.preferences.Load(c.Request.Context(), userID)
	if err != nil {
		logger.FromGin(c).Error().Err(err).Str("user_id", userID).Msg("Erro ao ler preferências")
		respondError(c, http.StatusInternalServerError, "LOAD_FAILED", "Erro ao ler preferências", err)
		return
	}

	c.JSON(http.StatusOK, model.PreferenceResponse{
		Success: true,
		Data:    defaults,
	})
}

// SavePreferences executa a ação save-rate-preference
// @Summary Salva as taxas do usuário
// @Description Aceita form-encoded ou JSON com hourlyRate e contractorFeePercent. Os valores são truncados para inteiros.
// @Tags preferences
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/preferences [post]
func (h *PreferenceHandler) SavePreferences(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondMissingIdentity(c)
		return
	}

	req, err := bindSavePreference(c)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUnexpectedField):
			respondError(c, http.StatusBadRequest, "UNEXPECTED_FIELD", "Campo não permitido", err)
		case errors.Is(err, errUnknownAction):
			respondError(c, http.StatusBadRequest, "UNKNOWN_ACTION", "Ação desconhecida", err)
		default:
			respondError(c, http.StatusBadRequest, "INVALID_INPUT", "Dados inválidos", err)
		}
		return
	}

	err = h.preferences.SaveRequest(c.Request.Context(), userID, req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, model.ErrInvalidRate):
		respondError(c, http.StatusBadRequest, "INVALID_RATE", "Valor de taxa inválido", err)
	case errors.Is(err, model.ErrMissingIdentity):
		respondMissingIdentity(c)
	default:
		logger.FromGin(c).Error().Err(err).Str("user_id", userID).Msg("Erro ao salvar preferências")
		respondError(c, http.StatusInternalServerError, "SAVE_FAILED", "Erro ao salvar preferências", err)
	}
}

var errUnknownAction = errors.New("ação desconhecida")

// bindSavePreference lê o payload aceitando apenas os campos da ação
func bindSavePreference(c *gin.Context) (model.SavePreferenceRequest, error) {
	values, err := payloadValues(c)
	if err != nil {
		return model.SavePreferenceRequest{}, err
	}

	var unexpected []string
	for key := range values {
		switch key {
		case fieldHourlyRate, fieldContractorFeePercent, fieldAction, middleware.CSRFFormField:
		default:
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return model.SavePreferenceRequest{}, fmt.Errorf("%w: %v", model.ErrUnexpectedField, unexpected)
	}

	if action, ok := values[fieldAction]; ok && string(action) != model.SavePreferenceAction {
		return model.SavePreferenceRequest{}, fmt.Errorf("%w: %q", errUnknownAction, action)
	}

	return model.SavePreferenceRequest{
		HourlyRate:           values[fieldHourlyRate],
		ContractorFeePercent: values[fieldContractorFeePercent],
	}, nil
}

// payloadValues normaliza JSON e form-encoded num mapa de campos
func payloadValues(c *gin.Context) (map[string]model.FieldValue, error) {
	values := make(map[string]model.FieldValue)

	if c.ContentType() == gin.MIMEJSON {
		var raw map[string]model.FieldValue
		if err := json.NewDecoder(c.Request.Body).Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			values[k] = v
		}
		return values, nil
	}

	if err := c.Request.ParseMultipartForm(32 << 10); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			values[k] = model.FieldValue(middleware.SanitizeField(v[0]))
		}
	}
	return values, nil
}
