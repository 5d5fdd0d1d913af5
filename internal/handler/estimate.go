package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/gin-gonic/gin"
)

// exportFilename é o nome sugerido para a planilha exportada
const exportFilename = "estimativa.xlsx"

// EstimateHandler gerencia os endpoints JSON do estimador
type EstimateHandler struct {
	estimator *service.EstimatorService
	excel     *service.ExcelGenerator
}

// NewEstimateHandler cria um novo handler de estimativas
func NewEstimateHandler(estimator *service.EstimatorService, excel *service.ExcelGenerator) *EstimateHandler {
	return &EstimateHandler{
		estimator: estimator,
		excel:     excel,
	}
}

// Estimate calcula a estimativa e dispara a gravação das taxas do usuário
// @Summary Calcula a estimativa PERT
// @Description Calcula horas, estimativa para o cliente e pagamento. As taxas são salvas em segundo plano.
// @Tags estimate
// @Accept json
// @Produce json
// @Param request body model.EstimateForm true "Campos do formulário"
// @Success 200 {object} model.EstimateResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/estimate [post]
func (h *EstimateHandler) Estimate(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondMissingIdentity(c)
		return
	}

	var form model.EstimateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", "Dados inválidos", err)
		return
	}

	req, result, err := h.estimator.ComputeAndDisplay(c.Request.Context(), userID, form)
	if err != nil {
		h.respondEvaluateError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.EstimateResponse{
		Success: true,
		Input:   req.EstimateInput,
		Rates:   req.RateInput,
		Result:  result,
	})
}

// Export calcula a estimativa e devolve uma planilha. Não grava as taxas.
// @Summary Exporta a estimativa em Excel
// @Tags estimate
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param request body model.EstimateForm true "Campos do formulário"
// @Success 200 {file} binary
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/estimate/export [post]
func (h *EstimateHandler) Export(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	var form model.EstimateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", "Dados inválidos", err)
		return
	}

	req, result, err := h.estimator.Evaluate(ctx, form)
	if err != nil {
		h.respondEvaluateError(c, err)
		return
	}

	buf, err := h.excel.Generate(ctx, req, result)
	if err != nil {
		log.Error().Err(err).Msg("Erro ao gerar planilha")
		logger.Audit(ctx, logger.AuditEvent{
			Action:   logger.AuditActionEstimateExport,
			UserID:   middleware.UserID(c),
			Resource: "estimate",
			ClientIP: c.ClientIP(),
			Success:  false,
			Error:    err.Error(),
		})
		respondError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Erro ao gerar planilha", err)
		return
	}

	metrics.Get().IncrementExport()
	logger.Audit(ctx, logger.AuditEvent{
		Action:   logger.AuditActionEstimateExport,
		UserID:   middleware.UserID(c),
		Resource: "estimate",
		ClientIP: c.ClientIP(),
		Success:  true,
		Duration: time.Since(start).Milliseconds(),
		Details: map[string]interface{}{
			"bytes": buf.Len(),
		},
	})

	c.Header("Content-Disposition", "attachment; filename="+exportFilename)
	c.Data(http.StatusOK, service.ExportContentType, buf.Bytes())
}

func (h *EstimateHandler) respondEvaluateError(c *gin.Context, err error) {
	if errors.Is(err, model.ErrInvalidInput) {
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", "Campos inválidos", err)
		return
	}
	logger.FromGin(c).Error().Err(err).Msg("Erro ao calcular estimativa")
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Erro interno do servidor", err)
}
