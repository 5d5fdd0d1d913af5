package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// EstimateInput contém as três estimativas de duração, em horas
type EstimateInput struct {
	Optimistic  float64 `json:"optimistic"`
	Likely      float64 `json:"likely"`
	Pessimistic float64 `json:"pessimistic"`
}

// RateInput contém o valor da hora e a taxa do contratante (%)
type RateInput struct {
	HourlyRate           float64 `json:"hourlyRate"`
	ContractorFeePercent float64 `json:"contractorFeePercent"`
}

// EstimateRequest é a entrada completa do estimador
type EstimateRequest struct {
	EstimateInput
	RateInput
}

// EstimateResult contém os valores derivados exibidos no widget.
// Nunca é persistido. Os campos podem ser não finitos (taxa de 100%).
type EstimateResult struct {
	EstimateHours  float64 `json:"estimateHours"`
	ClientEstimate float64 `json:"clientEstimate"`
	WorkerPay      float64 `json:"workerPay"`
}

// MarshalJSON serializa valores não finitos como "Infinity", "-Infinity" e "NaN",
// que encoding/json recusaria
func (r EstimateResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EstimateHours  json.RawMessage `json:"estimateHours"`
		ClientEstimate json.RawMessage `json:"clientEstimate"`
		WorkerPay      json.RawMessage `json:"workerPay"`
	}{
		EstimateHours:  jsonNumber(r.EstimateHours),
		ClientEstimate: jsonNumber(r.ClientEstimate),
		WorkerPay:      jsonNumber(r.WorkerPay),
	})
}

// IsFinite informa se todos os valores do resultado são finitos
func (r EstimateResult) IsFinite() bool {
	return isFinite(r.EstimateHours) && isFinite(r.ClientEstimate) && isFinite(r.WorkerPay)
}

// FormatNumber formata um valor para exibição no campo do widget
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func jsonNumber(v float64) json.RawMessage {
	if !isFinite(v) {
		return json.RawMessage(strconv.Quote(FormatNumber(v)))
	}
	return json.RawMessage(FormatNumber(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
