// Package estimator implementa o cálculo PERT de três pontos usado pelo widget.
//
// O cálculo é puro: sem estado, sem I/O, reentrante. A persistência das
// taxas fica a cargo de service.EstimatorService.
package estimator

import (
	"math"

	"github.com/cleberrangel/pert-estimator/internal/model"
)

// HoursStep é a granularidade de arredondamento das horas estimadas
const HoursStep = 0.5

// PERTHours retorna a média ponderada (otimista + 4*provável + pessimista) / 6
func PERTHours(in model.EstimateInput) float64 {
	return (in.Optimistic + 4*in.Likely + in.Pessimistic) / 6
}

// Round arredonda para o inteiro mais próximo, empates para cima, como
// Math.round: 2.5 vira 3, -2.5 vira -2 e 0.49999999999999994 vira 0.
// Valores não finitos são devolvidos como estão.
func Round(v float64) float64 {
	f := math.Floor(v)
	if v-f >= 0.5 {
		return f + 1
	}
	return f
}

// RoundToStep arredonda v para o múltiplo de step mais próximo
func RoundToStep(v, step float64) float64 {
	if step == 0 {
		step = 1
	}
	inv := 1.0 / step
	return Round(v*inv) / inv
}

// GrossUp aplica a taxa do contratante: estimate / (1 - fee/100).
// Uma taxa de 100% divide por zero e produz Inf ou NaN, sem proteção.
func GrossUp(estimate, contractorFeePercent float64) float64 {
	return estimate / (1 - contractorFeePercent/100)
}

// Compute calcula o resultado exibido no widget.
//
// As horas são arredondadas para 0,5; o valor para o cliente e o valor do
// profissional partem das horas arredondadas. O valor para o cliente é
// arredondado para inteiro; o valor do profissional não.
func Compute(req model.EstimateRequest) model.EstimateResult {
	hours := RoundToStep(PERTHours(req.EstimateInput), HoursStep)
	estimate := hours * req.HourlyRate

	return model.EstimateResult{
		EstimateHours:  hours,
		ClientEstimate: Round(GrossUp(estimate, req.ContractorFeePercent)),
		WorkerPay:      hours * req.HourlyRate,
	}
}
