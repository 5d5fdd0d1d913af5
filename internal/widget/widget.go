// Package widget renderiza o formulário HTML do estimador.
package widget

import (
	"embed"
	"html/template"
	"io"

	"github.com/cleberrangel/pert-estimator/internal/model"
)

// TemplateName é o nome registrado no gin
const TemplateName = "widget.html"

// DefaultAction é o endereço de envio do formulário
const DefaultAction = "/widget"

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Template retorna os templates para router.SetHTMLTemplate
func Template() *template.Template {
	return tmpl
}

// View contém os valores exibidos. Todos os campos já vêm formatados como texto.
type View struct {
	Action    string
	CSRFToken string

	Optimistic           string
	Likely               string
	Pessimistic          string
	HourlyRate           string
	ContractorFeePercent string

	EstimateHours  string
	ClientEstimate string
	WorkerPay      string

	Errors []model.FieldError
}

// NewView monta o formulário vazio pré-preenchido com as taxas salvas
func NewView(defaults model.PreferenceDefaults) View {
	return View{
		Action:               DefaultAction,
		HourlyRate:           defaults.HourlyRate,
		ContractorFeePercent: defaults.ContractorFeePercent,
	}
}

// WithForm repete no formulário o texto enviado pelo usuário
func (v View) WithForm(form model.EstimateForm) View {
	v.Optimistic = string(form.Optimistic)
	v.Likely = string(form.Likely)
	v.Pessimistic = string(form.Pessimistic)
	v.HourlyRate = string(form.HourlyRate)
	v.ContractorFeePercent = string(form.ContractorFeePercent)
	return v
}

// WithResult preenche os totais. Valores não finitos aparecem como "Infinity" ou "NaN".
func (v View) WithResult(result model.EstimateResult) View {
	v.EstimateHours = model.FormatNumber(result.EstimateHours)
	v.ClientEstimate = model.FormatNumber(result.ClientEstimate)
	v.WorkerPay = model.FormatNumber(result.WorkerPay)
	return v
}

// Render escreve o widget em w
func Render(w io.Writer, v View) error {
	return tmpl.ExecuteTemplate(w, TemplateName, v)
}
