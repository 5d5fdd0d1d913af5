package model

import (
	"bytes"
	"encoding/json"
)

// SavePreferenceAction é o nome da ação remota de gravação das taxas
const SavePreferenceAction = "save-rate-preference"

// SavePreferenceRequest é o schema tipado da ação save-rate-preference.
// Os valores chegam como texto (form-encoded) e são validados antes do uso.
type SavePreferenceRequest struct {
	HourlyRate           FieldValue `form:"hourlyRate" json:"hourlyRate"`
	ContractorFeePercent FieldValue `form:"contractorFeePercent" json:"contractorFeePercent"`
}

// EstimateForm são os cinco campos do formulário, ainda como texto
type EstimateForm struct {
	Optimistic           FieldValue `form:"optimistic" json:"optimistic"`
	Likely               FieldValue `form:"likely" json:"likely"`
	Pessimistic          FieldValue `form:"pessimistic" json:"pessimistic"`
	HourlyRate           FieldValue `form:"hourlyRate" json:"hourlyRate"`
	ContractorFeePercent FieldValue `form:"contractorFeePercent" json:"contractorFeePercent"`
}

// FieldValue é o texto bruto de um campo numérico. Em JSON aceita número,
// string ou null, para que o mesmo schema sirva ao formulário e à API.
type FieldValue string

// UnmarshalJSON implementa json.Unmarshaler
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FieldValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = FieldValue(n.String())
	}
	return nil
}

// EstimateResponse é a resposta do endpoint de estimativa
type EstimateResponse struct {
	Success bool           `json:"success"`
	Input   EstimateInput  `json:"input"`
	Rates   RateInput      `json:"rates"`
	Result  EstimateResult `json:"result"`
}

// PreferenceResponse é a resposta do caminho de leitura das preferências
type PreferenceResponse struct {
	Success bool               `json:"success"`
	Data    PreferenceDefaults `json:"data"`
}

// ErrorResponse representa uma resposta de erro
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}
