package model

import (
	"strconv"
	"time"
)

// UserRatePreference é a única entidade persistida: os valores de taxa
// do usuário, sempre inteiros
type UserRatePreference struct {
	UserID               string    `json:"user_id" db:"user_id"`
	HourlyRate           int64     `json:"hourly_rate" db:"hourly_rate"`
	ContractorFeePercent int64     `json:"contractor_fee_percent" db:"contractor_fee_percent"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// PreferenceDefaults são os valores usados para pré-preencher o formulário.
// Strings vazias quando o usuário ainda não salvou nada.
type PreferenceDefaults struct {
	HourlyRate           string `json:"hourlyRate"`
	ContractorFeePercent string `json:"contractorFeePercent"`
}

// Defaults converte a preferência para os valores do formulário.
// Uma preferência nil gera campos vazios, não zero.
func (p *UserRatePreference) Defaults() PreferenceDefaults {
	if p == nil {
		return PreferenceDefaults{}
	}
	return PreferenceDefaults{
		HourlyRate:           strconv.FormatInt(p.HourlyRate, 10),
		ContractorFeePercent: strconv.FormatInt(p.ContractorFeePercent, 10),
	}
}
