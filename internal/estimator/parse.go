package estimator

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/cleberrangel/pert-estimator/internal/model"
)

// Mode define como campos não numéricos são tratados
type Mode int

const (
	// Lenient substitui campos inválidos por zero
	Lenient Mode = iota
	// Strict rejeita campos inválidos ou negativos
	Strict
)

// Nomes dos campos, iguais aos usados no formulário e na API
const (
	FieldOptimistic           = "optimistic"
	FieldLikely               = "likely"
	FieldPessimistic          = "pessimistic"
	FieldHourlyRate           = "hourlyRate"
	FieldContractorFeePercent = "contractorFeePercent"
)

// Coercion registra um campo cujo texto não era inteiramente numérico e foi
// convertido de forma leniente (para zero ou para o prefixo numérico)
type Coercion struct {
	Field string
	Raw   string
	Value float64
}

// ParseLenient interpreta s como parseFloat: ignora espaços, usa o maior
// prefixo numérico e devolve 0 quando não há prefixo. "Infinity" e valores
// grandes demais viram ±Inf, como no parseFloat. exact é false quando o
// texto não vazio não era inteiramente numérico.
func ParseLenient(s string) (v float64, exact bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	prefix := numericPrefix(s)
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, prefix == s
}

// ParseStrict exige que todo o texto seja um número finito e não negativo.
// Campo vazio vale zero. issue descreve o problema, vazio quando aceito.
func ParseStrict(s string) (v float64, issue string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ""
	}
	if numericPrefix(s) != s {
		return 0, "não é um número"
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, "fora do intervalo"
	}
	if v < 0 {
		return 0, "não pode ser negativo"
	}
	return v, ""
}

// ParseForm converte os cinco campos do formulário.
// No modo Lenient nunca retorna erro; as conversões são devolvidas para log.
// No modo Strict retorna *model.ValidationError com todos os campos rejeitados.
func ParseForm(form model.EstimateForm, mode Mode) (model.EstimateRequest, []Coercion, error) {
	var req model.EstimateRequest
	fields := []struct {
		name string
		raw  model.FieldValue
		dst  *float64
	}{
		{FieldOptimistic, form.Optimistic, &req.Optimistic},
		{FieldLikely, form.Likely, &req.Likely},
		{FieldPessimistic, form.Pessimistic, &req.Pessimistic},
		{FieldHourlyRate, form.HourlyRate, &req.HourlyRate},
		{FieldContractorFeePercent, form.ContractorFeePercent, &req.ContractorFeePercent},
	}

	var coerced []Coercion
	var rejected []model.FieldError

	for _, f := range fields {
		raw := string(f.raw)
		if mode == Strict {
			v, issue := ParseStrict(raw)
			if issue != "" {
				rejected = append(rejected, model.FieldError{Field: f.name, Value: raw, Issue: issue})
				continue
			}
			*f.dst = v
			continue
		}

		v, exact := ParseLenient(raw)
		if !exact {
			coerced = append(coerced, Coercion{Field: f.name, Raw: raw, Value: v})
		}
		*f.dst = v
	}

	if len(rejected) > 0 {
		return model.EstimateRequest{}, nil, &model.ValidationError{Fields: rejected}
	}
	return req, coerced, nil
}

// numericPrefix devolve o maior prefixo de s no formato
// [sinal] dígitos [. dígitos] [e [sinal] dígitos] ou [sinal] Infinity
func numericPrefix(s string) string {
	i := 0
	n := len(s)
	if i < n && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], infinity) {
		return s[:i+len(infinity)]
	}

	digits := 0
	for i < n && isDigit(s[i]) {
		i++
		digits++
	}
	if i < n && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < n && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}

	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < n && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return s[:i]
}

const infinity = "Infinity"

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
