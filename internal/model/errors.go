package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRate indica valor de taxa não numérico, negativo ou fora do intervalo
	ErrInvalidRate = errors.New("valor de taxa inválido")

	// ErrMissingIdentity indica que não há usuário atual
	ErrMissingIdentity = errors.New("identidade do usuário ausente")

	// ErrUnexpectedField indica campo não previsto no payload
	ErrUnexpectedField = errors.New("campo inesperado no payload")

	// ErrInvalidInput indica entrada rejeitada no modo estrito
	ErrInvalidInput = errors.New("entrada inválida")
)

// FieldError descreve um campo rejeitado
type FieldError struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Issue string `json:"issue"`
}

// ValidationError agrega os campos rejeitados de uma requisição
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Issue))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), strings.Join(parts, "; "))
}

// Unwrap permite errors.Is(err, ErrInvalidInput)
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
