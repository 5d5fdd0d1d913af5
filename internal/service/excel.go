package service

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Estimativa"

// ExportContentType é o content type do arquivo gerado
const ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExcelGenerator gera a planilha de uma estimativa
type ExcelGenerator struct{}

// NewExcelGenerator cria um novo gerador de Excel
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

type exportRow struct {
	label string
	value float64
}

// Generate gera a planilha com entradas e resultados da estimativa.
// Valores não finitos são escritos como texto.
func (g *ExcelGenerator) Generate(ctx context.Context, req model.EstimateRequest, result model.EstimateResult) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Renomeia a sheet padrão
	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return nil, fmt.Errorf("renomear sheet: %w", err)
	}

	if err := g.writeHeaders(f, []string{"Campo", "Valor"}); err != nil {
		return nil, fmt.Errorf("escrever headers: %w", err)
	}

	rows := []exportRow{
		{"Otimista (h)", req.Optimistic},
		{"Provável (h)", req.Likely},
		{"Pessimista (h)", req.Pessimistic},
		{"Valor da hora", req.HourlyRate},
		{"Taxa do contratante (%)", req.ContractorFeePercent},
		{"Estimativa (h)", result.EstimateHours},
		{"Estimativa para o cliente", result.ClientEstimate},
		{"Seu pagamento", result.WorkerPay},
	}
	if err := g.writeData(f, rows); err != nil {
		return nil, fmt.Errorf("escrever dados: %w", err)
	}

	if err := f.SetColWidth(sheetName, "A", "A", 28); err != nil {
		return nil, fmt.Errorf("ajustar colunas: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "B", 18); err != nil {
		return nil, fmt.Errorf("ajustar colunas: %w", err)
	}

	// Escreve para buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("escrever buffer: %w", err)
	}

	metrics.Get().IncrementExport()
	logger.Get(ctx).Debug().Int("bytes", buf.Len()).Msg("Planilha de estimativa gerada")
	return buf, nil
}

// writeHeaders escreve os cabeçalhos no Excel
func (g *ExcelGenerator) writeHeaders(f *excelize.File, headers []string) error {
	// Estilo do cabeçalho
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return err
		}
	}

	return nil
}

// writeData escreve uma linha por campo
func (g *ExcelGenerator) writeData(f *excelize.File, rows []exportRow) error {
	for i, row := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+2)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+2)

		if err := f.SetCellValue(sheetName, labelCell, row.label); err != nil {
			return err
		}

		var value interface{} = row.value
		if math.IsNaN(row.value) || math.IsInf(row.value, 0) {
			value = model.FormatNumber(row.value)
		}
		if err := f.SetCellValue(sheetName, valueCell, value); err != nil {
			return err
		}
	}
	return nil
}
