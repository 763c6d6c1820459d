package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"discord-chat-manager/internal/domain"
)

const sheetName = "Messages"

// XLSXFormatter пишет страницу в книгу Excel с одним листом.
type XLSXFormatter struct{}

// NewXLSXFormatter создает новый экземпляр XLSXFormatter.
func NewXLSXFormatter() *XLSXFormatter {
	return &XLSXFormatter{}
}

func (f *XLSXFormatter) Extension() string { return "xlsx" }

func (f *XLSXFormatter) Write(w io.Writer, page domain.ExportPage) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := book.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = book.SetRowStyle(sheetName, 1, 1, style)
	}

	for i, r := range rowsOf(page) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := r.values()
		line := make([]interface{}, len(values))
		for j, v := range values {
			line[j] = v
		}
		if err := book.SetSheetRow(sheetName, cell, &line); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	_ = book.SetColWidth(sheetName, "E", "E", 80)

	if err := book.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
