package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"discord-chat-manager/internal/domain"
)

// CSVFormatter пишет по строке на сообщение.
type CSVFormatter struct{}

// NewCSVFormatter создает новый экземпляр CSVFormatter.
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Extension() string { return "csv" }

func (f *CSVFormatter) Write(w io.Writer, page domain.ExportPage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rowsOf(page) {
		if err := cw.Write(r.values()); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
