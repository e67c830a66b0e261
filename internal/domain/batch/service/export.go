package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/FACorreiaa/batchdesk/internal/domain/batch/repository"
)

// entryRow is the CSV shape of an exported entry
type entryRow struct {
	ItemNumber  string `csv:"item_number"`
	Description string `csv:"description"`
	StoreCodes  string `csv:"store_codes"`
	Price       string `csv:"price"`
	Cost        string `csv:"cost"`
	Currency    string `csv:"currency"`
	Margin      string `csv:"margin_percent"`
	Barcode     string `csv:"barcode"`
	Status      string `csv:"status"`
}

// ExportEntriesCSV writes every entry of a batch as CSV with a header row.
// Store codes are joined with ";" and the margin column is empty when price or cost is missing.
func (s *Service) ExportEntriesCSV(ctx context.Context, batchID uuid.UUID, w io.Writer) error {
	entries, err := s.repo.ListEntries(ctx, batchID)
	if err != nil {
		return err
	}

	rows := make([]*entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toRow(e))
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write entries CSV: %w", err)
	}
	return nil
}

func toRow(e *repository.Entry) *entryRow {
	row := &entryRow{
		ItemNumber:  e.ItemNumber,
		Description: e.Description,
		StoreCodes:  strings.Join(e.StoreCodes, ";"),
		Price:       e.Price.String(),
		Cost:        e.Cost.String(),
		Barcode:     e.Barcode,
		Status:      e.Status,
	}

	switch {
	case e.Price != nil:
		row.Currency = e.Price.Currency()
	case e.Cost != nil:
		row.Currency = e.Cost.Currency()
	}

	if margin, ok := e.Price.MarginPercent(e.Cost); ok {
		row.Margin = margin.StringFixed(2)
	}
	return row
}
