// Package report builds spreadsheet exports from query results already
// computed by the store. It is a pure read-side consumer.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rmoraes/epistock/internal/model"
)

// Sheet names.
const (
	MovementsSheet = "Dispatches"
	StockSheet     = "Stock"
)

// dateTimeDisplay is the operator-facing date format (day first).
const dateTimeDisplay = "02/01/2006 15:04:05"

// Movements builds the dispatch-history workbook: one row per hand-out with
// recipient, item, code, quantity and timestamp.
func Movements(movements []model.Movement) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, MovementsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := []any{"Recipient", "Item", "Code", "Quantity", "Date/Time"}
	if err := f.SetSheetRow(MovementsSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, m := range movements {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("computing cell name: %w", err)
		}
		row := []any{m.Recipient, m.ItemName, m.ItemCode, m.Quantity, m.MovedAt.Format(dateTimeDisplay)}
		if err := f.SetSheetRow(MovementsSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	return f, nil
}

// Stock builds the current-stock workbook: one row per item with its name,
// code and balance on hand.
func Stock(items []model.Item) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, StockSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := []any{"Item", "Code", "Balance"}
	if err := f.SetSheetRow(StockSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("computing cell name: %w", err)
		}
		row := []any{item.Name, item.Code, item.Balance}
		if err := f.SetSheetRow(StockSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	return f, nil
}
