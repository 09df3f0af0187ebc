// Package report: обмен с Excel: список двигателей на входе, спецификация щита на выходе.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/panel-bom/internal/domain/bom"
)

const (
	SheetBOM      = "BOM"
	SheetWarnings = "Warnings"
)

var bomHeader = []interface{}{
	"type",
	"brand",
	"reference_number",
	"specification",
	"quantity",
	"unit_price",
	"total_price",
	"last_price_update",
	"note",
}

// WriteBOM пишет спецификацию в XLSX: строки в порядке BOM, последней строкой
// итог. Предупреждения, если есть, идут отдельным листом.
func WriteBOM(w io.Writer, b bom.PanelBOM) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SheetBOM); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetBOM, "A1", &bomHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, it := range b.Items {
		updated := ""
		if it.LastPriceUpdate != nil {
			updated = it.LastPriceUpdate.Format("2006-01-02")
		}
		note := it.Note
		if it.Missing {
			note = "MISSING\n" + note
		}
		excelRow := []interface{}{
			it.Type,
			it.Brand,
			it.ReferenceNumber,
			it.Specification,
			it.Quantity,
			it.UnitPrice.InexactFloat64(),
			it.TotalPrice.InexactFloat64(),
			updated,
			note,
		}
		if err := setRow(f, SheetBOM, row, excelRow); err != nil {
			return err
		}
		row++
	}

	total := []interface{}{"Total", "", "", "", "", "", b.Total().InexactFloat64()}
	if err := setRow(f, SheetBOM, row, total); err != nil {
		return err
	}

	if len(b.Warnings) > 0 {
		if _, err := f.NewSheet(SheetWarnings); err != nil {
			return fmt.Errorf("add warnings sheet: %w", err)
		}
		header := []interface{}{"category", "message"}
		if err := f.SetSheetRow(SheetWarnings, "A1", &header); err != nil {
			return fmt.Errorf("write warnings header: %w", err)
		}
		for i, wr := range b.Warnings {
			if err := setRow(f, SheetWarnings, i+2, []interface{}{wr.Category, wr.Message}); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
