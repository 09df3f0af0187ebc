package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/panel-bom/internal/domain/bom"
)

// ReadMotors читает список двигателей из XLSX с колонками usage, power_kw, qty.
// Пустые строки пропускаются, первая ошибочная строка прерывает чтение.
func ReadMotors(r io.Reader, usages bom.Usages) ([]bom.MotorQty, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open motor list: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("motor list has no rows")
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{"usage", "power_kw", "qty"} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("motor list header: column %q is missing", c)
		}
	}

	var out []bom.MotorQty
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		cell := func(name string) string {
			j := cols[name]
			if j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		if cell("usage") == "" && cell("power_kw") == "" && cell("qty") == "" {
			continue
		}

		for _, c := range []string{"usage", "power_kw", "qty"} {
			if cell(c) == "" {
				return nil, fmt.Errorf("row %d: %s is empty", i+1, c)
			}
		}
		power, err := cast.ToFloat64E(strings.ReplaceAll(cell("power_kw"), ",", "."))
		if err != nil {
			return nil, fmt.Errorf("row %d: power_kw %q is not a number", i+1, cell("power_kw"))
		}
		// только десятичная запись: "010" это 10, а не восьмеричное 8
		qty, err := strconv.Atoi(cell("qty"))
		if err != nil {
			return nil, fmt.Errorf("row %d: qty %q is not an integer", i+1, cell("qty"))
		}
		m, err := usages.Motor(cell("usage"), power)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, bom.MotorQty{Motor: m, Qty: qty})
	}
	return out, nil
}

// MotorTemplate: пустой список двигателей с подсказкой по назначениям.
func MotorTemplate(w io.Writer, usages bom.Usages) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := []interface{}{"usage", "power_kw", "qty"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, name := range usages.Names() {
		if err := setRow(f, sheet, i+2, []interface{}{name, 0, 0}); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
