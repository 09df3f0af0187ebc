package refresh

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

// Колонки прайса поставщика. Порядок в файле любой, заголовок в первой строке.
const (
	ColOrderNumber  = "order_number"
	ColBrand        = "brand"
	ColRatedCurrent = "rated_current"
	ColCoilVoltage  = "coil_voltage"
	ColPrice        = "price"
)

var requiredColumns = []string{ColOrderNumber, ColBrand, ColRatedCurrent, ColCoilVoltage, ColPrice}

// ParsePriceList читает первый лист XLSX. Любая плохая строка отменяет
// весь прайс: возвращается ошибка «parse row N: ...» с номером строки листа.
func ParsePriceList(data []byte) ([]catalog.PriceObservation, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open price list: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("price list has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("price list is empty")
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("price list header: column %q is missing", c)
		}
	}

	var out []catalog.PriceObservation
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		obs, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("parse row %d: %w", i+2, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

func parseRow(row []string, cols map[string]int) (catalog.PriceObservation, error) {
	cell := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	obs := catalog.PriceObservation{
		OrderNumber:  cell(ColOrderNumber),
		Brand:        cell(ColBrand),
		RatedCurrent: cell(ColRatedCurrent),
		CoilVoltage:  cell(ColCoilVoltage),
	}
	for _, c := range []struct{ name, v string }{
		{ColOrderNumber, obs.OrderNumber},
		{ColBrand, obs.Brand},
		{ColRatedCurrent, obs.RatedCurrent},
		{ColCoilVoltage, obs.CoilVoltage},
	} {
		if c.v == "" {
			return catalog.PriceObservation{}, fmt.Errorf("%s is empty", c.name)
		}
	}

	raw := strings.ReplaceAll(strings.ReplaceAll(cell(ColPrice), " ", ""), ",", ".")
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return catalog.PriceObservation{}, fmt.Errorf("price %q: %w", cell(ColPrice), err)
	}
	if !p.IsPositive() {
		return catalog.PriceObservation{}, fmt.Errorf("price must be > 0, got %s", p)
	}
	obs.Price = p
	return obs, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
