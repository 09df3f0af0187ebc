package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/panel-bom/internal/domain/bom"
)

func TestWriteBOM(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b := bom.PanelBOM{
		Items: []bom.LineItem{
			{Type: bom.TypeMPCB, Brand: "ABB", ReferenceNumber: "MS132-16", Quantity: 2,
				UnitPrice: decimal.RequireFromString("55"), TotalPrice: decimal.RequireFromString("110"),
				LastPriceUpdate: &date, Note: "7.5 kW belt_conveyor"},
			{Type: bom.TypeContactor, Quantity: 2, Missing: true, Note: "7.5 kW belt_conveyor"},
			{Type: bom.TypeSignalCable, Brand: "Lapp", Quantity: 12.5,
				UnitPrice: decimal.RequireFromString("1.1"), TotalPrice: decimal.RequireFromString("13.75")},
		},
		Warnings: []bom.Warning{{Category: "contactor", Message: "no Contactor with rated_power_kw >= 7.5"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBOM(&buf, b))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetBOM)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "reference_number", rows[0][2])
	assert.Equal(t, []string{bom.TypeMPCB, "ABB", "MS132-16"}, rows[1][:3])
	assert.Equal(t, "110", rows[1][6])
	assert.Equal(t, "2025-03-01", rows[1][7])
	assert.Contains(t, rows[2][8], "MISSING")
	assert.Equal(t, "12.5", rows[3][4])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "123.75", rows[4][6])

	warn, err := f.GetRows(SheetWarnings)
	require.NoError(t, err)
	require.Len(t, warn, 2)
	assert.Equal(t, "contactor", warn[1][0])
}

func TestWriteBOM_NoWarningsSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBOM(&buf, bom.PanelBOM{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{SheetBOM}, f.GetSheetList())
}

func motorList(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, r := range rows {
		require.NoError(t, setRow(f, "Sheet1", i+1, r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadMotors(t *testing.T) {
	data := motorList(t,
		[]interface{}{"Usage", "power_kw", "QTY"},
		[]interface{}{"belt_conveyor", 7.5, 2},
		[]interface{}{"", "", ""},
		[]interface{}{"Fan", "4,0", "1"},
	)

	got, err := ReadMotors(data, bom.DefaultUsages())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "belt_conveyor", got[0].Motor.Usage)
	assert.Equal(t, 7.5, got[0].Motor.PowerKW)
	assert.Equal(t, 2, got[0].Qty)
	assert.Equal(t, "fan", got[1].Motor.Usage)
	assert.Equal(t, 4.0, got[1].Motor.PowerKW)
	assert.Equal(t, 4.0, got[1].Motor.Coefficient(bom.AccTerminalBlock))
}

func TestReadMotors_Errors(t *testing.T) {
	tests := []struct {
		name string
		row  []interface{}
		want string
	}{
		{"unknown usage", []interface{}{"crusher", 5, 1}, "row 2: unknown motor usage"},
		{"bad power", []interface{}{"fan", "five", 1}, "row 2: power_kw"},
		{"bad qty", []interface{}{"fan", 5, "two"}, "row 2: qty"},
		{"fractional qty", []interface{}{"fan", 5, "1.5"}, "row 2: qty"},
		{"empty qty", []interface{}{"fan", 7.5, ""}, "row 2: qty is empty"},
		{"empty power", []interface{}{"fan", "", 3}, "row 2: power_kw is empty"},
		{"empty usage", []interface{}{"", 4, 1}, "row 2: usage is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMotors(motorList(t, []interface{}{"usage", "power_kw", "qty"}, tt.row), bom.DefaultUsages())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ReadMotors(motorList(t, []interface{}{"usage", "kw"}, []interface{}{"fan", 1}), bom.DefaultUsages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "power_kw")
}

func TestReadMotors_DecimalQty(t *testing.T) {
	got, err := ReadMotors(motorList(t, []interface{}{"usage", "power_kw", "qty"}, []interface{}{"fan", 4, "010"}), bom.DefaultUsages())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].Qty)
	assert.Equal(t, 4.0, got[0].Motor.PowerKW)
}

func TestMotorTemplate_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MotorTemplate(&buf, bom.DefaultUsages()))

	got, err := ReadMotors(&buf, bom.DefaultUsages())
	require.NoError(t, err)
	assert.Len(t, got, len(bom.DefaultUsages()))
	for _, m := range got {
		assert.Zero(t, m.Qty)
	}
}
