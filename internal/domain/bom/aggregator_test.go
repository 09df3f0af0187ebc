package bom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/panel-bom/internal/domain/cable"
	"github.com/Spok95/panel-bom/internal/domain/catalog"
	"github.com/Spok95/panel-bom/internal/domain/pricing"
	"github.com/Spok95/panel-bom/internal/selection"
)

type fixture struct {
	mem  *catalog.Memory
	ids  map[string]int64
	agg  *Aggregator
	opts Options
}

func newFixture(t *testing.T, withContactors bool) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{mem: catalog.NewMemory(), ids: map[string]int64{}, opts: DefaultOptions()}

	add := func(name string, typ catalog.Type, kv ...string) {
		id, err := f.mem.InsertComponentIfAbsent(ctx, typ, catalog.Attrs(kv...))
		require.NoError(t, err)
		f.ids[name] = id
	}

	add("ms-4", catalog.TypeMPCB, "brand", "ABB", "order_number", "MS132-10", "rated_power_kw", "4")
	add("ms-7.5", catalog.TypeMPCB, "brand", "ABB", "order_number", "MS132-16", "rated_power_kw", "7.5")
	add("ms-15", catalog.TypeMPCB, "brand", "ABB", "order_number", "MS132-32", "rated_power_kw", "15")
	if withContactors {
		add("lc-4", catalog.TypeContactor, "brand", "Schneider", "order_number", "LC1D09P7", "rated_current", "9", "coil_voltage", "230VAC", "rated_power_kw", "4")
		add("lc-7.5", catalog.TypeContactor, "brand", "Schneider", "order_number", "LC1D18P7", "rated_current", "18", "coil_voltage", "230VAC", "rated_power_kw", "7.5")
		add("lc-15", catalog.TypeContactor, "brand", "Schneider", "order_number", "LC1D32P7", "rated_current", "32", "coil_voltage", "230VAC", "rated_power_kw", "15")
	}
	add("enc-s", catalog.TypeEnclosure, "brand", "Rittal", "order_number", "AX1260", "width", "600", "height", "1200", "depth", "400")
	add("enc-m", catalog.TypeEnclosure, "brand", "Rittal", "order_number", "VX8185", "width", "800", "height", "1800", "depth", "500")
	add("enc-l", catalog.TypeEnclosure, "brand", "Rittal", "order_number", "VX8206", "width", "800", "height", "2000", "depth", "600")
	add("enc-xl", catalog.TypeEnclosure, "brand", "Rittal", "order_number", "VX1206", "width", "1200", "height", "2000", "depth", "600")

	_, err := f.mem.AddPrice(ctx, catalog.PriceRecord{
		ComponentID:   f.ids["ms-7.5"],
		Supplier:      "elcom",
		Brand:         "ABB",
		Price:         decimal.RequireFromString("55.00"),
		Currency:      "EUR",
		EffectiveDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	for _, r := range []catalog.CableRating{
		{SizeMM: 2.5, LengthM: 100, CurrentA: 20, Material: "Cu"},
		{SizeMM: 4, LengthM: 100, CurrentA: 27, Material: "Cu"},
		{SizeMM: 6, LengthM: 100, CurrentA: 36, Material: "Cu"},
		{SizeMM: 16, LengthM: 100, CurrentA: 70, Material: "Cu"},
	} {
		_, err := f.mem.InsertCableRating(ctx, r)
		require.NoError(t, err)
	}

	f.agg = f.build(f.opts)
	return f
}

func (f *fixture) build(opts Options) *Aggregator {
	eng := selection.NewEngine(f.mem, pricing.NewLedger(f.mem), nil)
	return NewAggregator(eng, cable.NewCalculator(f.mem, cable.DefaultConstants()), opts, nil)
}

func motor(t *testing.T, usage string, kw float64, qty int) MotorQty {
	t.Helper()
	m, err := DefaultUsages().Motor(usage, kw)
	require.NoError(t, err)
	return MotorQty{Motor: m, Qty: qty}
}

func money(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func types(b PanelBOM) []string {
	out := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, it.Type)
	}
	return out
}

func TestBuildTransportPanel_Order(t *testing.T) {
	f := newFixture(t, true)
	motors := []MotorQty{
		motor(t, "belt_conveyor", 7.5, 2),
		motor(t, "fan", 4, 1),
	}

	got, err := f.agg.BuildTransportPanel(context.Background(), motors, 50, 380)
	require.NoError(t, err)
	assert.Empty(t, got.Warnings)

	assert.Equal(t, []string{
		TypeMPCB, TypeMPCB,
		TypeContactor, TypeContactor,
		"Terminal block", "Relay", "Pushbutton", "Selector switch", "Pilot lamp", "Wiring duct", "DIN rail", "Panel wiring",
		TypeSignalCable,
		TypePowerCable, TypePowerCable,
		TypeEnclosure,
	}, types(got))

	mpcb := got.ByType(TypeMPCB)
	assert.Equal(t, "MS132-16", mpcb[0].ReferenceNumber)
	assert.Equal(t, "ABB", mpcb[0].Brand)
	assert.Equal(t, 2.0, mpcb[0].Quantity)
	assert.Equal(t, "7.5 kW belt_conveyor", mpcb[0].Note)
	money(t, "55", mpcb[0].UnitPrice)
	money(t, "110", mpcb[0].TotalPrice)
	require.NotNil(t, mpcb[0].LastPriceUpdate)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *mpcb[0].LastPriceUpdate)

	// без цены в каталоге берётся фиксированная цена из прайса
	assert.Equal(t, "MS132-10", mpcb[1].ReferenceNumber)
	money(t, "48", mpcb[1].UnitPrice)

	lc := got.ByType(TypeContactor)
	assert.Equal(t, "LC1D18P7", lc[0].ReferenceNumber)
	assert.Equal(t, "LC1D09P7", lc[1].ReferenceNumber)

	qty := map[string]float64{}
	for _, it := range got.Items {
		qty[it.Type] += it.Quantity
	}
	assert.Equal(t, 20.0, qty["Terminal block"])
	assert.Equal(t, 5.0, qty["Relay"])
	assert.Equal(t, 1.6, qty["Wiring duct"])
	assert.Equal(t, 0.8, qty["DIN rail"])
	assert.Equal(t, 225.0, qty[TypeSignalCable])

	terminal := got.ByType("Terminal block")[0]
	assert.Equal(t, "2x8 for belt_conveyor\n1x4 for fan", terminal.Note)
	money(t, "24", terminal.TotalPrice)

	power := got.ByType(TypePowerCable)
	assert.Equal(t, "NYY-J 4x4", power[0].ReferenceNumber)
	assert.Equal(t, 100.0, power[0].Quantity)
	money(t, "190", power[0].TotalPrice)
	assert.Equal(t, "NYY-J 4x2.5", power[1].ReferenceNumber)
	assert.Equal(t, 50.0, power[1].Quantity)

	enc := got.ByType(TypeEnclosure)[0]
	assert.Equal(t, "VX8185", enc.ReferenceNumber)
	assert.Equal(t, 1.0, enc.Quantity)
	money(t, "690", enc.UnitPrice)

	sum := decimal.Zero
	for _, it := range got.Items {
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(got.Total()))
}

func TestBuildTransportPanel_ZeroQtyAndPower(t *testing.T) {
	f := newFixture(t, true)
	motors := []MotorQty{
		motor(t, "belt_conveyor", 7.5, 0),
		motor(t, "slide_gate", 0, 2),
	}

	got, err := f.agg.BuildTransportPanel(context.Background(), motors, 10, 380)
	require.NoError(t, err)

	assert.Empty(t, got.ByType(TypeMPCB))
	assert.Empty(t, got.ByType(TypeContactor))
	assert.Empty(t, got.ByType(TypePowerCable))
	// коэффициент кнопки у задвижки 0, строки нет
	assert.Empty(t, got.ByType("Pushbutton"))

	for _, it := range got.Items {
		assert.NotContains(t, it.Note, "belt_conveyor")
	}

	require.Len(t, got.ByType("Terminal block"), 1)
	assert.Equal(t, 12.0, got.ByType("Terminal block")[0].Quantity)
	assert.Equal(t, 40.0, got.ByType(TypeSignalCable)[0].Quantity)

	enc := got.ByType(TypeEnclosure)
	require.Len(t, enc, 1)
	assert.Equal(t, "AX1260", enc[0].ReferenceNumber)
}

func TestBuildTransportPanel_NoMotors(t *testing.T) {
	f := newFixture(t, true)

	got, err := f.agg.BuildTransportPanel(context.Background(), nil, 50, 380)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.True(t, got.Total().IsZero())
}

func TestBuildTransportPanel_AccessoryRounding(t *testing.T) {
	f := newFixture(t, true)
	opts := f.opts
	opts.Accessories = []Item{
		{Key: "a", Type: "A", UnitPrice: decimal.RequireFromString("10")},
		{Key: "b", Type: "B", UnitPrice: decimal.RequireFromString("10")},
		{Key: "c", Type: "C", UnitPrice: decimal.RequireFromString("10")},
	}
	u := Usage{Name: "custom", Accessories: map[string]float64{"a": 0.33, "b": 0.04, "c": 0.333}}

	got, err := f.build(opts).BuildTransportPanel(context.Background(), []MotorQty{
		{Motor: u.Motor(0), Qty: 1},
		{Motor: u.Motor(0), Qty: 2},
	}, 0, 380)
	require.NoError(t, err)

	a := got.ByType("A")
	require.Len(t, a, 1)
	assert.Equal(t, 1.0, a[0].Quantity)
	assert.Equal(t, "1x0.33 for custom\n2x0.33 for custom", a[0].Note)
	money(t, "10", a[0].TotalPrice)

	// 0.12 округляется до 0.1, строка остаётся
	require.Len(t, got.ByType("B"), 1)
	assert.Equal(t, 0.1, got.ByType("B")[0].Quantity)

	assert.Equal(t, 1.0, got.ByType("C")[0].Quantity)

	// кабельных строк при нулевой длине нет
	assert.Empty(t, got.ByType(TypeSignalCable))
}

func TestBuildTransportPanel_AccessoryRoundsToZero(t *testing.T) {
	f := newFixture(t, true)
	opts := f.opts
	opts.Accessories = []Item{{Key: "tiny", Type: "Tiny", UnitPrice: decimal.RequireFromString("1")}}
	u := Usage{Name: "custom", Accessories: map[string]float64{"tiny": 0.04}}

	got, err := f.build(opts).BuildTransportPanel(context.Background(), []MotorQty{{Motor: u.Motor(0), Qty: 1}}, 0, 380)
	require.NoError(t, err)
	assert.Empty(t, got.ByType("Tiny"))
}

func TestBuildTransportPanel_PowerCableConservation(t *testing.T) {
	f := newFixture(t, true)
	u := func(name string) Usage {
		return Usage{Name: name, PowerCableCofactor: 1.5}
	}
	motors := []MotorQty{
		{Motor: u("belt").Motor(4), Qty: 1},
		{Motor: u("fan").Motor(7.5), Qty: 1},
		{Motor: u("screw").Motor(4), Qty: 2},
		{Motor: u("idle").Motor(11), Qty: 0},
	}

	got, err := f.agg.BuildTransportPanel(context.Background(), motors, 40, 380)
	require.NoError(t, err)

	power := got.ByType(TypePowerCable)
	require.Len(t, power, 2)
	// группы в порядке первого появления сечения
	assert.Equal(t, "NYY-J 4x2.5", power[0].ReferenceNumber)
	assert.Equal(t, 180.0, power[0].Quantity)
	assert.Equal(t, "1x 4 kW belt: 60 m\n2x 4 kW screw: 120 m", power[0].Note)
	assert.Equal(t, "NYY-J 4x4", power[1].ReferenceNumber)
	assert.Equal(t, 60.0, power[1].Quantity)

	var total float64
	for _, it := range power {
		total += it.Quantity
	}
	assert.InDelta(t, 40*1.5*(1+1+2), total, 1e-9)
}

func TestBuildTransportPanel_Enclosure(t *testing.T) {
	f := newFixture(t, true)

	got, err := f.agg.BuildTransportPanel(context.Background(), []MotorQty{motor(t, "fan", 4, 9)}, 10, 380)
	require.NoError(t, err)

	enc := got.ByType(TypeEnclosure)
	require.Len(t, enc, 1)
	assert.Equal(t, "VX1206", enc[0].ReferenceNumber)
	assert.Equal(t, 2.0, enc[0].Quantity)
	money(t, "2300", enc[0].TotalPrice)
}

func TestEnclosureFor(t *testing.T) {
	tests := []struct {
		count     int
		wantOK    bool
		wantIdx   int
		wantCount int
	}{
		{0, false, 0, 0},
		{1, true, 0, 1},
		{2, true, 0, 1},
		{3, true, 1, 1},
		{5, true, 2, 1},
		{7, true, 2, 1},
		{8, true, 3, 2},
		{9, true, 3, 2},
	}
	for _, tt := range tests {
		idx, qty, ok := EnclosureFor(tt.count)
		assert.Equal(t, tt.wantOK, ok, "count %d", tt.count)
		assert.Equal(t, tt.wantIdx, idx, "count %d", tt.count)
		assert.Equal(t, tt.wantCount, qty, "count %d", tt.count)
	}
}

func TestBuildTransportPanel_MissingContactor(t *testing.T) {
	f := newFixture(t, false)
	motors := []MotorQty{motor(t, "screw_conveyor", 4, 1)}

	got, err := f.agg.BuildTransportPanel(context.Background(), motors, 20, 380)
	require.NoError(t, err)

	lc := got.ByType(TypeContactor)
	require.Len(t, lc, 1)
	assert.True(t, lc[0].Missing)
	assert.Empty(t, lc[0].Brand)
	assert.Empty(t, lc[0].ReferenceNumber)
	assert.True(t, lc[0].TotalPrice.IsZero())
	assert.Contains(t, lc[0].Note, "not found")

	require.Len(t, got.Warnings, 1)
	assert.Equal(t, "contactor", got.Warnings[0].Category)

	// остальные категории на месте
	assert.Len(t, got.ByType(TypeMPCB), 1)
	assert.Len(t, got.ByType(TypeEnclosure), 1)
}

func TestBuildTransportPanel_Strict(t *testing.T) {
	f := newFixture(t, false)
	opts := f.opts
	opts.Strict = true

	_, err := f.build(opts).BuildTransportPanel(context.Background(), []MotorQty{motor(t, "fan", 4, 1)}, 20, 380)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestBuildTransportPanel_MissingPowerCable(t *testing.T) {
	f := newFixture(t, true)

	// для 37 кВт нужно больше 70 А, такого сечения нет
	got, err := f.agg.BuildTransportPanel(context.Background(), []MotorQty{motor(t, "fan", 37, 1)}, 20, 380)
	require.NoError(t, err)

	power := got.ByType(TypePowerCable)
	require.Len(t, power, 1)
	assert.True(t, power[0].Missing)
	assert.Equal(t, 20.0, power[0].Quantity)
}

func TestBuildTransportPanel_NoPowerCableNeeded(t *testing.T) {
	f := newFixture(t, true)

	// без трассы кабель на 37 кВт не ищется, строки и предупреждения нет
	got, err := f.agg.BuildTransportPanel(context.Background(), []MotorQty{motor(t, "fan", 37, 1)}, 0, 380)
	require.NoError(t, err)
	assert.Empty(t, got.ByType(TypePowerCable))
	for _, w := range got.Warnings {
		assert.NotEqual(t, "power_cable", w.Category)
	}
}

type noCables struct{ calls int }

func (c *noCables) Size(context.Context, float64, float64, float64) (catalog.CableRating, error) {
	c.calls++
	return catalog.CableRating{}, catalog.ErrNotFound
}

func TestBuildTransportPanel_StrictSkipsZeroCofactor(t *testing.T) {
	f := newFixture(t, true)
	opts := f.opts
	opts.Strict = true
	sizer := &noCables{}
	agg := NewAggregator(selection.NewEngine(f.mem, pricing.NewLedger(f.mem), nil), sizer, opts, nil)

	local := Usage{Name: "local_drive", SignalCableCofactor: 1}.Motor(4)
	got, err := agg.BuildTransportPanel(context.Background(), []MotorQty{{Motor: local, Qty: 2}}, 20, 380)
	require.NoError(t, err)
	assert.Empty(t, got.ByType(TypePowerCable))
	assert.Zero(t, sizer.calls)

	_, err = agg.BuildTransportPanel(context.Background(), []MotorQty{motor(t, "fan", 4, 1)}, 20, 380)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

type brokenSelector struct{}

func (brokenSelector) Select(context.Context, catalog.Type, []selection.Predicate, ...string) (selection.Selection, error) {
	return selection.Selection{}, errors.New("connection reset")
}

func TestBuildTransportPanel_StorageError(t *testing.T) {
	f := newFixture(t, true)
	agg := NewAggregator(brokenSelector{}, cable.NewCalculator(f.mem, cable.DefaultConstants()), DefaultOptions(), nil)

	_, err := agg.BuildTransportPanel(context.Background(), []MotorQty{motor(t, "fan", 4, 1)}, 20, 380)
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNotFound)
}

func TestBuildTransportPanel_InvalidInput(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.agg.BuildTransportPanel(ctx, nil, 10, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.agg.BuildTransportPanel(ctx, nil, -1, 380)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, catalog.ErrNotFound)
}

func TestUsages(t *testing.T) {
	us := DefaultUsages()
	assert.Contains(t, us.Names(), "bucket_elevator")

	m, err := us.Motor(" Belt_Conveyor ", 5.5)
	require.NoError(t, err)
	assert.Equal(t, 5.5, m.PowerKW)
	assert.Equal(t, 8.0, m.Coefficient(AccTerminalBlock))
	assert.Zero(t, m.Coefficient("unknown"))

	_, err = us.Motor("crusher", 5.5)
	require.Error(t, err)

	require.NoError(t, us.Validate())
	us["fan"] = Usage{Name: "fan", Accessories: map[string]float64{AccTerminalBlock: -1}}
	require.Error(t, us.Validate())
	us["fan"] = Usage{Name: "fan", PowerCableCofactor: -1}
	require.Error(t, us.Validate())
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.Enclosures = o.Enclosures[:3]
	require.Error(t, o.Validate())

	o = DefaultOptions()
	o.Accessories = append(o.Accessories, o.Accessories[0])
	require.Error(t, o.Validate())
}
