package bom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
	"github.com/Spok95/panel-bom/internal/infra/metrics"
	"github.com/Spok95/panel-bom/internal/selection"
)

type Selector interface {
	Select(ctx context.Context, t catalog.Type, preds []selection.Predicate, tieBreak ...string) (selection.Selection, error)
}

type CableSizer interface {
	Size(ctx context.Context, powerKW, lengthM, voltage float64) (catalog.CableRating, error)
}

type Aggregator struct {
	sel    Selector
	cables CableSizer
	opts   Options
	log    *slog.Logger
}

func NewAggregator(sel Selector, cables CableSizer, opts Options, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{sel: sel, cables: cables, opts: opts, log: log}
}

// BuildTransportPanel собирает спецификацию щита транспортного оборудования.
// Строки идут в порядке: защита, пускатели, аксессуары, сигнальный кабель,
// силовой кабель, шкаф.
func (a *Aggregator) BuildTransportPanel(ctx context.Context, motors []MotorQty, cableLengthM, voltage float64) (PanelBOM, error) {
	start := time.Now()
	out, err := a.build(ctx, motors, cableLengthM, voltage)
	metrics.BOMBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BOMBuilds.WithLabelValues("error").Inc()
		return PanelBOM{}, err
	}
	metrics.BOMBuilds.WithLabelValues("ok").Inc()
	metrics.BOMLineItems.Observe(float64(len(out.Items)))
	a.log.Debug("panel bom built", "motors", len(motors), "items", len(out.Items), "warnings", len(out.Warnings))
	return out, nil
}

// ErrInvalidInput: параметры расчёта заданы неверно (ошибка клиента, а не каталога).
var ErrInvalidInput = errors.New("invalid input")

// CheckParams проверяет длину трассы и напряжение до расчёта.
func CheckParams(cableLengthM, voltage float64) error {
	if voltage <= 0 {
		return fmt.Errorf("system voltage must be > 0, got %v: %w", voltage, ErrInvalidInput)
	}
	if cableLengthM < 0 {
		return fmt.Errorf("cable length must be >= 0, got %v: %w", cableLengthM, ErrInvalidInput)
	}
	return nil
}

func (a *Aggregator) build(ctx context.Context, motors []MotorQty, cableLengthM, voltage float64) (PanelBOM, error) {
	if err := CheckParams(cableLengthM, voltage); err != nil {
		return PanelBOM{}, err
	}

	var active, powered []MotorQty
	for _, m := range motors {
		if m.Qty <= 0 {
			continue
		}
		active = append(active, m)
		if m.Motor.PowerKW > 0 {
			powered = append(powered, m)
		}
	}

	var out PanelBOM
	for _, m := range powered {
		if err := a.addDevice(ctx, &out, catalog.TypeMPCB, TypeMPCB, m, a.opts.MPCBPrice); err != nil {
			return PanelBOM{}, err
		}
	}
	for _, m := range powered {
		if err := a.addDevice(ctx, &out, catalog.TypeContactor, TypeContactor, m, a.opts.ContactorPrice); err != nil {
			return PanelBOM{}, err
		}
	}
	a.addAccessories(&out, active)
	a.addSignalCable(&out, active, cableLengthM)
	if err := a.addPowerCables(ctx, &out, powered, cableLengthM, voltage); err != nil {
		return PanelBOM{}, err
	}
	if err := a.addEnclosure(ctx, &out, active); err != nil {
		return PanelBOM{}, err
	}
	return out, nil
}

func (a *Aggregator) addDevice(ctx context.Context, out *PanelBOM, t catalog.Type, label string, m MotorQty, fallback decimal.Decimal) error {
	note := fmt.Sprintf("%s kW %s", num(m.Motor.PowerKW), m.Motor.Usage)
	sel, err := a.sel.Select(ctx, t,
		[]selection.Predicate{selection.Geq(catalog.AttrRatedPowerKW, m.Motor.PowerKW)},
		catalog.AttrRatedPowerKW)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("select %s: %w", t, err)
		}
		return a.missing(out, strings.ToLower(string(t)), label, float64(m.Qty), note, err)
	}
	out.Items = append(out.Items, a.selected(label, sel, float64(m.Qty), fallback, note))
	return nil
}

func (a *Aggregator) addAccessories(out *PanelBOM, motors []MotorQty) {
	for _, acc := range a.opts.Accessories {
		var total float64
		var notes []string
		for _, m := range motors {
			coef := m.Motor.Coefficient(acc.Key)
			if coef == 0 {
				continue
			}
			total += float64(m.Qty) * coef
			notes = append(notes, fmt.Sprintf("%dx%s for %s", m.Qty, num(coef), m.Motor.Usage))
		}
		qty := round1(total)
		if qty == 0 {
			continue
		}
		out.Items = append(out.Items, a.fixed(acc, qty, strings.Join(notes, "\n")))
	}
}

func (a *Aggregator) addSignalCable(out *PanelBOM, motors []MotorQty, cableLengthM float64) {
	var total float64
	var notes []string
	for _, m := range motors {
		if m.Motor.SignalCableCofactor == 0 {
			continue
		}
		total += cableLengthM * m.Motor.SignalCableCofactor * float64(m.Qty)
		notes = append(notes, fmt.Sprintf("%dx%sx%s m for %s", m.Qty, num(m.Motor.SignalCableCofactor), num(cableLengthM), m.Motor.Usage))
	}
	qty := round1(total)
	if qty == 0 {
		return
	}
	item := a.opts.SignalCable
	if item.Type == "" {
		item.Type = TypeSignalCable
	}
	out.Items = append(out.Items, a.fixed(item, qty, strings.Join(notes, "\n")))
}

type cableGroup struct {
	rating catalog.CableRating
	length float64
	notes  []string
}

func (a *Aggregator) addPowerCables(ctx context.Context, out *PanelBOM, motors []MotorQty, cableLengthM, voltage float64) error {
	var groups []*cableGroup
	bySize := map[float64]*cableGroup{}

	for _, m := range motors {
		length := cableLengthM * m.Motor.PowerCableCofactor * float64(m.Qty)
		if round1(length) == 0 {
			// кабель не нужен: не подбираем и не считаем ненайденным
			continue
		}
		note := fmt.Sprintf("%dx %s kW %s: %s m", m.Qty, num(m.Motor.PowerKW), m.Motor.Usage, num(round1(length)))

		r, err := a.cables.Size(ctx, m.Motor.PowerKW, cableLengthM, voltage)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("size power cable: %w", err)
			}
			if err := a.missing(out, "power_cable", TypePowerCable, round1(length), note, err); err != nil {
				return err
			}
			continue
		}

		g, ok := bySize[r.SizeMM]
		if !ok {
			g = &cableGroup{rating: r}
			bySize[r.SizeMM] = g
			groups = append(groups, g)
		}
		g.length += length
		g.notes = append(g.notes, note)
	}

	for _, g := range groups {
		qty := round1(g.length)
		if qty == 0 {
			continue
		}
		note := strings.Join(g.notes, "\n")
		item, ok := a.opts.powerCable(g.rating.SizeMM)
		if !ok {
			size := num(g.rating.SizeMM)
			a.warn(out, "power_cable_price", fmt.Sprintf("no price for power cable %s mm²", size))
			out.Items = append(out.Items, LineItem{
				Type:          TypePowerCable,
				Specification: fmt.Sprintf("Power cable %s mm² %s", size, g.rating.Material),
				Quantity:      qty,
				UnitPrice:     decimal.Zero,
				TotalPrice:    decimal.Zero,
				Note:          note,
			})
			continue
		}
		out.Items = append(out.Items, a.fixed(item.Item, qty, note))
	}
	return nil
}

// EnclosureFor: ступень шкафа и количество шкафов по числу двигателей.
// ok=false, если двигателей нет.
func EnclosureFor(motorCount int) (bucket, qty int, ok bool) {
	switch {
	case motorCount <= 0:
		return 0, 0, false
	case motorCount < 3:
		return 0, 1, true
	case motorCount < 4:
		return 1, 1, true
	case motorCount < 8:
		return 2, 1, true
	default:
		return 3, 2, true
	}
}

func (a *Aggregator) addEnclosure(ctx context.Context, out *PanelBOM, motors []MotorQty) error {
	count := 0
	for _, m := range motors {
		count += m.Qty
	}
	idx, qty, ok := EnclosureFor(count)
	if !ok {
		return nil
	}
	if idx >= len(a.opts.Enclosures) {
		return fmt.Errorf("enclosure bucket %d is not configured", idx)
	}
	b := a.opts.Enclosures[idx]
	note := fmt.Sprintf("%d motors, bucket %s (min %sx%sx%s)", count, b.Label, num(b.Width), num(b.Height), num(b.Depth))

	sel, err := a.sel.Select(ctx, catalog.TypeEnclosure,
		[]selection.Predicate{
			selection.Geq(catalog.AttrWidth, b.Width),
			selection.Geq(catalog.AttrHeight, b.Height),
			selection.Geq(catalog.AttrDepth, b.Depth),
		},
		catalog.AttrWidth, catalog.AttrHeight, catalog.AttrDepth)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("select enclosure: %w", err)
		}
		return a.missing(out, "enclosure", TypeEnclosure, float64(qty), note, err)
	}
	out.Items = append(out.Items, a.selected(TypeEnclosure, sel, float64(qty), b.UnitPrice, note))
	return nil
}

// selected: строка по выбранному из каталога компоненту. Если у компонента
// нет цены, берётся fallback из прайса.
func (a *Aggregator) selected(label string, sel selection.Selection, qty float64, fallback decimal.Decimal, note string) LineItem {
	unit := fallback
	date := a.opts.PriceDate
	if sel.Price != nil {
		unit = sel.Price.Price
		date = sel.Price.EffectiveDate
	}
	return line(label, sel.Component.Brand(), sel.Component.OrderNumber(),
		catalog.Decode(sel.Component).Describe(), qty, unit, date, note)
}

func (a *Aggregator) fixed(it Item, qty float64, note string) LineItem {
	return line(it.Type, it.Brand, it.Reference, it.Specification, qty, it.UnitPrice, a.opts.PriceDate, note)
}

func (a *Aggregator) missing(out *PanelBOM, category, label string, qty float64, note string, reason error) error {
	metrics.LookupsNotFound.WithLabelValues(category).Inc()
	if a.opts.Strict {
		return fmt.Errorf("%s (%s): %w", label, note, reason)
	}
	a.warn(out, category, reason.Error())
	out.Items = append(out.Items, LineItem{
		Type:       label,
		Quantity:   qty,
		UnitPrice:  decimal.Zero,
		TotalPrice: decimal.Zero,
		Note:       note + "\nnot found: " + reason.Error(),
		Missing:    true,
	})
	return nil
}

func (a *Aggregator) warn(out *PanelBOM, category, msg string) {
	a.log.Warn("bom warning", "category", category, "reason", msg)
	out.Warnings = append(out.Warnings, Warning{Category: category, Message: msg})
}

func line(typ, brand, ref, spec string, qty float64, unit decimal.Decimal, date time.Time, note string) LineItem {
	it := LineItem{
		Type:            typ,
		Brand:           brand,
		ReferenceNumber: ref,
		Specification:   spec,
		Quantity:        qty,
		UnitPrice:       unit,
		TotalPrice:      decimal.NewFromFloat(qty).Mul(unit),
		Note:            note,
	}
	if !date.IsZero() {
		d := date
		it.LastPriceUpdate = &d
	}
	return it
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
