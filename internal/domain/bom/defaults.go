package bom

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Названия типов строк BOM.
const (
	TypeMPCB        = "MPCB"
	TypeContactor   = "Contactor"
	TypeSignalCable = "Signal cable"
	TypePowerCable  = "Power cable"
	TypeEnclosure   = "Enclosure"
)

// Ключи аксессуаров в коэффициентах двигателя.
const (
	AccTerminalBlock  = "terminal_block_qty"
	AccRelay1NO1NC    = "relay_1no_1nc_qty"
	AccPushbutton     = "pushbutton_qty"
	AccSelectorSwitch = "selector_switch_qty"
	AccPilotLamp      = "pilot_lamp_qty"
	AccDuctCover      = "duct_cover_qty"
	AccDINRail        = "din_rail_qty"
	AccPanelWiring    = "panel_wiring_qty"
)

// Item: позиция с фиксированной ценой из прайса.
type Item struct {
	Key           string          `json:"key"`
	Type          string          `json:"type"`
	Brand         string          `json:"brand"`
	Reference     string          `json:"reference"`
	Specification string          `json:"specification"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

type CableItem struct {
	SizeMM float64
	Item
}

// EnclosureBucket: минимальные габариты шкафа для ступени по числу двигателей.
type EnclosureBucket struct {
	Label     string
	Width     float64
	Height    float64
	Depth     float64
	UnitPrice decimal.Decimal
}

type Options struct {
	Accessories    []Item
	SignalCable    Item
	PowerCables    []CableItem
	Enclosures     []EnclosureBucket
	MPCBPrice      decimal.Decimal
	ContactorPrice decimal.Decimal
	PriceDate      time.Time
	// Strict: прерывать расчёт, если не нашлась защита, пускатель, кабель или шкаф.
	Strict bool
}

func (o Options) Validate() error {
	if len(o.Enclosures) != 4 {
		return fmt.Errorf("exactly 4 enclosure buckets are required, got %d", len(o.Enclosures))
	}
	seen := map[string]bool{}
	for _, a := range o.Accessories {
		if a.Key == "" {
			return fmt.Errorf("accessory without key")
		}
		if seen[a.Key] {
			return fmt.Errorf("duplicate accessory %q", a.Key)
		}
		seen[a.Key] = true
	}
	return nil
}

func (o Options) powerCable(sizeMM float64) (CableItem, bool) {
	for _, c := range o.PowerCables {
		if c.SizeMM == sizeMM {
			return c, true
		}
	}
	return CableItem{}, false
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func DefaultOptions() Options {
	return Options{
		Accessories: []Item{
			{Key: AccTerminalBlock, Type: "Terminal block", Brand: "Phoenix Contact", Reference: "UT 2,5", Specification: "Control terminal block 2.5 mm²", UnitPrice: price("1.20")},
			{Key: AccRelay1NO1NC, Type: "Relay", Brand: "Finder", Reference: "40.52.9.024", Specification: "Interface relay 1NO+1NC 24 VDC", UnitPrice: price("9.50")},
			{Key: AccPushbutton, Type: "Pushbutton", Brand: "Schneider Electric", Reference: "XB5AA31", Specification: "Pushbutton 22 mm green 1NO", UnitPrice: price("6.80")},
			{Key: AccSelectorSwitch, Type: "Selector switch", Brand: "Schneider Electric", Reference: "XB5AD33", Specification: "Selector switch 3 positions", UnitPrice: price("11.40")},
			{Key: AccPilotLamp, Type: "Pilot lamp", Brand: "Schneider Electric", Reference: "XB5AVB3", Specification: "Pilot lamp LED 24 V green", UnitPrice: price("5.90")},
			{Key: AccDuctCover, Type: "Wiring duct", Brand: "Hager", Reference: "LF40060", Specification: "Slotted duct 40x60 with cover, m", UnitPrice: price("4.20")},
			{Key: AccDINRail, Type: "DIN rail", Brand: "Phoenix Contact", Reference: "NS 35/7,5", Specification: "DIN rail 35 mm, m", UnitPrice: price("3.10")},
			{Key: AccPanelWiring, Type: "Panel wiring", Brand: "Lapp", Reference: "H07V-K 1.5", Specification: "Internal panel wiring set per motor", UnitPrice: price("14.00")},
		},
		SignalCable: Item{Key: "signal_cable", Type: TypeSignalCable, Brand: "Lapp", Reference: "LiYCY 7x0.75", Specification: "Shielded control cable 7x0.75 mm², m", UnitPrice: price("1.10")},
		PowerCables: []CableItem{
			cableItem(1.5, "0.90"),
			cableItem(2.5, "1.30"),
			cableItem(4, "1.90"),
			cableItem(6, "2.70"),
			cableItem(10, "4.30"),
			cableItem(16, "6.60"),
			cableItem(25, "9.80"),
			cableItem(35, "13.50"),
			cableItem(50, "18.90"),
			cableItem(70, "26.00"),
			cableItem(95, "35.00"),
		},
		Enclosures: []EnclosureBucket{
			{Label: "S", Width: 600, Height: 1200, Depth: 400, UnitPrice: price("420.00")},
			{Label: "M", Width: 800, Height: 1800, Depth: 500, UnitPrice: price("690.00")},
			{Label: "L", Width: 800, Height: 2000, Depth: 600, UnitPrice: price("840.00")},
			{Label: "XL", Width: 1200, Height: 2000, Depth: 600, UnitPrice: price("1150.00")},
		},
		MPCBPrice:      price("48.00"),
		ContactorPrice: price("32.00"),
		PriceDate:      time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cableItem(size float64, perMeter string) CableItem {
	s := strconv.FormatFloat(size, 'f', -1, 64)
	return CableItem{
		SizeMM: size,
		Item: Item{
			Key:           "power_cable_" + s,
			Type:          TypePowerCable,
			Brand:         "Nexans",
			Reference:     "NYY-J 4x" + s,
			Specification: "Power cable 4x" + s + " mm², m",
			UnitPrice:     price(perMeter),
		},
	}
}

func DefaultUsages() Usages {
	u := func(name string, signal, power float64, tb, relay, pb, sel, lamp, duct, rail, wiring float64) Usage {
		return Usage{
			Name:                name,
			SignalCableCofactor: signal,
			PowerCableCofactor:  power,
			Accessories: map[string]float64{
				AccTerminalBlock:  tb,
				AccRelay1NO1NC:    relay,
				AccPushbutton:     pb,
				AccSelectorSwitch: sel,
				AccPilotLamp:      lamp,
				AccDuctCover:      duct,
				AccDINRail:        rail,
				AccPanelWiring:    wiring,
			},
		}
	}
	list := []Usage{
		u("belt_conveyor", 2, 1, 8, 2, 1, 1, 2, 0.6, 0.3, 1),
		u("bucket_elevator", 3, 1, 10, 3, 1, 1, 2, 0.6, 0.3, 1),
		u("screw_conveyor", 1, 1, 6, 1, 1, 1, 2, 0.5, 0.25, 1),
		u("chain_conveyor", 2, 1, 8, 2, 1, 1, 2, 0.6, 0.3, 1),
		u("fan", 0.5, 1, 4, 1, 1, 1, 1, 0.4, 0.2, 1),
		u("rotary_valve", 1, 1, 4, 1, 0, 1, 1, 0.4, 0.2, 0.5),
		u("slide_gate", 2, 1, 6, 2, 0, 1, 2, 0.4, 0.2, 0.5),
	}
	out := make(Usages, len(list))
	for _, x := range list {
		out[x.Name] = x
	}
	return out
}
