package bom

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Motor: двигатель с коэффициентами своего назначения. Создаётся на
// один расчёт щита и не меняется.
type Motor struct {
	Usage               string
	PowerKW             float64
	SignalCableCofactor float64
	PowerCableCofactor  float64
	coefficients        map[string]float64
}

// Coefficient: сколько единиц аксессуара name нужно на один двигатель.
func (m Motor) Coefficient(name string) float64 { return m.coefficients[name] }

type MotorQty struct {
	Motor Motor
	Qty   int
}

// Usage: профиль назначения двигателя (конвейер, нория, вентилятор...).
type Usage struct {
	Name                string             `mapstructure:"name" json:"name"`
	SignalCableCofactor float64            `mapstructure:"signal_cable_cofactor" json:"signal_cable_cofactor"`
	PowerCableCofactor  float64            `mapstructure:"power_cable_cofactor" json:"power_cable_cofactor"`
	Accessories         map[string]float64 `mapstructure:"accessories" json:"accessories"`
}

func (u Usage) Motor(powerKW float64) Motor {
	coef := make(map[string]float64, len(u.Accessories))
	for k, v := range u.Accessories {
		coef[strings.ToLower(k)] = v
	}
	return Motor{
		Usage:               u.Name,
		PowerKW:             powerKW,
		SignalCableCofactor: u.SignalCableCofactor,
		PowerCableCofactor:  u.PowerCableCofactor,
		coefficients:        coef,
	}
}

type Usages map[string]Usage

func (us Usages) Motor(usage string, powerKW float64) (Motor, error) {
	u, ok := us[strings.ToLower(strings.TrimSpace(usage))]
	if !ok {
		return Motor{}, fmt.Errorf("unknown motor usage %q", usage)
	}
	return u.Motor(powerKW), nil
}

// Validate: коэффициенты профиля не бывают отрицательными.
func (u Usage) Validate() error {
	if u.SignalCableCofactor < 0 {
		return fmt.Errorf("usage %s: signal_cable_cofactor must be >= 0, got %v", u.Name, u.SignalCableCofactor)
	}
	if u.PowerCableCofactor < 0 {
		return fmt.Errorf("usage %s: power_cable_cofactor must be >= 0, got %v", u.Name, u.PowerCableCofactor)
	}
	for k, v := range u.Accessories {
		if v < 0 {
			return fmt.Errorf("usage %s: accessory %s coefficient must be >= 0, got %v", u.Name, k, v)
		}
	}
	return nil
}

func (us Usages) Validate() error {
	for _, name := range us.Names() {
		if err := us[name].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (us Usages) Names() []string {
	out := make([]string, 0, len(us))
	for k := range us {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type LineItem struct {
	Type            string          `json:"type"`
	Brand           string          `json:"brand"`
	ReferenceNumber string          `json:"reference_number"`
	Specification   string          `json:"specification"`
	Quantity        float64         `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	LastPriceUpdate *time.Time      `json:"last_price_update,omitempty"`
	Note            string          `json:"note"`
	Missing         bool            `json:"missing,omitempty"`
}

type Warning struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// PanelBOM: строки в порядке обработки категорий, не сортируются.
type PanelBOM struct {
	Items    []LineItem `json:"items"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

func (b PanelBOM) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range b.Items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

func (b PanelBOM) ByType(t string) []LineItem {
	var out []LineItem
	for _, it := range b.Items {
		if it.Type == t {
			out = append(out, it)
		}
	}
	return out
}
