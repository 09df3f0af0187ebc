package cable

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

// Constants: параметры формулы тока. SafetyFactor задаёт запас, заложенный
// в числитель поправочного коэффициента.
type Constants struct {
	SafetyFactor float64 `mapstructure:"safety_factor"`
	PowerFactor  float64 `mapstructure:"power_factor"`
	Efficiency   float64 `mapstructure:"efficiency"`
}

const (
	DefaultSafetyFactor = 1.6
	DefaultPowerFactor  = 0.85
	DefaultEfficiency   = 0.93
)

func DefaultConstants() Constants {
	return Constants{
		SafetyFactor: DefaultSafetyFactor,
		PowerFactor:  DefaultPowerFactor,
		Efficiency:   DefaultEfficiency,
	}
}

func (k Constants) Validate() error {
	if k.SafetyFactor <= 0 || k.PowerFactor <= 0 || k.Efficiency <= 0 {
		return fmt.Errorf("cable constants must be > 0 (safety=%v, pf=%v, eff=%v)", k.SafetyFactor, k.PowerFactor, k.Efficiency)
	}
	return nil
}

// CorrectionFactor переводит ватты в амперы для трёхфазной сети.
func (k Constants) CorrectionFactor(voltage float64) float64 {
	return k.SafetyFactor / (math.Sqrt(3) * voltage * k.PowerFactor * k.Efficiency)
}

func (k Constants) RequiredCurrent(powerKW, voltage float64) float64 {
	return powerKW * 1000 * k.CorrectionFactor(voltage)
}

type RatingSource interface {
	ListCableRatings(ctx context.Context) ([]catalog.CableRating, error)
}

type Calculator struct {
	src RatingSource
	k   Constants
}

func NewCalculator(src RatingSource, k Constants) *Calculator {
	return &Calculator{src: src, k: k}
}

// Size подбирает кабель для двигателя powerKW на трассе lengthM.
func (c *Calculator) Size(ctx context.Context, powerKW, lengthM, voltage float64) (catalog.CableRating, error) {
	if voltage <= 0 {
		return catalog.CableRating{}, fmt.Errorf("system voltage must be > 0, got %v", voltage)
	}
	return c.SizeForCurrent(ctx, c.k.RequiredCurrent(powerKW, voltage), lengthM)
}

// SizeForCurrent берёт строку с минимальной длиной >= lengthM, затем
// с минимальным током >= current. Если такой нет, нулевой CableRating
// и catalog.ErrNotFound.
func (c *Calculator) SizeForCurrent(ctx context.Context, current, lengthM float64) (catalog.CableRating, error) {
	rows, err := c.src.ListCableRatings(ctx)
	if err != nil {
		return catalog.CableRating{}, fmt.Errorf("list cable ratings: %w", err)
	}

	var fit []catalog.CableRating
	for _, r := range rows {
		if r.LengthM >= lengthM && r.CurrentA >= current {
			fit = append(fit, r)
		}
	}
	if len(fit) == 0 {
		return catalog.CableRating{}, fmt.Errorf("no cable for %.2f A over %v m: %w", current, lengthM, catalog.ErrNotFound)
	}

	sort.SliceStable(fit, func(i, j int) bool {
		a, b := fit[i], fit[j]
		if a.LengthM != b.LengthM {
			return a.LengthM < b.LengthM
		}
		if a.CurrentA != b.CurrentA {
			return a.CurrentA < b.CurrentA
		}
		return a.SizeMM < b.SizeMM
	})
	return fit[0], nil
}
