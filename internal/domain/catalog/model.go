package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ErrNotFound: ничего не подошло под условия. Это нормальный исход
// для незаполненного каталога, а не авария.
var ErrNotFound = errors.New("not found")

// ErrInvalid: данные для записи в каталог не прошли проверку.
var ErrInvalid = errors.New("invalid catalog data")

type Type string

const (
	TypeContactor Type = "Contactor"
	TypeMPCB      Type = "MPCB"
	TypeMCCB      Type = "MCCB"
	TypeRelay     Type = "Relay"
	TypeIOCard    Type = "IOCard"
	TypeEnclosure Type = "Enclosure"
)

// Ключи атрибутов, которые читает код. Остальные хранятся как есть.
const (
	AttrBrand        = "brand"
	AttrOrderNumber  = "order_number"
	AttrDescription  = "description"
	AttrRatedCurrent = "rated_current"
	AttrRatedPowerKW = "rated_power_kw"
	AttrCoilVoltage  = "coil_voltage"
	AttrCurrentMin   = "current_min"
	AttrCurrentMax   = "current_max"
	AttrContacts     = "contacts"
	AttrChannels     = "channels"
	AttrSignal       = "signal"
	AttrWidth        = "width"
	AttrHeight       = "height"
	AttrDepth        = "depth"
)

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attributes: упорядоченный набор атрибутов, ключи уникальны.
type Attributes []Attribute

func Attrs(kv ...string) Attributes {
	out := make(Attributes, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out.Set(kv[i], kv[i+1])
	}
	return out
}

func (a Attributes) Get(key string) (string, bool) {
	for _, at := range a {
		if at.Key == key {
			return at.Value, true
		}
	}
	return "", false
}

// Float читает атрибут как число. Текст приводится через cast,
// запятая допускается как десятичный разделитель.
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(strings.ReplaceAll(strings.TrimSpace(v), ",", "."))
	if err != nil {
		return 0, false
	}
	return f, true
}

// Set заменяет значение существующего ключа или добавляет новый в конец.
func (a *Attributes) Set(key, value string) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, at := range a {
		m[at.Key] = at.Value
	}
	return m
}

func (a Attributes) Validate() error {
	seen := make(map[string]struct{}, len(a))
	for _, at := range a {
		k := strings.TrimSpace(at.Key)
		if k == "" {
			return fmt.Errorf("empty attribute key: %w", ErrInvalid)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate attribute %q: %w", k, ErrInvalid)
		}
		seen[k] = struct{}{}
	}
	return nil
}

type Component struct {
	ID        int64         `json:"id"`
	Type      Type          `json:"type"`
	Attrs     Attributes    `json:"attributes"`
	Prices    []PriceRecord `json:"prices,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func (c Component) Brand() string {
	v, _ := c.Attrs.Get(AttrBrand)
	return v
}

func (c Component) OrderNumber() string {
	v, _ := c.Attrs.Get(AttrOrderNumber)
	return v
}

func (c Component) Clone() Component {
	out := c
	out.Attrs = c.Attrs.Clone()
	if c.Prices != nil {
		out.Prices = append([]PriceRecord(nil), c.Prices...)
	}
	return out
}

type PriceRecord struct {
	ID            int64           `json:"id"`
	ComponentID   int64           `json:"component_id"`
	Supplier      string          `json:"supplier"`
	Brand         string          `json:"brand"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	EffectiveDate time.Time       `json:"effective_date"`
}

func (p PriceRecord) Validate() error {
	if !p.Price.IsPositive() {
		return fmt.Errorf("price for component %d must be > 0: %w", p.ComponentID, ErrInvalid)
	}
	return nil
}

// CableRating: точка нагрузочной таблицы: кабель SizeMM на длине LengthM
// держит CurrentA.
type CableRating struct {
	ID       int64   `json:"id"`
	SizeMM   float64 `json:"size_mm"`
	LengthM  float64 `json:"length_m"`
	CurrentA float64 `json:"current_a"`
	Material string  `json:"material"`
}

func (r CableRating) Validate() error {
	if r.SizeMM <= 0 || r.LengthM <= 0 || r.CurrentA <= 0 {
		return fmt.Errorf("cable rating: size, length and current must be > 0: %w", ErrInvalid)
	}
	return nil
}

// IsZero: признак «кабель не подобран».
func (r CableRating) IsZero() bool {
	return r.SizeMM == 0 && r.LengthM == 0 && r.CurrentA == 0
}

// PriceObservation: одна строка прайса поставщика.
type PriceObservation struct {
	OrderNumber  string
	Brand        string
	RatedCurrent string
	CoilVoltage  string
	Price        decimal.Decimal
}

// PriceBatch сливается в каталог целиком или не сливается вообще.
type PriceBatch struct {
	ID         string
	Supplier   string
	Currency   string
	ObservedAt time.Time
	Items      []PriceObservation
}

func (o PriceObservation) Attributes() Attributes {
	return Attrs(
		AttrBrand, strings.TrimSpace(o.Brand),
		AttrOrderNumber, strings.TrimSpace(o.OrderNumber),
		AttrRatedCurrent, strings.TrimSpace(o.RatedCurrent),
		AttrCoilVoltage, strings.TrimSpace(o.CoilVoltage),
	)
}

func (b PriceBatch) Validate() error {
	if strings.TrimSpace(b.Supplier) == "" {
		return fmt.Errorf("batch %s: supplier is required: %w", b.ID, ErrInvalid)
	}
	for i, it := range b.Items {
		if strings.TrimSpace(it.OrderNumber) == "" || strings.TrimSpace(it.Brand) == "" {
			return fmt.Errorf("batch %s: item %d: order_number and brand are required: %w", b.ID, i+1, ErrInvalid)
		}
		if !it.Price.IsPositive() {
			return fmt.Errorf("batch %s: item %d: price must be > 0: %w", b.ID, i+1, ErrInvalid)
		}
	}
	return nil
}
