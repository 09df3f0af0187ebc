package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Spec: типизированное представление компонента. Известные атрибуты
// подняты в поля, всё прочее остаётся в Extra.
type Spec interface {
	Kind() Type
	Describe() string
}

type Base struct {
	Brand       string
	OrderNumber string
	Description string
	Extra       map[string]string
}

type ContactorSpec struct {
	Base
	RatedCurrentA float64
	RatedPowerKW  float64
	CoilVoltage   string
}

type MPCBSpec struct {
	Base
	RatedPowerKW float64
	CurrentMinA  float64
	CurrentMaxA  float64
}

type MCCBSpec struct {
	Base
	RatedCurrentA float64
}

type RelaySpec struct {
	Base
	CoilVoltage string
	Contacts    string
}

type IOCardSpec struct {
	Base
	Channels int
	Signal   string
}

type EnclosureSpec struct {
	Base
	Width  float64
	Height float64
	Depth  float64
}

// GenericSpec: для типов, которые ещё не описаны отдельно.
type GenericSpec struct {
	Base
	Type Type
}

func (ContactorSpec) Kind() Type { return TypeContactor }
func (MPCBSpec) Kind() Type      { return TypeMPCB }
func (MCCBSpec) Kind() Type      { return TypeMCCB }
func (RelaySpec) Kind() Type     { return TypeRelay }
func (IOCardSpec) Kind() Type    { return TypeIOCard }
func (EnclosureSpec) Kind() Type { return TypeEnclosure }
func (s GenericSpec) Kind() Type { return s.Type }

func (s ContactorSpec) Describe() string {
	return s.describe(fmt.Sprintf("Contactor %s A / %s kW, coil %s",
		num(s.RatedCurrentA), num(s.RatedPowerKW), s.CoilVoltage))
}

func (s MPCBSpec) Describe() string {
	if s.CurrentMaxA > 0 {
		return s.describe(fmt.Sprintf("MPCB %s kW, %s-%s A",
			num(s.RatedPowerKW), num(s.CurrentMinA), num(s.CurrentMaxA)))
	}
	return s.describe(fmt.Sprintf("MPCB %s kW", num(s.RatedPowerKW)))
}

func (s MCCBSpec) Describe() string {
	return s.describe(fmt.Sprintf("MCCB %s A", num(s.RatedCurrentA)))
}

func (s RelaySpec) Describe() string {
	return s.describe(strings.TrimSpace(fmt.Sprintf("Relay %s, coil %s", s.Contacts, s.CoilVoltage)))
}

func (s IOCardSpec) Describe() string {
	return s.describe(fmt.Sprintf("IO card %d ch %s", s.Channels, s.Signal))
}

func (s EnclosureSpec) Describe() string {
	return s.describe(fmt.Sprintf("Enclosure %sx%sx%s mm", num(s.Width), num(s.Height), num(s.Depth)))
}

func (s GenericSpec) Describe() string {
	return s.describe(string(s.Type))
}

func (b Base) describe(fallback string) string {
	if b.Description != "" {
		return b.Description
	}
	return fallback
}

// Decode раскладывает атрибуты компонента по типизированной структуре.
// Числа, которые не приводятся, остаются нулями, а исходный текст
// попадает в Extra, чтобы ничего не терять.
func Decode(c Component) Spec {
	used := map[string]bool{AttrBrand: true, AttrOrderNumber: true, AttrDescription: true}
	f := func(key string) float64 {
		used[key] = true
		v, ok := c.Attrs.Float(key)
		if !ok {
			delete(used, key)
		}
		return v
	}
	s := func(key string) string {
		used[key] = true
		v, _ := c.Attrs.Get(key)
		return v
	}

	base := Base{Brand: c.Brand(), OrderNumber: c.OrderNumber()}
	base.Description, _ = c.Attrs.Get(AttrDescription)

	var spec Spec
	switch c.Type {
	case TypeContactor:
		spec = ContactorSpec{RatedCurrentA: f(AttrRatedCurrent), RatedPowerKW: f(AttrRatedPowerKW), CoilVoltage: s(AttrCoilVoltage)}
	case TypeMPCB:
		spec = MPCBSpec{RatedPowerKW: f(AttrRatedPowerKW), CurrentMinA: f(AttrCurrentMin), CurrentMaxA: f(AttrCurrentMax)}
	case TypeMCCB:
		spec = MCCBSpec{RatedCurrentA: f(AttrRatedCurrent)}
	case TypeRelay:
		spec = RelaySpec{CoilVoltage: s(AttrCoilVoltage), Contacts: s(AttrContacts)}
	case TypeIOCard:
		ch, err := strconv.Atoi(strings.TrimSpace(s(AttrChannels)))
		if err != nil {
			delete(used, AttrChannels)
		}
		spec = IOCardSpec{Channels: ch, Signal: s(AttrSignal)}
	case TypeEnclosure:
		spec = EnclosureSpec{Width: f(AttrWidth), Height: f(AttrHeight), Depth: f(AttrDepth)}
	default:
		spec = GenericSpec{Type: c.Type}
	}

	for _, at := range c.Attrs {
		if used[at.Key] {
			continue
		}
		if base.Extra == nil {
			base.Extra = map[string]string{}
		}
		base.Extra[at.Key] = at.Value
	}

	switch v := spec.(type) {
	case ContactorSpec:
		v.Base = base
		return v
	case MPCBSpec:
		v.Base = base
		return v
	case MCCBSpec:
		v.Base = base
		return v
	case RelaySpec:
		v.Base = base
		return v
	case IOCardSpec:
		v.Base = base
		return v
	case EnclosureSpec:
		v.Base = base
		return v
	case GenericSpec:
		v.Base = base
		return v
	}
	return spec
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
