package catalog

import (
	"fmt"
	"strings"
)

var naturalKeys = map[Type][]string{
	TypeContactor: {AttrBrand, AttrOrderNumber, AttrRatedCurrent, AttrCoilVoltage},
	TypeMPCB:      {AttrBrand, AttrOrderNumber, AttrRatedPowerKW},
	TypeMCCB:      {AttrBrand, AttrOrderNumber, AttrRatedCurrent},
	TypeRelay:     {AttrBrand, AttrOrderNumber, AttrCoilVoltage},
	TypeIOCard:    {AttrBrand, AttrOrderNumber},
	TypeEnclosure: {AttrBrand, AttrOrderNumber, AttrWidth, AttrHeight, AttrDepth},
}

// NaturalKeyAttrs возвращает набор атрибутов, определяющих «ту же самую» деталь.
func NaturalKeyAttrs(t Type) []string {
	if keys, ok := naturalKeys[t]; ok {
		return keys
	}
	return []string{AttrBrand, AttrOrderNumber}
}

// NaturalKey строит ключ дедупликации: тип и значения ключевых атрибутов
// без учёта регистра и пробелов по краям.
func NaturalKey(t Type, attrs Attributes) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", fmt.Errorf("component type is required: %w", ErrInvalid)
	}
	keys := NaturalKeyAttrs(t)
	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, strings.ToLower(string(t)))
	for _, k := range keys {
		v, ok := attrs.Get(k)
		v = strings.ToLower(strings.TrimSpace(v))
		if !ok || v == "" {
			return "", fmt.Errorf("%s: natural key attribute %q is missing: %w", t, k, ErrInvalid)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "|"), nil
}
