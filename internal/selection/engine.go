// Package selection подбирает из каталога одну деталь по набору условий
// на атрибуты: из всех подходящих берётся минимальная по ключу сортировки.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

type Catalog interface {
	ListComponents(ctx context.Context, t catalog.Type) ([]catalog.Component, error)
}

type PriceSource interface {
	LatestPrice(ctx context.Context, componentID int64, brand string) (catalog.PriceRecord, error)
}

type Selection struct {
	Component catalog.Component
	Price     *catalog.PriceRecord
}

type Engine struct {
	catalog Catalog
	prices  PriceSource
	log     *slog.Logger
}

func NewEngine(c Catalog, prices PriceSource, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{catalog: c, prices: prices, log: log}
}

type candidate struct {
	c    catalog.Component
	keys []float64
}

// Select возвращает минимальный по tieBreak компонент типа t, на котором
// выполняются все условия. Несколько ключей сравниваются по очереди.
// Если ничего не нашлось, ошибка, обёрнутая вокруг catalog.ErrNotFound.
func (e *Engine) Select(ctx context.Context, t catalog.Type, preds []Predicate, tieBreak ...string) (Selection, error) {
	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return Selection{}, err
		}
	}

	comps, err := e.catalog.ListComponents(ctx, t)
	if err != nil {
		return Selection{}, fmt.Errorf("list %s: %w", t, err)
	}
	if len(comps) == 0 {
		return Selection{}, fmt.Errorf("no %s components in catalog: %w", t, catalog.ErrNotFound)
	}

	var cands []candidate
	for _, c := range comps {
		if !matchAll(c.Attrs, preds) {
			continue
		}
		keys, ok := sortKeys(c.Attrs, tieBreak)
		if !ok {
			e.log.Debug("component skipped: tie-break attribute is not numeric",
				"type", t, "id", c.ID, "keys", tieBreak)
			continue
		}
		cands = append(cands, candidate{c: c, keys: keys})
	}
	if len(cands) == 0 {
		return Selection{}, fmt.Errorf("no %s with %s: %w", t, describe(preds), catalog.ErrNotFound)
	}

	sort.SliceStable(cands, func(i, j int) bool { return less(cands[i], cands[j]) })
	sel := Selection{Component: cands[0].c}

	if e.prices != nil {
		p, err := e.latestPrice(ctx, sel.Component)
		if err != nil {
			return Selection{}, err
		}
		sel.Price = p
	}
	return sel, nil
}

// latestPrice сначала ищет цену по бренду компонента, затем любую.
func (e *Engine) latestPrice(ctx context.Context, c catalog.Component) (*catalog.PriceRecord, error) {
	brands := []string{c.Brand()}
	if brands[0] != "" {
		brands = append(brands, "")
	}
	for _, b := range brands {
		p, err := e.prices.LatestPrice(ctx, c.ID, b)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func matchAll(attrs catalog.Attributes, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(attrs) {
			return false
		}
	}
	return true
}

func sortKeys(attrs catalog.Attributes, keys []string) ([]float64, bool) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := attrs.Get(k)
		if !ok {
			return nil, false
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func less(a, b candidate) bool {
	for i := range a.keys {
		if a.keys[i] != b.keys[i] {
			return a.keys[i] < b.keys[i]
		}
	}
	return a.c.ID < b.c.ID
}

func describe(preds []Predicate) string {
	if len(preds) == 0 {
		return "no constraints"
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return strings.Join(parts, " AND ")
}
