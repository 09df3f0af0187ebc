package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

type PriceLister interface {
	ListPrices(ctx context.Context, componentID int64) ([]catalog.PriceRecord, error)
}

type Ledger struct{ src PriceLister }

func NewLedger(src PriceLister) *Ledger { return &Ledger{src: src} }

// LatestPrice возвращает самую свежую цену компонента. Пустой brand
// подходит под любой бренд.
func (l *Ledger) LatestPrice(ctx context.Context, componentID int64, brand string) (catalog.PriceRecord, error) {
	records, err := l.src.ListPrices(ctx, componentID)
	if err != nil {
		return catalog.PriceRecord{}, fmt.Errorf("list prices of component %d: %w", componentID, err)
	}
	p, ok := Latest(records, brand)
	if !ok {
		if brand != "" {
			return catalog.PriceRecord{}, fmt.Errorf("price of component %d for brand %q: %w", componentID, brand, catalog.ErrNotFound)
		}
		return catalog.PriceRecord{}, fmt.Errorf("price of component %d: %w", componentID, catalog.ErrNotFound)
	}
	return p, nil
}

// Latest выбирает запись с максимальной датой. При равных датах
// побеждает более поздняя запись (больший id).
func Latest(records []catalog.PriceRecord, brand string) (catalog.PriceRecord, bool) {
	brand = strings.TrimSpace(brand)
	var (
		best  catalog.PriceRecord
		found bool
	)
	for _, p := range records {
		if brand != "" && !strings.EqualFold(strings.TrimSpace(p.Brand), brand) {
			continue
		}
		if !found || p.EffectiveDate.After(best.EffectiveDate) ||
			(p.EffectiveDate.Equal(best.EffectiveDate) && p.ID > best.ID) {
			best, found = p, true
		}
	}
	return best, found
}
