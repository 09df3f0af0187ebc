package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Source: откуда Memory берёт данные при загрузке (обычно Repo).
type Source interface {
	ListAllComponents(ctx context.Context) ([]Component, error)
	ListCableRatings(ctx context.Context) ([]CableRating, error)
}

// Memory: каталог в памяти. Используется как кэш для чтения поверх
// Postgres и как самостоятельное хранилище в тестах.
type Memory struct {
	mu        sync.RWMutex
	byID      map[int64]*Component
	byType    map[Type][]int64
	byKey     map[string]int64
	cables    []CableRating
	nextID    int64
	nextPrice int64
	nextCable int64
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[int64]*Component),
		byType: make(map[Type][]int64),
		byKey:  make(map[string]int64),
		now:    time.Now,
	}
}

// Load заменяет содержимое целиком тем, что вернул источник.
func (m *Memory) Load(ctx context.Context, src Source) error {
	comps, err := src.ListAllComponents(ctx)
	if err != nil {
		return fmt.Errorf("load components: %w", err)
	}
	cables, err := src.ListCableRatings(ctx)
	if err != nil {
		return fmt.Errorf("load cable ratings: %w", err)
	}

	byID := make(map[int64]*Component, len(comps))
	byType := make(map[Type][]int64)
	byKey := make(map[string]int64, len(comps))
	var maxID, maxPrice, maxCable int64

	for _, c := range comps {
		cp := c.Clone()
		byID[cp.ID] = &cp
		byType[cp.Type] = append(byType[cp.Type], cp.ID)
		if key, err := NaturalKey(cp.Type, cp.Attrs); err == nil {
			byKey[key] = cp.ID
		}
		maxID = max(maxID, cp.ID)
		for _, p := range cp.Prices {
			maxPrice = max(maxPrice, p.ID)
		}
	}
	for _, r := range cables {
		maxCable = max(maxCable, r.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID, m.byType, m.byKey = byID, byType, byKey
	m.cables = append([]CableRating(nil), cables...)
	m.nextID, m.nextPrice, m.nextCable = maxID, maxPrice, maxCable
	return nil
}

func (m *Memory) ListComponents(_ context.Context, t Type) ([]Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byType[t]
	out := make([]Component, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.byID[id].Clone())
	}
	return out, nil
}

func (m *Memory) ListAllComponents(_ context.Context) ([]Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Component, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := c.Clone()
	return &cp, nil
}

func (m *Memory) ListCableRatings(_ context.Context) ([]CableRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CableRating(nil), m.cables...), nil
}

func (m *Memory) ListPrices(_ context.Context, componentID int64) ([]PriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[componentID]
	if !ok {
		return nil, nil
	}
	return append([]PriceRecord(nil), c.Prices...), nil
}

// InsertComponentIfAbsent идемпотентна: при совпадении натурального ключа
// возвращается id уже существующего компонента.
func (m *Memory) InsertComponentIfAbsent(_ context.Context, t Type, attrs Attributes) (int64, error) {
	if err := attrs.Validate(); err != nil {
		return 0, err
	}
	key, err := NaturalKey(t, attrs)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(t, key, attrs), nil
}

func (m *Memory) insertLocked(t Type, key string, attrs Attributes) int64 {
	if id, ok := m.byKey[key]; ok {
		return id
	}
	m.nextID++
	c := &Component{ID: m.nextID, Type: t, Attrs: attrs.Clone(), CreatedAt: m.now()}
	m.byID[c.ID] = c
	m.byType[t] = append(m.byType[t], c.ID)
	m.byKey[key] = c.ID
	return c.ID
}

func (m *Memory) AddPrice(_ context.Context, p PriceRecord) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPriceLocked(p)
}

func (m *Memory) addPriceLocked(p PriceRecord) (int64, error) {
	c, ok := m.byID[p.ComponentID]
	if !ok {
		return 0, fmt.Errorf("component %d: %w", p.ComponentID, ErrNotFound)
	}
	m.nextPrice++
	p.ID = m.nextPrice
	c.Prices = append(c.Prices, p)
	return p.ID, nil
}

func (m *Memory) InsertCableRating(_ context.Context, r CableRating) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCable++
	r.ID = m.nextCable
	m.cables = append(m.cables, r)
	return r.ID, nil
}

// MergePriceBatch: пакет сначала полностью проверяется, и только потом
// применяется под одной блокировкой. Частичного слияния не бывает.
func (m *Memory) MergePriceBatch(_ context.Context, b PriceBatch) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	keys := make([]string, len(b.Items))
	for i, it := range b.Items {
		key, err := NaturalKey(TypeContactor, it.Attributes())
		if err != nil {
			return 0, fmt.Errorf("batch %s: item %d: %w", b.ID, i+1, err)
		}
		keys[i] = key
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range b.Items {
		id := m.insertLocked(TypeContactor, keys[i], it.Attributes())
		if _, err := m.addPriceLocked(PriceRecord{
			ComponentID:   id,
			Supplier:      b.Supplier,
			Brand:         it.Brand,
			Price:         it.Price,
			Currency:      b.Currency,
			EffectiveDate: b.ObservedAt,
		}); err != nil {
			return 0, err
		}
	}
	return len(b.Items), nil
}
