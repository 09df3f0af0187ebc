package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier: общее у pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

/* Components */

func (r *Repo) ListComponents(ctx context.Context, t Type) ([]Component, error) {
	return r.listComponents(ctx, `
		SELECT c.id, c.type, c.created_at, a.key, a.value
		FROM components c
		JOIN component_attributes a ON a.component_id = c.id
		WHERE c.type = $1
		ORDER BY c.id, a.position
	`, string(t))
}

func (r *Repo) ListAllComponents(ctx context.Context) ([]Component, error) {
	return r.listComponents(ctx, `
		SELECT c.id, c.type, c.created_at, a.key, a.value
		FROM components c
		JOIN component_attributes a ON a.component_id = c.id
		ORDER BY c.id, a.position
	`)
}

func (r *Repo) listComponents(ctx context.Context, q string, args ...any) ([]Component, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Component
	for rows.Next() {
		var (
			id         int64
			typ        string
			createdAt  time.Time
			key, value string
		)
		if err := rows.Scan(&id, &typ, &createdAt, &key, &value); err != nil {
			return nil, err
		}
		// строки идут по id, атрибуты одного компонента подряд
		if n := len(out); n == 0 || out[n-1].ID != id {
			out = append(out, Component{ID: id, Type: Type(typ), CreatedAt: createdAt})
		}
		out[len(out)-1].Attrs = append(out[len(out)-1].Attrs, Attribute{Key: key, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, len(out))
	idx := make(map[int64]int, len(out))
	for i, c := range out {
		ids[i] = c.ID
		idx[c.ID] = i
	}
	prices, err := r.listPrices(ctx, `
		SELECT id, component_id, supplier, brand, price::text, currency, effective_date
		FROM component_prices
		WHERE component_id = ANY($1)
		ORDER BY component_id, effective_date
	`, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range prices {
		i := idx[p.ComponentID]
		out[i].Prices = append(out[i].Prices, p)
	}
	return out, nil
}

// InsertComponentIfAbsent повторная вставка того же натурального ключа
// возвращает существующий id.
func (r *Repo) InsertComponentIfAbsent(ctx context.Context, t Type, attrs Attributes) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := insertComponentIfAbsent(ctx, tx, t, attrs)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit(ctx)
}

func insertComponentIfAbsent(ctx context.Context, q querier, t Type, attrs Attributes) (int64, error) {
	if err := attrs.Validate(); err != nil {
		return 0, err
	}
	key, err := NaturalKey(t, attrs)
	if err != nil {
		return 0, err
	}

	var id int64
	err = q.QueryRow(ctx, `
		INSERT INTO components (type, natural_key) VALUES ($1,$2)
		ON CONFLICT (natural_key) DO NOTHING
		RETURNING id
	`, string(t), key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Уже есть, вернём существующий
		if err := q.QueryRow(ctx, `SELECT id FROM components WHERE natural_key = $1`, key).Scan(&id); err != nil {
			return 0, fmt.Errorf("lookup %s: %w", key, err)
		}
		return id, nil
	}
	if err != nil {
		return 0, fmt.Errorf("insert component %s: %w", key, err)
	}

	for i, at := range attrs {
		if _, err := q.Exec(ctx, `
			INSERT INTO component_attributes (component_id, position, key, value)
			VALUES ($1,$2,$3,$4)
		`, id, i, at.Key, at.Value); err != nil {
			return 0, fmt.Errorf("insert attribute %s of %s: %w", at.Key, key, err)
		}
	}
	return id, nil
}

/* Prices */

func (r *Repo) ListPrices(ctx context.Context, componentID int64) ([]PriceRecord, error) {
	return r.listPrices(ctx, `
		SELECT id, component_id, supplier, brand, price::text, currency, effective_date
		FROM component_prices
		WHERE component_id = $1
		ORDER BY effective_date
	`, componentID)
}

func (r *Repo) listPrices(ctx context.Context, q string, args ...any) ([]PriceRecord, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceRecord
	for rows.Next() {
		var (
			p     PriceRecord
			price string
		)
		if err := rows.Scan(&p.ID, &p.ComponentID, &p.Supplier, &p.Brand, &price, &p.Currency, &p.EffectiveDate); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("price %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) AddPrice(ctx context.Context, p PriceRecord) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return addPrice(ctx, r.pool, p)
}

func addPrice(ctx context.Context, q querier, p PriceRecord) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO component_prices (component_id, supplier, brand, price, currency, effective_date)
		VALUES ($1,$2,$3,$4::numeric,$5,$6)
		RETURNING id
	`, p.ComponentID, p.Supplier, p.Brand, p.Price.String(), p.Currency, p.EffectiveDate).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return 0, fmt.Errorf("component %d: %w", p.ComponentID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("add price for component %d: %w", p.ComponentID, err)
	}
	return id, nil
}

// MergePriceBatch: одна транзакция на пакет: любая ошибка откатывает всё.
func (r *Repo) MergePriceBatch(ctx context.Context, b PriceBatch) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, it := range b.Items {
		id, err := insertComponentIfAbsent(ctx, tx, TypeContactor, it.Attributes())
		if err != nil {
			return 0, fmt.Errorf("batch %s: item %d: %w", b.ID, i+1, err)
		}
		if _, err := addPrice(ctx, tx, PriceRecord{
			ComponentID:   id,
			Supplier:      b.Supplier,
			Brand:         it.Brand,
			Price:         it.Price,
			Currency:      b.Currency,
			EffectiveDate: b.ObservedAt,
		}); err != nil {
			return 0, fmt.Errorf("batch %s: item %d: %w", b.ID, i+1, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(b.Items), nil
}

/* Cable ratings */

func (r *Repo) ListCableRatings(ctx context.Context) ([]CableRating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, size_mm, length_m, current_a, material
		FROM cable_ratings
		ORDER BY length_m, current_a, size_mm
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CableRating
	for rows.Next() {
		var c CableRating
		if err := rows.Scan(&c.ID, &c.SizeMM, &c.LengthM, &c.CurrentA, &c.Material); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) InsertCableRating(ctx context.Context, c CableRating) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO cable_ratings (size_mm, length_m, current_a, material)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (size_mm, length_m, material) DO UPDATE SET current_a = EXCLUDED.current_a
		RETURNING id
	`, c.SizeMM, c.LengthM, c.CurrentA, c.Material).Scan(&id)
	return id, err
}
