package catalog

import (
	"context"
	"fmt"
)

// Store пишет в Postgres и читает из Memory. После каждой записи кэш
// перечитывается, чтобы подбор видел свежие цены.
type Store struct {
	repo *Repo
	mem  *Memory
}

func NewStore(ctx context.Context, repo *Repo) (*Store, error) {
	s := &Store{repo: repo, mem: NewMemory()}
	if err := s.mem.Load(ctx, repo); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ListComponents(ctx context.Context, t Type) ([]Component, error) {
	return s.mem.ListComponents(ctx, t)
}

func (s *Store) ListCableRatings(ctx context.Context) ([]CableRating, error) {
	return s.mem.ListCableRatings(ctx)
}

func (s *Store) ListPrices(ctx context.Context, componentID int64) ([]PriceRecord, error) {
	return s.mem.ListPrices(ctx, componentID)
}

func (s *Store) InsertComponentIfAbsent(ctx context.Context, t Type, attrs Attributes) (int64, error) {
	id, err := s.repo.InsertComponentIfAbsent(ctx, t, attrs)
	if err != nil {
		return 0, err
	}
	return id, s.reload(ctx)
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Component, error) {
	return s.mem.GetByID(ctx, id)
}

func (s *Store) AddPrice(ctx context.Context, p PriceRecord) (int64, error) {
	id, err := s.repo.AddPrice(ctx, p)
	if err != nil {
		return 0, err
	}
	return id, s.reload(ctx)
}

func (s *Store) InsertCableRating(ctx context.Context, r CableRating) (int64, error) {
	id, err := s.repo.InsertCableRating(ctx, r)
	if err != nil {
		return 0, err
	}
	return id, s.reload(ctx)
}

func (s *Store) MergePriceBatch(ctx context.Context, b PriceBatch) (int, error) {
	n, err := s.repo.MergePriceBatch(ctx, b)
	if err != nil {
		return 0, err
	}
	return n, s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) error {
	if err := s.mem.Load(ctx, s.repo); err != nil {
		return fmt.Errorf("reload catalog cache: %w", err)
	}
	return nil
}
