package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
	"github.com/Spok95/panel-bom/internal/infra/metrics"
)

var ErrInFlight = errors.New("price refresh is already running")

type Merger interface {
	MergePriceBatch(ctx context.Context, b catalog.PriceBatch) (int, error)
}

type Config struct {
	Supplier string
	Currency string
	Timeout  time.Duration
}

type Result struct {
	BatchID    uuid.UUID `json:"batch_id"`
	Merged     int       `json:"merged"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Message: текст ошибки или пустая строка.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Refresher обновляет цены в фоне. Одновременно идёт не больше одного
// обновления, отменить начатое нельзя.
type Refresher struct {
	fetch Fetcher
	merge Merger
	cfg   Config
	log   *slog.Logger
	now   func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	last    *Result
}

func New(fetch Fetcher, merge Merger, cfg Config, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Refresher{fetch: fetch, merge: merge, cfg: cfg, log: log, now: time.Now}
}

// Start запускает обновление и возвращает канал, в который ровно один раз
// придёт результат. Пока предыдущее обновление не закончилось, возвращается ErrInFlight.
// Отмена ctx на обновление не влияет, его ограничивает только Config.Timeout.
func (r *Refresher) Start(ctx context.Context) (<-chan Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	metrics.RefreshInFlight.Set(1)

	ch := make(chan Result, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		res := r.run(runCtx)

		r.mu.Lock()
		r.last = &res
		r.mu.Unlock()
		r.running.Store(false)
		metrics.RefreshInFlight.Set(0)

		ch <- res
	}()
	return ch, nil
}

func (r *Refresher) Running() bool { return r.running.Load() }

// Last: результат последнего завершённого обновления.
func (r *Refresher) Last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

func (r *Refresher) run(ctx context.Context) Result {
	res := Result{BatchID: uuid.New(), StartedAt: r.now()}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	log := r.log.With("batch_id", res.BatchID.String())
	log.Info("price refresh started", "supplier", r.cfg.Supplier)

	res.Merged, res.Err = r.refresh(ctx, res.BatchID)
	res.FinishedAt = r.now()
	metrics.RefreshDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	if res.Err != nil {
		metrics.Refreshes.WithLabelValues("error").Inc()
		log.Error("price refresh failed", "err", res.Err)
		return res
	}
	metrics.Refreshes.WithLabelValues("ok").Inc()
	metrics.PricesMerged.Add(float64(res.Merged))
	log.Info("price refresh done", "merged", res.Merged)
	return res
}

func (r *Refresher) refresh(ctx context.Context, id uuid.UUID) (int, error) {
	data, err := r.fetch.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	items, err := ParsePriceList(data)
	if err != nil {
		return 0, err
	}
	batch := catalog.PriceBatch{
		ID:         id.String(),
		Supplier:   r.cfg.Supplier,
		Currency:   r.cfg.Currency,
		ObservedAt: r.now(),
		Items:      items,
	}
	n, err := r.merge.MergePriceBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("merge: %w", err)
	}
	return n, nil
}
