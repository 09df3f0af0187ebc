package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

// CatalogWriter: запись в каталог с обновлением кэша чтения (catalog.Store).
type CatalogWriter interface {
	InsertComponentIfAbsent(ctx context.Context, t catalog.Type, attrs catalog.Attributes) (int64, error)
	GetByID(ctx context.Context, id int64) (*catalog.Component, error)
	AddPrice(ctx context.Context, p catalog.PriceRecord) (int64, error)
	InsertCableRating(ctx context.Context, r catalog.CableRating) (int64, error)
}

// WithCatalog включает ручки /api/components и /api/cable-ratings.
// Без каталога они отвечают 503.
func (a *API) WithCatalog(c CatalogWriter) *API {
	a.catalog = c
	return a
}

func (a *API) registerCatalog() {
	a.mux.HandleFunc("POST /api/components", a.handleComponentCreate)
	a.mux.HandleFunc("GET /api/components/{id}", a.handleComponentGet)
	a.mux.HandleFunc("POST /api/components/{id}/prices", a.handlePriceAdd)
	a.mux.HandleFunc("POST /api/cable-ratings", a.handleCableRatingCreate)
}

type componentRequest struct {
	Type       catalog.Type       `json:"type"`
	Attributes catalog.Attributes `json:"attributes"`
}

type priceRequest struct {
	Supplier      string          `json:"supplier"`
	Brand         string          `json:"brand"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	EffectiveDate string          `json:"effective_date"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

func (a *API) handleComponentCreate(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	var req componentRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.catalog.InsertComponentIfAbsent(r.Context(), catalog.Type(strings.TrimSpace(string(req.Type))), req.Attributes)
	if err != nil {
		a.failCatalog(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (a *API) handleComponentGet(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	c, err := a.catalog.GetByID(r.Context(), id)
	if err != nil {
		a.failCatalog(w, err)
		return
	}
	if c == nil {
		a.fail(w, http.StatusNotFound, fmt.Errorf("component %d: %w", id, catalog.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePriceAdd дописывает цену в журнал. Без effective_date берётся текущий момент.
func (a *API) handlePriceAdd(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if !a.decode(w, r, &req) {
		return
	}
	eff := time.Now()
	if req.EffectiveDate != "" {
		t, err := time.Parse(time.DateOnly, req.EffectiveDate)
		if err != nil {
			a.fail(w, http.StatusBadRequest, fmt.Errorf("effective_date %q: want YYYY-MM-DD", req.EffectiveDate))
			return
		}
		eff = t
	}
	pid, err := a.catalog.AddPrice(r.Context(), catalog.PriceRecord{
		ComponentID:   id,
		Supplier:      strings.TrimSpace(req.Supplier),
		Brand:         strings.TrimSpace(req.Brand),
		Price:         req.Price,
		Currency:      strings.TrimSpace(req.Currency),
		EffectiveDate: eff,
	})
	if err != nil {
		a.failCatalog(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: pid})
}

func (a *API) handleCableRatingCreate(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	var req catalog.CableRating
	if !a.decode(w, r, &req) {
		return
	}
	req.ID = 0
	id, err := a.catalog.InsertCableRating(r.Context(), req)
	if err != nil {
		a.failCatalog(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (a *API) catalogReady(w http.ResponseWriter) bool {
	if a.catalog == nil {
		a.fail(w, http.StatusServiceUnavailable, errors.New("catalog writes are not configured"))
		return false
	}
	return true
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize)).Decode(v); err != nil {
		a.fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.fail(w, http.StatusBadRequest, fmt.Errorf("component id %q is invalid", raw))
		return 0, false
	}
	return id, true
}

func (a *API) failCatalog(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalid):
		a.fail(w, http.StatusBadRequest, err)
	case errors.Is(err, catalog.ErrNotFound):
		a.fail(w, http.StatusNotFound, err)
	default:
		a.fail(w, http.StatusInternalServerError, err)
	}
}
