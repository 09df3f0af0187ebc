package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Spok95/panel-bom/internal/domain/bom"
	"github.com/Spok95/panel-bom/internal/domain/catalog"
	"github.com/Spok95/panel-bom/internal/refresh"
	"github.com/Spok95/panel-bom/internal/report"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadSize   = 8 << 20
)

type BOMBuilder interface {
	BuildTransportPanel(ctx context.Context, motors []bom.MotorQty, cableLengthM, voltage float64) (bom.PanelBOM, error)
}

type RefreshRunner interface {
	Start(ctx context.Context) (<-chan refresh.Result, error)
	Running() bool
	Last() (refresh.Result, bool)
}

type Defaults struct {
	CableLengthM float64
	Voltage      float64
}

type API struct {
	builder  BOMBuilder
	usages   bom.Usages
	refresh  RefreshRunner
	catalog  CatalogWriter
	defaults Defaults
	log      *slog.Logger
	mux      *http.ServeMux
}

func NewAPI(builder BOMBuilder, usages bom.Usages, rr RefreshRunner, d Defaults, log *slog.Logger) *API {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	a := &API{builder: builder, usages: usages, refresh: rr, defaults: d, log: log, mux: http.NewServeMux()}
	a.mux.HandleFunc("POST /api/bom", a.handleBOM)
	a.mux.HandleFunc("GET /api/usages", a.handleUsages)
	a.mux.HandleFunc("GET /api/motors/template", a.handleTemplate)
	a.mux.HandleFunc("POST /api/refresh", a.handleRefreshStart)
	a.mux.HandleFunc("GET /api/refresh", a.handleRefreshStatus)
	a.registerCatalog()
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.mux.ServeHTTP(w, r) }

type motorRequest struct {
	Usage   string  `json:"usage"`
	PowerKW float64 `json:"power_kw"`
	Qty     int     `json:"qty"`
}

type bomRequest struct {
	CableLengthM *float64       `json:"cable_length_m"`
	Voltage      *float64       `json:"voltage"`
	Motors       []motorRequest `json:"motors"`
}

type bomResponse struct {
	bom.PanelBOM
	Total string `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleBOM принимает JSON со списком двигателей или XLSX (usage, power_kw, qty).
// Для XLSX длина и напряжение берутся из query: ?length=50&voltage=380.
func (a *API) handleBOM(w http.ResponseWriter, r *http.Request) {
	length, voltage := a.defaults.CableLengthM, a.defaults.Voltage
	var motors []bom.MotorQty

	body := http.MaxBytesReader(w, r.Body, maxUploadSize)
	if r.Header.Get("Content-Type") == xlsxContentType {
		data, err := io.ReadAll(body)
		if err != nil {
			a.fail(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
			return
		}
		motors, err = report.ReadMotors(bytes.NewReader(data), a.usages)
		if err != nil {
			a.fail(w, http.StatusBadRequest, err)
			return
		}
		if length, err = queryFloat(r, "length", length); err != nil {
			a.fail(w, http.StatusBadRequest, err)
			return
		}
		if voltage, err = queryFloat(r, "voltage", voltage); err != nil {
			a.fail(w, http.StatusBadRequest, err)
			return
		}
	} else {
		var req bomRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			a.fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		if req.CableLengthM != nil {
			length = *req.CableLengthM
		}
		if req.Voltage != nil {
			voltage = *req.Voltage
		}
		for i, m := range req.Motors {
			mt, err := a.usages.Motor(m.Usage, m.PowerKW)
			if err != nil {
				a.fail(w, http.StatusBadRequest, fmt.Errorf("motors[%d]: %w", i, err))
				return
			}
			motors = append(motors, bom.MotorQty{Motor: mt, Qty: m.Qty})
		}
	}

	if err := bom.CheckParams(length, voltage); err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}

	out, err := a.builder.BuildTransportPanel(r.Context(), motors, length, voltage)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, bom.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, catalog.ErrNotFound):
			status = http.StatusUnprocessableEntity
		}
		a.fail(w, status, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := report.WriteBOM(&buf, out); err != nil {
			a.fail(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=panel_bom_%s.xlsx", time.Now().Format("20060102_150405")))
		_, _ = w.Write(buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, bomResponse{PanelBOM: out, Total: out.Total().StringFixed(2)})
}

func (a *API) handleUsages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.usages)
}

func (a *API) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := report.MotorTemplate(&buf, a.usages); err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=motors.xlsx")
	_, _ = w.Write(buf.Bytes())
}

type refreshStatus struct {
	Running bool           `json:"running"`
	Last    *refreshResult `json:"last,omitempty"`
}

type refreshResult struct {
	refresh.Result
	Error string `json:"error,omitempty"`
}

func (a *API) handleRefreshStart(w http.ResponseWriter, r *http.Request) {
	if a.refresh == nil {
		a.fail(w, http.StatusServiceUnavailable, errors.New("price refresh is not configured"))
		return
	}
	// результат забирается через GET /api/refresh, канал буферизован
	if _, err := a.refresh.Start(r.Context()); err != nil {
		if errors.Is(err, refresh.ErrInFlight) {
			a.fail(w, http.StatusConflict, err)
			return
		}
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshStatus{Running: true})
}

func (a *API) handleRefreshStatus(w http.ResponseWriter, _ *http.Request) {
	if a.refresh == nil {
		a.fail(w, http.StatusServiceUnavailable, errors.New("price refresh is not configured"))
		return
	}
	st := refreshStatus{Running: a.refresh.Running()}
	if last, ok := a.refresh.Last(); ok {
		st.Last = &refreshResult{Result: last, Error: last.Message()}
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) fail(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		a.log.Error("api request failed", "status", status, "err", err)
	} else {
		a.log.Debug("api request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("query %s: %q is not a number", name, raw)
	}
	return v, nil
}
