// Package httpapi exposes the sales and order stores to UI clients over a
// small REST surface. Authentication is assumed to happen upstream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/easytech-h/fashion-to-yoncell/internal/domain"
	"github.com/easytech-h/fashion-to-yoncell/internal/store"
)

// ActivityFeed is the read side of the activity log. A nil feed leaves the
// /activity endpoint serving an empty list.
type ActivityFeed interface {
	Recent(ctx context.Context, limit int) []domain.ActivityEntry
}

type API struct {
	sales         *store.SalesStore
	orders        *store.OrderStore
	feed          ActivityFeed
	allowedOrigin string
	logger        *zap.Logger
}

func New(sales *store.SalesStore, orders *store.OrderStore, feed ActivityFeed, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		sales:         sales,
		orders:        orders,
		feed:          feed,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/sales", a.handleSales)
	mux.HandleFunc("/api/v1/sales/", a.handleSaleActions)
	mux.HandleFunc("/api/v1/orders", a.handleOrders)
	mux.HandleFunc("/api/v1/orders/", a.handleOrderActions)
	mux.HandleFunc("/api/v1/activity", a.handleActivity)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"sales": a.sales.List(r.Context())})
	case http.MethodPost:
		var input domain.SaleInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		sale, err := a.sales.Add(r.Context(), input)
		if err != nil && !errors.Is(err, store.ErrPersist) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}

		resp := map[string]any{"sale": sale}
		if err != nil {
			// Committed in memory, storage is behind. The client gets the
			// record plus a warning instead of a failure.
			resp["persist_warning"] = err.Error()
		}
		writeJSON(w, http.StatusCreated, resp)
	case http.MethodDelete:
		err := a.sales.Clear(r.Context())
		resp := map[string]any{"cleared": true}
		if err != nil {
			resp["persist_warning"] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sales/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	sale, err := a.sales.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"orders": a.orders.List(r.Context())})
	case http.MethodPost:
		var input domain.OrderInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		order, err := a.orders.Add(r.Context(), input)
		if err != nil && !errors.Is(err, store.ErrPersist) {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, store.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}

		resp := map[string]any{"order": order}
		if err != nil {
			resp["persist_warning"] = err.Error()
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		order, err := a.orders.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	case http.MethodPatch:
		var patch domain.OrderPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		order, err := a.orders.Update(r.Context(), id, patch)
		if err != nil && !errors.Is(err, store.ErrPersist) {
			status := http.StatusUnprocessableEntity
			switch {
			case errors.Is(err, store.ErrNotFound):
				status = http.StatusNotFound
			case errors.Is(err, store.ErrInvalidInput):
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}

		resp := map[string]any{"order": order}
		if err != nil {
			resp["persist_warning"] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		err := a.orders.Delete(r.Context(), id)
		resp := map[string]any{"deleted": true}
		if err != nil && !errors.Is(err, store.ErrPersist) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if err != nil {
			resp["persist_warning"] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.feed == nil {
		writeJSON(w, http.StatusOK, map[string]any{"activity": []domain.ActivityEntry{}})
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": a.feed.Recent(r.Context(), limit),
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(startedAt)))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
