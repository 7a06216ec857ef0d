package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/julianopk/payment-broker/internal/dispatch"
	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/store"
	"github.com/julianopk/payment-broker/internal/summary"
)

// Handler is the public HTTP surface of the broker. Unknown paths are a plain
// 404; a known path with the wrong method is a 405.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	aggregator *summary.Aggregator
	store      *store.Store
	pool       *store.Pool
	logger     *slog.Logger
}

func NewHandler(
	dispatcher *dispatch.Dispatcher,
	aggregator *summary.Aggregator,
	st *store.Store,
	pool *store.Pool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		aggregator: aggregator,
		store:      st,
		pool:       pool,
		logger:     logger,
	}
}

// Routes builds the public mux with request logging applied to every route.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments", h.handlePayment)
	mux.HandleFunc("GET /payments-summary", h.handleSummary)
	mux.HandleFunc("POST /purge-payments", h.handlePurge)
	return h.logRequests(mux)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req payment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Rejecting malformed payment body", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, []byte(`{"message":"Invalid JSON body"}`))
		return
	}

	outcome := h.dispatcher.Dispatch(r.Context(), req)
	writeJSON(w, outcome.Status, outcome.Body)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to := query.Get("from"), query.Get("to")

	if from == "" {
		writeJSON(w, http.StatusBadRequest, []byte(`{"message":"Invalid params. Missing 'from'"}`))
		return
	}
	if to == "" {
		writeJSON(w, http.StatusBadRequest, []byte(`{"message":"Invalid params. Missing 'to'"}`))
		return
	}

	summ := h.aggregator.Aggregate(r.Context(), from, to)

	body, err := json.Marshal(summ)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, []byte(`{"message":"Erro interno do servidor"}`))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

type purgeResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// handlePurge wipes the local ledger. It answers 200 either way; the body
// says whether the wipe worked.
func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	resp := purgeResponse{Message: "All payments purged", Success: true}

	hdl, err := h.pool.Acquire(r.Context())
	if err != nil {
		resp = purgeResponse{Message: err.Error(), Success: false}
	} else {
		if err := h.store.PurgeAll(r.Context(), hdl); err != nil {
			resp = purgeResponse{Message: err.Error(), Success: false}
		}
		h.pool.Release(hdl)
	}

	if !resp.Success {
		h.logger.Error("Purge failed", slog.String("reason", resp.Message))
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, []byte(`{"message":"Erro interno do servidor"}`))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// writeJSON sends body in one shot with an exact Content-Length. Connection
// close keeps the socket accounting simple for load-test clients that do not
// reuse connections anyway.
func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	w.Write(body)
}
