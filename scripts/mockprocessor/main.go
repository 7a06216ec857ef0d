// Mockprocessor is a stand-in payment processor used for broker testing.
// It provides /payments, /payments/service-health and /admin/payments-summary
// endpoints.
//
// Usage:
//
//	go run ./scripts/mockprocessor -port 8081 -min-response-time 0
//
// The -failing flag makes the health endpoint report a failing processor, and
// -reject makes every payment come back with a 422.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
)

type paymentBody struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

type tally struct {
	mu       sync.Mutex
	requests int
	amount   float64
}

func (t *tally) add(amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
	t.amount += amount
}

func (t *tally) totals() (int, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests, t.amount
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failing := flag.Bool("failing", false, "report failing health")
	reject := flag.Bool("reject", false, "reject every payment with 422")
	minResponseTime := flag.Int("min-response-time", 0, "advertised minResponseTime in ms")
	token := flag.String("token", "123", "expected admin token")
	flag.Parse()

	processed := &tally{}

	mux := http.NewServeMux()
	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		log.Printf("request: method=%s path=%s from=%s body=%s", r.Method, r.URL.Path, r.RemoteAddr, string(body))

		var p paymentBody
		if err := json.Unmarshal(body, &p); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if *reject {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"payment rejected"}`))
			return
		}

		processed.add(p.Amount)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"payment processed successfully"}`))
	})

	mux.HandleFunc("/payments/service-health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"failing": *failing, "minResponseTime": *minResponseTime}
		b, _ := json.Marshal(resp)
		w.Write(b)
	})

	mux.HandleFunc("/admin/payments-summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Rinha-Token") != *token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		requests, amount := processed.totals()
		resp := map[string]any{"totalRequests": requests, "totalAmount": amount}
		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting mock processor on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
