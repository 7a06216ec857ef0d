// Loadtest drives a running payment broker with concurrent POST /payments
// traffic and then cross-checks GET /payments-summary against the number of
// accepted requests.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:9999 -concurrency 20 -requests 2000
//	go run ./scripts/loadtest -url http://localhost:9999 -requests 5000 -out summary.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type paymentBody struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

type summaryTotals struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type summaryBody struct {
	Default  summaryTotals `json:"default"`
	Fallback summaryTotals `json:"fallback"`
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9999", "Broker base URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of payments to send")
		amount      = flag.Float64("amount", 19.90, "Amount sent on every payment")
		timeoutSec  = flag.Int("timeout", 10, "Per-request timeout in seconds")
		settleMS    = flag.Int("settle", 500, "Milliseconds to wait before reading the summary")
	)
	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	verbose := flag.Bool("v", false, "Verbose per-request logging to stdout")
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var total, accepted, rejected, failed int32

	statusCodes := make(map[int]int32)
	var statusMu sync.Mutex

	var latencies []time.Duration
	var latMu sync.Mutex

	from := time.Now().UTC().Add(-time.Minute).Format("2006-01-02T15:04:05.000Z")
	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)

				body, _ := json.Marshal(paymentBody{
					CorrelationID: uuid.NewString(),
					Amount:        *amount,
				})

				start := time.Now()
				resp, err := client.Post(*baseURL+"/payments", "application/json", bytes.NewReader(body))
				dur := time.Since(start)

				latMu.Lock()
				latencies = append(latencies, dur)
				latMu.Unlock()

				if err != nil {
					atomic.AddInt32(&failed, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}

				statusMu.Lock()
				statusCodes[resp.StatusCode]++
				statusMu.Unlock()

				switch {
				case resp.StatusCode == http.StatusCreated:
					atomic.AddInt32(&accepted, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt32(&rejected, 1)
				default:
					atomic.AddInt32(&failed, 1)
				}

				if *verbose {
					fmt.Printf("[%d] idx=%d status=%d dur=%v\n", workerID, idx, resp.StatusCode, dur)
				}

				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	testEnd := time.Now()

	totalDuration := testEnd.Sub(testStart)
	throughput := float64(total) / totalDuration.Seconds()

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", *baseURL)
	fmt.Printf("Requests: %d  Concurrency: %d\n", *requests, *concurrency)
	fmt.Printf("Total sent: %d  Accepted: %d  Rejected: %d  Failed: %d\n", total, accepted, rejected, failed)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, throughput)

	fmt.Println("\nStatus codes:")
	statusMu.Lock()
	var scKeys []int
	for k := range statusCodes {
		scKeys = append(scKeys, k)
	}
	sort.Ints(scKeys)
	for _, k := range scKeys {
		fmt.Printf("  %d -> %d\n", k, statusCodes[k])
	}
	statusMu.Unlock()

	var p50, p90, p95, p99 time.Duration
	if len(latencies) > 0 {
		tmp := make([]time.Duration, len(latencies))
		copy(tmp, latencies)
		sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
		pick := func(pct float64) time.Duration {
			return tmp[int(float64(len(tmp)-1)*pct)]
		}
		p50, p90, p95, p99 = pick(0.50), pick(0.90), pick(0.95), pick(0.99)

		var sum time.Duration
		for _, d := range tmp {
			sum += d
		}
		fmt.Println("\nLatencies:")
		fmt.Printf("  samples=%d min=%v avg=%v max=%v p50=%v p90=%v p95=%v p99=%v\n",
			len(tmp), tmp[0], sum/time.Duration(len(tmp)), tmp[len(tmp)-1], p50, p90, p95, p99)
	}

	// Let the asynchronous writer drain before reading the ledger back.
	time.Sleep(time.Duration(*settleMS) * time.Millisecond)

	to := time.Now().UTC().Add(time.Minute).Format("2006-01-02T15:04:05.000Z")
	summary, err := fetchSummary(client, *baseURL, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read payments-summary: %v\n", err)
		os.Exit(1)
	}

	recorded := summary.Default.TotalRequests + summary.Fallback.TotalRequests
	fmt.Println("\nSummary cross-check:")
	fmt.Printf("  default:  totalRequests=%d totalAmount=%.2f\n", summary.Default.TotalRequests, summary.Default.TotalAmount)
	fmt.Printf("  fallback: totalRequests=%d totalAmount=%.2f\n", summary.Fallback.TotalRequests, summary.Fallback.TotalAmount)
	fmt.Printf("  accepted=%d recorded=%d\n", accepted, recorded)
	if int32(recorded) != accepted {
		fmt.Println("  MISMATCH: accepted payments and recorded totals disagree")
	}

	if *outJSON != "" {
		report := map[string]interface{}{
			"target":         *baseURL,
			"requests":       *requests,
			"concurrency":    *concurrency,
			"total_sent":     total,
			"accepted":       accepted,
			"rejected":       rejected,
			"failed":         failed,
			"duration_ms":    totalDuration.Milliseconds(),
			"throughput_rps": throughput,
			"p50_ms":         float64(p50.Microseconds()) / 1000.0,
			"p90_ms":         float64(p90.Microseconds()) / 1000.0,
			"p95_ms":         float64(p95.Microseconds()) / 1000.0,
			"p99_ms":         float64(p99.Microseconds()) / 1000.0,
			"summary":        summary,
		}

		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if failed > 0 || int32(recorded) != accepted {
		os.Exit(2)
	}
}

func fetchSummary(client *http.Client, baseURL, from, to string) (*summaryBody, error) {
	resp, err := client.Get(fmt.Sprintf("%s/payments-summary?from=%s&to=%s", baseURL, from, to))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var summary summaryBody
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
