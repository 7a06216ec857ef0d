package api_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/julianopk/payment-broker/internal/api"
	"github.com/julianopk/payment-broker/internal/dispatch"
	"github.com/julianopk/payment-broker/internal/health"
	"github.com/julianopk/payment-broker/internal/queue"
	"github.com/julianopk/payment-broker/internal/store"
	"github.com/julianopk/payment-broker/internal/summary"
	"github.com/julianopk/payment-broker/internal/upstream"
)

var _ = Describe("Handler", func() {
	var (
		log         *slog.Logger
		st          *store.Store
		pool        *store.Pool
		writer      *queue.Writer
		routes      http.Handler
		tempDir     string
		defaultSrv  *httptest.Server
		fallbackSrv *httptest.Server
	)

	newClient := func(name upstream.Name, rawURL string) *upstream.Client {
		u, err := url.Parse(rawURL)
		Expect(err).NotTo(HaveOccurred())
		return upstream.NewClient(name, u, "123", 2*time.Second, log)
	}

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))

		var err error
		tempDir, err = os.MkdirTemp("", "api-test-*")
		Expect(err).NotTo(HaveOccurred())

		st, err = store.Open(filepath.Join(tempDir, "payments.db"), log)
		Expect(err).NotTo(HaveOccurred())

		pool = store.NewPool(st.DB(), 2, 8, log)
		writer = queue.NewWriter(st, pool, log, nil)
		writer.Start()

		defaultSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/payments":
				w.Write([]byte(`{"message":"payment processed successfully"}`))
			case "/admin/payments-summary":
				w.Write([]byte(`{"totalRequests":7,"totalAmount":70.5}`))
			}
		}))
		fallbackSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/payments":
				w.Write([]byte(`{"message":"payment processed successfully"}`))
			case "/admin/payments-summary":
				w.Write([]byte(`{"totalRequests":0,"totalAmount":0}`))
			}
		}))

		registry := health.NewRegistry()
		defaultC := newClient(upstream.Default, defaultSrv.URL)
		fallbackC := newClient(upstream.Fallback, fallbackSrv.URL)

		dispatcher := dispatch.NewDispatcher(registry, defaultC, fallbackC, writer, log, nil)
		aggregator := summary.NewAggregator(st, pool, defaultC, fallbackC, log)

		routes = api.NewHandler(dispatcher, aggregator, st, pool, log).Routes()
	})

	AfterEach(func() {
		defaultSrv.Close()
		fallbackSrv.Close()
		writer.Stop()
		pool.Shutdown()
		st.Close()
		os.RemoveAll(tempDir)
	})

	Describe("routing surface", func() {
		It("should answer 404 on unknown paths", func() {
			rec := do(http.MethodGet, "/nope", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should answer 405 on a method mismatch", func() {
			rec := do(http.MethodGet, "/payments", "")
			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))

			rec = do(http.MethodDelete, "/payments-summary?from=a&to=b", "")
			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("POST /payments", func() {
		It("should accept a payment and relay the upstream message", func() {
			rec := do(http.MethodPost, "/payments",
				`{"correlationId":"4a7901b8-7d26-4d9d-aa19-4dc1c7cf60b3","amount":19.90}`)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).To(ContainSubstring("payment processed successfully"))
		})

		It("should set exact response framing headers", func() {
			rec := do(http.MethodPost, "/payments",
				`{"correlationId":"4a7901b8-7d26-4d9d-aa19-4dc1c7cf60b3","amount":1}`)

			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Header().Get("Connection")).To(Equal("close"))
			Expect(rec.Header().Get("Content-Length")).To(Equal(strconv.Itoa(rec.Body.Len())))
		})

		It("should reject a malformed body", func() {
			rec := do(http.MethodPost, "/payments", `{"correlationId":`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"Invalid JSON body"}`))
		})

		It("should surface validation failures from the dispatcher", func() {
			rec := do(http.MethodPost, "/payments", `{"amount":10}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"Invalid params. Missing 'correlationId'"}`))
		})
	})

	Describe("GET /payments-summary", func() {
		It("should require from", func() {
			rec := do(http.MethodGet, "/payments-summary?to=2025-07-30T23:59:59.000Z", "")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"Invalid params. Missing 'from'"}`))
		})

		It("should require to", func() {
			rec := do(http.MethodGet, "/payments-summary?from=2025-07-30T00:00:00.000Z", "")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"Invalid params. Missing 'to'"}`))
		})

		It("should return both processors' totals", func() {
			rec := do(http.MethodGet,
				"/payments-summary?from=2025-07-30T00:00:00.000Z&to=2025-07-30T23:59:59.000Z", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"default":  {"totalRequests": 7, "totalAmount": 70.50},
				"fallback": {"totalRequests": 0, "totalAmount": 0.00}
			}`))
		})
	})

	Describe("POST /purge-payments", func() {
		It("should wipe the ledger and confirm", func() {
			post := do(http.MethodPost, "/payments",
				`{"correlationId":"4a7901b8-7d26-4d9d-aa19-4dc1c7cf60b3","amount":10}`)
			Expect(post.Code).To(Equal(http.StatusCreated))
			writer.Stop()

			rec := do(http.MethodPost, "/purge-payments", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"All payments purged","success":true}`))
		})
	})
})
