package upstream_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/upstream"
)

var _ = Describe("Client", func() {
	var (
		log *slog.Logger
		ctx context.Context
	)

	newClient := func(rawURL string) *upstream.Client {
		u, err := url.Parse(rawURL)
		Expect(err).NotTo(HaveOccurred())
		return upstream.NewClient(upstream.Default, u, "123", 2*time.Second, log)
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		ctx = context.Background()
	})

	Describe("SubmitPayment", func() {
		It("should POST the payment as JSON", func() {
			var got payment.Payment
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/payments"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
				w.Write([]byte(`{"message":"payment processed successfully"}`))
			}))
			defer srv.Close()

			p := payment.New(49.90)
			result, err := newClient(srv.URL).SubmitPayment(ctx, p)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Processed()).To(BeTrue())
			Expect(result.Message).To(Equal("payment processed successfully"))
			Expect(got.CorrelationID).To(Equal(p.CorrelationID))
			Expect(got.Amount).To(Equal(49.90))
		})

		It("should report a rejection without treating it as an error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message":"payment rejected"}`))
			}))
			defer srv.Close()

			result, err := newClient(srv.URL).SubmitPayment(ctx, payment.New(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Processed()).To(BeFalse())
			Expect(result.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(result.Message).To(Equal("payment rejected"))
		})

		It("should surface transport failures as errors", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			_, err := newClient(srv.URL).SubmitPayment(ctx, payment.New(1))
			Expect(err).To(HaveOccurred())
		})

		It("should fall back to the raw body when there is no message field", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`upstream exploded`))
			}))
			defer srv.Close()

			result, err := newClient(srv.URL).SubmitPayment(ctx, payment.New(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("upstream exploded"))
		})
	})

	Describe("ServiceHealth", func() {
		It("should decode a boolean failing flag", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/payments/service-health"))
				w.Write([]byte(`{"failing":false,"minResponseTime":120}`))
			}))
			defer srv.Close()

			report, err := newClient(srv.URL).ServiceHealth(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(bool(report.Failing)).To(BeFalse())
			Expect(report.MinResponseTime).To(Equal(120))
		})

		It("should decode a numeric failing flag", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"failing":1,"minResponseTime":10}`))
			}))
			defer srv.Close()

			report, err := newClient(srv.URL).ServiceHealth(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(bool(report.Failing)).To(BeTrue())
		})

		It("should treat a non-200 answer as an error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).ServiceHealth(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AdminSummary", func() {
		It("should forward the range and the admin token", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/admin/payments-summary"))
				Expect(r.Header.Get("X-Rinha-Token")).To(Equal("123"))
				Expect(r.URL.Query().Get("from")).To(Equal("2025-07-30T00:00:00.000Z"))
				Expect(r.URL.Query().Get("to")).To(Equal("2025-07-30T23:59:59.000Z"))
				w.Write([]byte(`{"totalRequests":7,"totalAmount":123.45}`))
			}))
			defer srv.Close()

			totals, err := newClient(srv.URL).AdminSummary(ctx,
				"2025-07-30T00:00:00.000Z", "2025-07-30T23:59:59.000Z")
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.TotalRequests).To(Equal(7))
			Expect(totals.TotalAmount).To(Equal(123.45))
		})

		It("should treat an unauthorized answer as an error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).AdminSummary(ctx, "a", "b")
			Expect(err).To(HaveOccurred())
		})
	})
})
