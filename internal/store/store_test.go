package store_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/store"
	"github.com/julianopk/payment-broker/internal/upstream"
)

var _ = Describe("Store", func() {
	var (
		log     *slog.Logger
		st      *store.Store
		pool    *store.Pool
		ctx     context.Context
		tempDir string
	)

	record := func(at string, viaDefault, processed bool, amount float64) payment.Record {
		return payment.Record{
			Payment: payment.Payment{
				CorrelationID: payment.NewCorrelationID(),
				Amount:        amount,
				RequestedAt:   at,
			},
			DefaultService: viaDefault,
			Processed:      processed,
		}
	}

	at := func(s string) time.Time {
		t, err := payment.ParseTimestamp(s)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	insert := func(rec payment.Record) {
		h, err := pool.Acquire(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Release(h)
		Expect(st.Insert(ctx, h, rec)).To(Succeed())
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		ctx = context.Background()

		var err error
		tempDir, err = os.MkdirTemp("", "store-test-*")
		Expect(err).NotTo(HaveOccurred())

		st, err = store.Open(filepath.Join(tempDir, "payments.db"), log)
		Expect(err).NotTo(HaveOccurred())

		pool = store.NewPool(st.DB(), 2, 4, log)
	})

	AfterEach(func() {
		pool.Shutdown()
		st.Close()
		os.RemoveAll(tempDir)
	})

	Describe("Open", func() {
		It("should survive being applied twice to the same file", func() {
			again, err := store.Open(filepath.Join(tempDir, "payments.db"), log)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Close()).To(Succeed())
		})
	})

	Describe("totals", func() {
		BeforeEach(func() {
			insert(record("2025-07-30T10:00:00.000Z", true, true, 10))
			insert(record("2025-07-30T11:00:00.000Z", true, true, 20))
			insert(record("2025-07-30T12:00:00.000Z", false, true, 5))
			// Rejected dispatches never surface in the processed views.
			insert(record("2025-07-30T11:30:00.000Z", true, false, 99))
		})

		It("should sum the default view over the range", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			total, err := st.TotalAmount(ctx, h, upstream.Default,
				at("2025-07-30T00:00:00.000Z"), at("2025-07-30T23:59:59.000Z"))
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(30.0))

			count, err := st.TotalCount(ctx, h, upstream.Default,
				at("2025-07-30T00:00:00.000Z"), at("2025-07-30T23:59:59.000Z"))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("should keep the fallback view separate", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			total, err := st.TotalAmount(ctx, h, upstream.Fallback,
				at("2025-07-30T00:00:00.000Z"), at("2025-07-30T23:59:59.000Z"))
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(5.0))
		})

		It("should treat range endpoints as inclusive", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			count, err := st.TotalCount(ctx, h, upstream.Default,
				at("2025-07-30T10:00:00.000Z"), at("2025-07-30T11:00:00.000Z"))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("should compare instants regardless of zone", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			// Same instants expressed three hours behind UTC.
			brt := time.FixedZone("BRT", -3*3600)
			count, err := st.TotalCount(ctx, h, upstream.Default,
				time.Date(2025, 7, 30, 7, 0, 0, 0, brt),
				time.Date(2025, 7, 30, 8, 0, 0, 0, brt))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("should return zero totals for an empty range", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			total, err := st.TotalAmount(ctx, h, upstream.Default,
				at("2030-01-01T00:00:00.000Z"), at("2030-01-02T00:00:00.000Z"))
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})
	})

	Describe("PurgeAll", func() {
		It("should wipe payments and keep the health mirror", func() {
			insert(record("2025-07-30T10:00:00.000Z", true, true, 10))

			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			Expect(st.SaveServiceHealth(ctx, h, upstream.Default, store.HealthRow{
				MinResponseTime: 33,
				LastCheck:       time.Now().UTC(),
			})).To(Succeed())

			Expect(st.PurgeAll(ctx, h)).To(Succeed())

			count, err := st.TotalCount(ctx, h, upstream.Default,
				at("2025-01-01T00:00:00.000Z"), at("2030-01-01T00:00:00.000Z"))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			rows, err := st.LoadServiceHealth(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[upstream.Default].MinResponseTime).To(Equal(33))
		})

		It("should be idempotent", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			Expect(st.PurgeAll(ctx, h)).To(Succeed())
			Expect(st.PurgeAll(ctx, h)).To(Succeed())
		})
	})

	Describe("service health mirror", func() {
		It("should start with seeded zero rows for both processors", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			rows, err := st.LoadServiceHealth(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveKey(upstream.Default))
			Expect(rows).To(HaveKey(upstream.Fallback))
			Expect(rows[upstream.Default].Failing).To(BeFalse())
		})

		It("should round-trip a saved row", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			at := time.Date(2025, 7, 30, 12, 0, 0, 0, time.UTC)
			Expect(st.SaveServiceHealth(ctx, h, upstream.Fallback, store.HealthRow{
				Failing:         true,
				MinResponseTime: 250,
				LastCheck:       at,
			})).To(Succeed())

			rows, err := st.LoadServiceHealth(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[upstream.Fallback].Failing).To(BeTrue())
			Expect(rows[upstream.Fallback].MinResponseTime).To(Equal(250))
			Expect(rows[upstream.Fallback].LastCheck.Equal(at)).To(BeTrue())
		})

		It("should overwrite on repeated saves", func() {
			h, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Release(h)

			Expect(st.SaveServiceHealth(ctx, h, upstream.Default, store.HealthRow{MinResponseTime: 1, LastCheck: time.Now().UTC()})).To(Succeed())
			Expect(st.SaveServiceHealth(ctx, h, upstream.Default, store.HealthRow{MinResponseTime: 2, LastCheck: time.Now().UTC()})).To(Succeed())

			rows, err := st.LoadServiceHealth(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[upstream.Default].MinResponseTime).To(Equal(2))
		})
	})
})
