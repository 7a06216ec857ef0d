package router_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/julianopk/payment-broker/internal/health"
	"github.com/julianopk/payment-broker/internal/router"
)

var _ = Describe("Choose", func() {
	snap := func(dFailing bool, dMin int, fFailing bool, fMin int) health.Snapshot {
		return health.Snapshot{
			Default:  health.Status{Failing: dFailing, MinResponseTime: dMin},
			Fallback: health.Status{Failing: fFailing, MinResponseTime: fMin},
		}
	}

	It("should pick default when both are healthy and equally fast", func() {
		Expect(router.Choose(snap(false, 100, false, 100))).To(Equal(router.Default))
	})

	It("should pick default when it is faster", func() {
		Expect(router.Choose(snap(false, 50, false, 100))).To(Equal(router.Default))
	})

	It("should pick fallback when it is strictly faster", func() {
		Expect(router.Choose(snap(false, 200, false, 100))).To(Equal(router.Fallback))
	})

	It("should pick default when fallback is failing, however slow", func() {
		Expect(router.Choose(snap(false, 9000, true, 1))).To(Equal(router.Default))
	})

	It("should pick fallback when default is failing", func() {
		Expect(router.Choose(snap(true, 1, false, 9000))).To(Equal(router.Fallback))
	})

	It("should pick none when both are failing", func() {
		Expect(router.Choose(snap(true, 0, true, 0))).To(Equal(router.None))
	})

	It("should be deterministic for a given snapshot", func() {
		s := snap(false, 120, false, 80)
		first := router.Choose(s)
		for i := 0; i < 100; i++ {
			Expect(router.Choose(s)).To(Equal(first))
		}
	})

	It("should prefer default on the zero snapshot", func() {
		Expect(router.Choose(health.Snapshot{})).To(Equal(router.Default))
	})
})

var _ = Describe("Decision", func() {
	It("should render upstream names", func() {
		Expect(router.Default.String()).To(Equal("default"))
		Expect(router.Fallback.String()).To(Equal("fallback"))
		Expect(router.None.String()).To(Equal("none"))
	})
})
