package upgrade_test

import (
	"upgradewatch/internal/upgrade"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Status vocabulary", func() {
	DescribeTable("classification",
		func(status upgrade.Status, failed, active bool) {
			Expect(status.IsKnown()).To(BeTrue())
			Expect(status.IsFailed()).To(Equal(failed))
			Expect(status.IsActive()).To(Equal(active))
		},
		Entry("PENDING", upgrade.StatusPending, false, false),
		Entry("QUEUED", upgrade.StatusQueued, false, false),
		Entry("IN_PROGRESS", upgrade.StatusInProgress, false, true),
		Entry("HOLDING", upgrade.StatusHolding, false, true),
		Entry("HOLDING_FAILED", upgrade.StatusHoldingFailed, true, true),
		Entry("HOLDING_TIMED_OUT", upgrade.StatusHoldingTimedOut, true, true),
		Entry("FAILED", upgrade.StatusFailed, true, true),
		Entry("TIMED_OUT", upgrade.StatusTimedOut, true, true),
		Entry("ABORTED", upgrade.StatusAborted, false, false),
		Entry("COMPLETED", upgrade.StatusCompleted, false, false),
	)

	It("treats statuses outside the vocabulary as no match", func() {
		for _, raw := range []string{"", "SKIPPED_FAILED", "failed", "IN PROGRESS"} {
			status := upgrade.Status(raw)
			Expect(status.IsKnown()).To(BeFalse(), raw)
			Expect(status.IsFailed()).To(BeFalse(), raw)
			Expect(status.IsActive()).To(BeFalse(), raw)
		}
	})

	It("keeps the failed set inside the active set", func() {
		Expect(upgrade.ActiveStatuses()).To(ContainElements(upgrade.FailedStatuses()))
		Expect(upgrade.ActiveStatuses()).To(HaveLen(6))
	})

	It("treats only COMPLETED and ABORTED as terminal", func() {
		Expect(upgrade.StatusCompleted.IsTerminal()).To(BeTrue())
		Expect(upgrade.StatusAborted.IsTerminal()).To(BeTrue())
		Expect(upgrade.StatusFailed.IsTerminal()).To(BeFalse())
		Expect(upgrade.StatusHolding.IsTerminal()).To(BeFalse())
		Expect(upgrade.Status("DONE").IsTerminal()).To(BeFalse())
	})

	It("recognises every holding variant", func() {
		Expect(upgrade.StatusHolding.IsHolding()).To(BeTrue())
		Expect(upgrade.StatusHoldingFailed.IsHolding()).To(BeTrue())
		Expect(upgrade.StatusHoldingTimedOut.IsHolding()).To(BeTrue())
		Expect(upgrade.StatusFailed.IsHolding()).To(BeFalse())
	})
})
