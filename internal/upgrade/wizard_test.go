package upgrade_test

import (
	"math"

	"upgradewatch/internal/upgrade"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Wizard view model", func() {
	Describe("CompareVersions", func() {
		DescribeTable("ordering",
			func(first, second string, expected int) {
				Expect(upgrade.CompareVersions(first, second)).To(Equal(expected))
			},
			Entry("newer minor", "2.3.0", "2.2.1", 1),
			Entry("older minor", "2.2.1", "2.3.0", -1),
			Entry("equal", "2.2.0.0", "2.2.0.0", 0),
			Entry("build suffix ignored", "2.2.0.0-2041", "2.2.0.0-1999", 0),
			Entry("fourth segment", "2.2.0.1", "2.2.0.0", 1),
			Entry("shorter version compares shared segments", "2.2", "2.2.1", 0),
			Entry("empty", "", "2.2.1", 0),
			Entry("garbage", "not-a-version", "2.2.1", 0),
		)
	})

	Describe("IsDowngradeAvailable", func() {
		It("is true while upgrading to a newer version", func() {
			Expect(upgrade.IsDowngradeAvailable("2.3.0", "2.2.1")).To(BeTrue())
		})

		It("is false once the versions invert", func() {
			Expect(upgrade.IsDowngradeAvailable("2.2.1", "2.3.0")).To(BeFalse())
		})

		It("is false for equal versions", func() {
			Expect(upgrade.IsDowngradeAvailable("2.3.0", "2.3.0")).To(BeFalse())
		})
	})

	DescribeTable("OverallProgress",
		func(percent float64, expected int) {
			Expect(upgrade.OverallProgress(percent)).To(Equal(expected))
		},
		Entry("floors fractions", 56.7, 56),
		Entry("keeps integers", 42.0, 42),
		Entry("zero", 0.0, 0),
		Entry("negative", -3.0, 0),
		Entry("over one hundred", 120.0, 100),
		Entry("just under one hundred", 99.99, 99),
		Entry("NaN", math.NaN(), 0),
	)

	DescribeTable("UpgradeStatusLabel",
		func(status upgrade.Status, label string) {
			Expect(upgrade.UpgradeStatusLabel(status)).To(Equal(label))
		},
		Entry("queued", upgrade.StatusQueued, "Upgrading..."),
		Entry("pending", upgrade.StatusPending, "Upgrading..."),
		Entry("in progress", upgrade.StatusInProgress, "Upgrading..."),
		Entry("completed", upgrade.StatusCompleted, "Upgrade Finished"),
		Entry("aborted", upgrade.StatusAborted, "Upgrade Paused"),
		Entry("timed out", upgrade.StatusTimedOut, "Upgrade Paused"),
		Entry("failed", upgrade.StatusFailed, "Upgrade Paused"),
		Entry("holding failed", upgrade.StatusHoldingFailed, "Upgrade Paused"),
		Entry("holding timed out", upgrade.StatusHoldingTimedOut, "Upgrade Paused"),
		Entry("holding", upgrade.StatusHolding, "Upgrade Paused"),
		Entry("unknown", upgrade.Status("SOMETHING_ELSE"), ""),
		Entry("empty", upgrade.Status(""), ""),
	)

	Describe("failure flags", func() {
		It("are false without a failed item", func() {
			Expect(upgrade.IsHoldingState(nil)).To(BeFalse())
			Expect(upgrade.IsSkippable(nil)).To(BeFalse())
		})

		It("reports a held failure", func() {
			item := &upgrade.Item{Status: upgrade.StatusHoldingTimedOut, Skippable: true}

			Expect(upgrade.IsHoldingState(item)).To(BeTrue())
			Expect(upgrade.IsSkippable(item)).To(BeTrue())
		})

		It("does not treat a plain failure as holding", func() {
			item := &upgrade.Item{Status: upgrade.StatusFailed}

			Expect(upgrade.IsHoldingState(item)).To(BeFalse())
			Expect(upgrade.IsSkippable(item)).To(BeFalse())
		})
	})

	Describe("NewState", func() {
		It("renders a running upgrade", func() {
			versions := upgrade.Versions{Current: "2.2.1.0-2270", Upgrade: "2.3.0.0-2557"}
			state := upgrade.NewState(snapshotFixture(), versions, false)

			Expect(state.ClusterName).To(Equal("c1"))
			Expect(state.RequestID).To(Equal(int64(7)))
			Expect(state.OverallProgress).To(Equal(56))
			Expect(state.IsDowngradeAvailable).To(BeTrue())
			Expect(state.StatusBucket).To(Equal(upgrade.BucketInProgress))
			Expect(state.StatusLabel).To(Equal("Upgrading..."))
			Expect(state.RunningItem.StageID).To(Equal(int64(11)))
			Expect(state.IsHoldingState).To(BeFalse())
			Expect(state.IsManualProceedDisabled).To(BeTrue())
		})

		It("renders a held failure", func() {
			state := upgrade.NewState(failedSnapshotFixture(upgrade.StatusHoldingFailed), upgrade.Versions{}, false)

			Expect(state.StatusLabel).To(Equal("Upgrade Paused"))
			Expect(state.IsHoldingState).To(BeTrue())
			Expect(state.IsSkippable).To(BeTrue())
			Expect(state.TaskDetail.ID).To(Equal(int64(2)))
		})

		It("renders nothing before the first snapshot", func() {
			state := upgrade.NewState(nil, upgrade.Versions{}, false)

			Expect(state.Groups).To(BeEmpty())
			Expect(state.OverallProgress).To(Equal(0))
			Expect(state.StatusLabel).To(BeEmpty())
			Expect(state.IsDowngradeAvailable).To(BeFalse())
		})

		It("enables the manual proceed button once confirmed", func() {
			state := upgrade.NewState(manualSnapshotFixture(), upgrade.Versions{}, true)

			Expect(state.IsManualDone).To(BeTrue())
			Expect(state.IsManualProceedDisabled).To(BeFalse())
		})
	})

	Describe("TargetStatus", func() {
		DescribeTable("continue",
			func(current, expected upgrade.Status) {
				target, err := upgrade.TargetStatus(upgrade.ActionContinue, current)
				Expect(err).NotTo(HaveOccurred())
				Expect(target).To(Equal(expected))
			},
			Entry("held failure", upgrade.StatusHoldingFailed, upgrade.StatusFailed),
			Entry("held timeout", upgrade.StatusHoldingTimedOut, upgrade.StatusTimedOut),
		)

		It("refuses continue from any other status", func() {
			for _, status := range []upgrade.Status{
				upgrade.StatusHolding, upgrade.StatusFailed, upgrade.StatusInProgress, upgrade.StatusCompleted,
			} {
				_, err := upgrade.TargetStatus(upgrade.ActionContinue, status)
				Expect(err).To(MatchError(upgrade.ErrContinueNotAllowed), string(status))
			}
		})

		It("maps retry, complete and cancel regardless of the current status", func() {
			for _, status := range []upgrade.Status{upgrade.StatusHoldingFailed, upgrade.StatusCompleted, ""} {
				target, err := upgrade.TargetStatus(upgrade.ActionRetry, status)
				Expect(err).NotTo(HaveOccurred())
				Expect(target).To(Equal(upgrade.StatusPending))

				target, err = upgrade.TargetStatus(upgrade.ActionComplete, status)
				Expect(err).NotTo(HaveOccurred())
				Expect(target).To(Equal(upgrade.StatusCompleted))

				target, err = upgrade.TargetStatus(upgrade.ActionCancel, status)
				Expect(err).NotTo(HaveOccurred())
				Expect(target).To(Equal(upgrade.StatusFailed))
			}
		})

		It("rejects unknown actions", func() {
			_, err := upgrade.TargetStatus(upgrade.Action("skip"), upgrade.StatusFailed)
			Expect(err).To(MatchError(upgrade.ErrUnknownAction))

			_, err = upgrade.ParseAction("skip")
			Expect(err).To(MatchError(upgrade.ErrUnknownAction))

			action, err := upgrade.ParseAction("retry")
			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(upgrade.ActionRetry))
		})
	})
})
