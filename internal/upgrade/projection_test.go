package upgrade_test

import (
	"upgradewatch/internal/upgrade"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Project", func() {
	It("returns an empty projection for a missing snapshot", func() {
		projection := upgrade.Project(nil)

		Expect(projection.Groups).To(BeEmpty())
		Expect(projection.ActiveGroup).To(BeNil())
		Expect(projection.RunningItem).To(BeNil())
		Expect(projection.FailedItem).To(BeNil())
		Expect(projection.ManualItem).To(BeNil())
		Expect(projection.TaskDetail).To(BeNil())
	})

	It("returns an empty projection when there are no groups", func() {
		projection := upgrade.Project(&upgrade.Snapshot{RequestID: 1})

		Expect(projection.Groups).NotTo(BeNil())
		Expect(projection.Groups).To(BeEmpty())
		Expect(projection.ActiveGroup).To(BeNil())
	})

	Context("with a running upgrade", func() {
		var (
			snapshot   *upgrade.Snapshot
			projection upgrade.Projection
		)

		BeforeEach(func() {
			snapshot = snapshotFixture()
			projection = upgrade.Project(snapshot)
		})

		It("orders groups and items newest first", func() {
			Expect(projection.Groups).To(HaveLen(3))
			Expect(projection.Groups[0].GroupID).To(Equal(int64(3)))
			Expect(projection.Groups[2].GroupID).To(Equal(int64(1)))
			Expect(projection.Groups[1].Items[0].StageID).To(Equal(int64(11)))
			Expect(projection.Groups[1].Items[1].StageID).To(Equal(int64(10)))
		})

		It("leaves the snapshot in its original order", func() {
			Expect(snapshot.Groups[0].GroupID).To(Equal(int64(1)))
			Expect(snapshot.Groups[1].Items[0].StageID).To(Equal(int64(10)))
		})

		It("finds the active group and running item", func() {
			Expect(projection.ActiveGroup).NotTo(BeNil())
			Expect(projection.ActiveGroup.GroupID).To(Equal(int64(2)))
			Expect(projection.RunningItem).NotTo(BeNil())
			Expect(projection.RunningItem.StageID).To(Equal(int64(11)))
			Expect(projection.FailedItem).To(BeNil())
			Expect(projection.ManualItem).To(BeNil())
		})

		It("shows the in progress task of the running item", func() {
			Expect(projection.TaskDetail).NotTo(BeNil())
			Expect(projection.TaskDetail.ID).To(Equal(int64(101)))
		})
	})

	It("picks the newest active group when several are active", func() {
		snapshot := &upgrade.Snapshot{
			Groups: []upgrade.Group{
				{GroupID: 1, Status: upgrade.StatusInProgress},
				{GroupID: 2, Status: upgrade.StatusHolding},
			},
		}

		Expect(upgrade.Project(snapshot).ActiveGroup.GroupID).To(Equal(int64(2)))
	})

	It("has no active group once everything completed", func() {
		snapshot := &upgrade.Snapshot{
			Groups: []upgrade.Group{
				{GroupID: 1, Status: upgrade.StatusCompleted},
				{GroupID: 2, Status: upgrade.StatusAborted},
			},
		}

		projection := upgrade.Project(snapshot)

		Expect(projection.ActiveGroup).To(BeNil())
		Expect(projection.RunningItem).To(BeNil())
		Expect(projection.TaskDetail).To(BeNil())
	})

	It("ignores unknown statuses", func() {
		snapshot := &upgrade.Snapshot{
			Groups: []upgrade.Group{
				{GroupID: 1, Status: upgrade.Status("SKIPPED_FAILED")},
			},
		}

		Expect(upgrade.Project(snapshot).ActiveGroup).To(BeNil())
	})

	It("shows the failed task of a failed item", func() {
		projection := upgrade.Project(failedSnapshotFixture(upgrade.StatusHoldingFailed))

		Expect(projection.RunningItem).To(BeNil())
		Expect(projection.FailedItem).NotTo(BeNil())
		Expect(projection.FailedItem.StageID).To(Equal(int64(5)))
		Expect(projection.TaskDetail).NotTo(BeNil())
		Expect(projection.TaskDetail.Stderr).To(Equal("boom"))
	})

	It("finds the manual item of a holding group", func() {
		projection := upgrade.Project(manualSnapshotFixture())

		Expect(projection.ManualItem).NotTo(BeNil())
		Expect(projection.ManualItem.Context).To(Equal("Back up the Hive Metastore"))
		Expect(projection.FailedItem).To(BeNil())
	})

	It("accepts nil inputs in every selector", func() {
		Expect(upgrade.ActiveGroup(nil)).To(BeNil())
		Expect(upgrade.RunningItem(nil)).To(BeNil())
		Expect(upgrade.FailedItem(nil)).To(BeNil())
		Expect(upgrade.ManualItem(nil)).To(BeNil())
		Expect(upgrade.TaskDetail(nil, nil)).To(BeNil())
	})
})
