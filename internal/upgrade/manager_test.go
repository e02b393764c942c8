package upgrade_test

import (
	"context"

	"upgradewatch/internal/upgrade"
	pkgerrors "upgradewatch/pkg/errors"
	"upgradewatch/pkg/logger"
	"upgradewatch/pkg/testutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		backend  *fakeBackend
		listener *recordingListener
		manager  *upgrade.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = &fakeBackend{snapshot: snapshotFixture(), current: "2.2.1.0-2270"}
		listener = &recordingListener{}
		manager = upgrade.NewManager("c1", backend, logger.NewNoOpLogger())
		manager.Subscribe(listener)
		manager.OnTransition(listener)
	})

	Describe("LoadUpgradeData", func() {
		It("caches the snapshot and notifies listeners", func() {
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			Expect(manager.CurrentVersion()).To(Equal("2.2.1.0-2270"))
			Expect(manager.UpgradeVersion()).To(Equal("2.3.0.0-2557"))
			Expect(listener.States()).To(HaveLen(1))
			Expect(listener.States()[0].OverallProgress).To(Equal(56))
			Expect(listener.States()[0].IsDowngradeAvailable).To(BeTrue())
		})

		It("keeps the previous snapshot when the fetch fails", func() {
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			backend.SetFetchErr(errBackendDown)

			Expect(manager.LoadUpgradeData(ctx)).To(MatchError(errBackendDown))
			Expect(manager.Snapshot()).NotTo(BeNil())
			Expect(manager.Snapshot().RequestID).To(Equal(int64(7)))
			Expect(listener.States()).To(HaveLen(1))
		})

		It("keeps the previous current version when only the version lookup fails", func() {
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			backend.versionErr = errBackendDown

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
			Expect(manager.CurrentVersion()).To(Equal("2.2.1.0-2270"))
		})

		It("refuses to load without a cluster", func() {
			manager = upgrade.NewManager("", backend, logger.NewNoOpLogger())

			Expect(manager.LoadUpgradeData(ctx)).To(MatchError(pkgerrors.ErrEmptyCluster))
			Expect(backend.Fetches()).To(Equal(0))
		})

		It("logs once when the upgrade request finishes", func() {
			recorder := testutil.NewRecordingLogger()
			manager = upgrade.NewManager("c1", backend, recorder)

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
			Expect(recorder.Contains("info", "finished")).To(BeFalse())

			done := snapshotFixture()
			done.RequestStatus = upgrade.StatusCompleted
			backend.snapshot = done

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			finished := 0

			for _, entry := range recorder.Entries() {
				if entry.Message == "Upgrade request 7 on cluster c1 finished with COMPLETED" {
					finished++
				}
			}

			Expect(finished).To(Equal(1))
		})

		It("returns a copy of the snapshot", func() {
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			copied := manager.Snapshot()
			copied.Groups[0].Items[0].Status = upgrade.StatusFailed

			Expect(manager.Snapshot().Groups[0].Items[0].Status).To(Equal(upgrade.StatusCompleted))
		})
	})

	Describe("end to end", func() {
		It("projects a running item and its task", func() {
			backend.snapshot = &upgrade.Snapshot{
				RequestID:     3,
				RequestStatus: upgrade.StatusInProgress,
				Groups: []upgrade.Group{
					{
						GroupID: 1,
						Status:  upgrade.StatusInProgress,
						Items: []upgrade.Item{
							{RequestID: 3, GroupID: 1, StageID: 1, Status: upgrade.StatusCompleted},
							{
								RequestID: 3, GroupID: 1, StageID: 2, Status: upgrade.StatusInProgress,
								Tasks: []upgrade.Task{{ID: 9, StageID: 2, Status: upgrade.StatusInProgress}},
							},
						},
					},
				},
			}

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			state := manager.State()
			Expect(state.ActiveGroup.GroupID).To(Equal(int64(1)))
			Expect(state.RunningItem.StageID).To(Equal(int64(2)))
			Expect(state.TaskDetail.ID).To(Equal(int64(9)))
			Expect(state.FailedItem).To(BeNil())
		})

		It("projects a held skippable failure", func() {
			backend.snapshot = failedSnapshotFixture(upgrade.StatusHoldingFailed)

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			state := manager.State()
			Expect(state.IsHoldingState).To(BeTrue())
			Expect(state.IsSkippable).To(BeTrue())
			Expect(state.FailedItem.StageID).To(Equal(int64(5)))
		})
	})

	Describe("actions", func() {
		ref := upgrade.ItemRef{GroupID: 1, StageID: 5}

		BeforeEach(func() {
			backend.snapshot = failedSnapshotFixture(upgrade.StatusHoldingFailed)
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
		})

		It("continues a held failure as FAILED", func() {
			Expect(manager.Continue(ctx, ref)).To(Succeed())

			commands := backend.Commands()
			Expect(commands).To(HaveLen(1))
			Expect(commands[0].UpgradeID).To(Equal(int64(9)))
			Expect(commands[0].GroupID).To(Equal(int64(1)))
			Expect(commands[0].StageID).To(Equal(int64(5)))
			Expect(commands[0].Status).To(Equal(upgrade.StatusFailed))
			Expect(commands[0].ID).NotTo(BeEmpty())
		})

		It("continues a held timeout as TIMED_OUT", func() {
			backend.snapshot = failedSnapshotFixture(upgrade.StatusHoldingTimedOut)
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			Expect(manager.Continue(ctx, ref)).To(Succeed())
			Expect(backend.Commands()[0].Status).To(Equal(upgrade.StatusTimedOut))
		})

		It("refuses to continue an item that is not held", func() {
			backend.snapshot = failedSnapshotFixture(upgrade.StatusFailed)
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())

			Expect(manager.Continue(ctx, ref)).To(MatchError(upgrade.ErrContinueNotAllowed))
			Expect(backend.Commands()).To(BeEmpty())
		})

		It("retries an item as PENDING and updates the local copy", func() {
			Expect(manager.Retry(ctx, ref)).To(Succeed())

			Expect(backend.Commands()[0].Status).To(Equal(upgrade.StatusPending))
			Expect(manager.Snapshot().FindItem(ref).Status).To(Equal(upgrade.StatusPending))
		})

		It("cancels an item as FAILED", func() {
			Expect(manager.Cancel(ctx, ref)).To(Succeed())
			Expect(backend.Commands()[0].Status).To(Equal(upgrade.StatusFailed))
		})

		It("emits a transition event and a fresh state", func() {
			Expect(manager.Retry(ctx, ref)).To(Succeed())

			transitions := listener.Transitions()
			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Action).To(Equal(upgrade.ActionRetry))
			Expect(transitions[0].From).To(Equal(upgrade.StatusHoldingFailed))
			Expect(transitions[0].To).To(Equal(upgrade.StatusPending))
			Expect(transitions[0].ClusterName).To(Equal("c1"))
			Expect(transitions[0].ID).To(Equal(backend.Commands()[0].ID))

			Expect(listener.States()).To(HaveLen(2))
			Expect(listener.States()[1].FailedItem).To(BeNil())
		})

		It("leaves local state untouched when the command fails", func() {
			backend.setErr = errBackendDown

			Expect(manager.Retry(ctx, ref)).To(MatchError(errBackendDown))
			Expect(manager.Snapshot().FindItem(ref).Status).To(Equal(upgrade.StatusHoldingFailed))
			Expect(listener.Transitions()).To(BeEmpty())
		})

		It("reports unknown items", func() {
			err := manager.Retry(ctx, upgrade.ItemRef{GroupID: 1, StageID: 99})

			Expect(err).To(MatchError(upgrade.ErrItemNotFound))
			Expect(backend.Commands()).To(BeEmpty())
		})

		It("sends raw statuses unchanged", func() {
			Expect(manager.SetStatus(ctx, ref, upgrade.StatusAborted)).To(Succeed())
			Expect(backend.Commands()[0].Status).To(Equal(upgrade.StatusAborted))
		})
	})

	Describe("manual steps", func() {
		ref := upgrade.ItemRef{GroupID: 4, StageID: 30}

		BeforeEach(func() {
			backend.snapshot = manualSnapshotFixture()
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
		})

		It("requires confirmation before completing", func() {
			Expect(manager.Complete(ctx, ref)).To(MatchError(upgrade.ErrManualStepNotConfirmed))
			Expect(backend.Commands()).To(BeEmpty())
		})

		It("completes once confirmed and clears the confirmation", func() {
			manager.ConfirmManualStep(true)
			Expect(manager.State().IsManualProceedDisabled).To(BeFalse())

			Expect(manager.Complete(ctx, ref)).To(Succeed())

			Expect(backend.Commands()[0].Status).To(Equal(upgrade.StatusCompleted))
			Expect(manager.State().IsManualDone).To(BeFalse())
		})

		It("keeps the confirmation while the same item is still waiting", func() {
			manager.ConfirmManualStep(true)

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
			Expect(manager.State().IsManualDone).To(BeTrue())
		})

		It("only unlocks the item that was confirmed", func() {
			backend.snapshot.Groups[0].Items = append(backend.snapshot.Groups[0].Items,
				upgrade.Item{RequestID: 11, GroupID: 4, StageID: 31, Status: upgrade.StatusHolding, Context: "Stop the Oozie server"})
			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
			Expect(manager.State().ManualItem.StageID).To(Equal(int64(31)))

			manager.ConfirmManualStep(true)

			Expect(manager.Complete(ctx, ref)).To(MatchError(upgrade.ErrManualStepNotConfirmed))
			Expect(backend.Commands()).To(BeEmpty())

			Expect(manager.Complete(ctx, upgrade.ItemRef{GroupID: 4, StageID: 31})).To(Succeed())
			Expect(backend.Commands()).To(HaveLen(1))
			Expect(backend.Commands()[0].StageID).To(Equal(int64(31)))
		})

		It("drops the confirmation when the manual item changes", func() {
			manager.ConfirmManualStep(true)

			next := manualSnapshotFixture()
			next.Groups[0].Items[0].StageID = 31
			backend.snapshot = next

			Expect(manager.LoadUpgradeData(ctx)).To(Succeed())
			Expect(manager.State().IsManualDone).To(BeFalse())
		})
	})
})
