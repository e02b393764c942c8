package upgrade

// Projection is the part of a snapshot the wizard cares about. Pointers refer
// into Groups, which is a reversed copy of the snapshot's groups.
type Projection struct {
	Groups      []Group
	ActiveGroup *Group
	RunningItem *Item
	FailedItem  *Item
	ManualItem  *Item
	TaskDetail  *Task
}

// Project derives the projection from a snapshot. Nil or group-less snapshots
// produce an empty projection.
func Project(snapshot *Snapshot) Projection {
	if snapshot == nil || len(snapshot.Groups) == 0 {
		return Projection{Groups: []Group{}}
	}

	groups := ReversedGroups(snapshot.Groups)
	active := ActiveGroup(groups)
	running := RunningItem(active)
	failed := FailedItem(active)

	return Projection{
		Groups:      groups,
		ActiveGroup: active,
		RunningItem: running,
		FailedItem:  failed,
		ManualItem:  ManualItem(active),
		TaskDetail:  TaskDetail(running, failed),
	}
}

// ReversedGroups copies groups newest-first, with each group's items reversed too.
// The input is left untouched.
func ReversedGroups(groups []Group) []Group {
	out := make([]Group, len(groups))

	for i, group := range groups {
		reversed := group
		reversed.Items = make([]Item, len(group.Items))

		for j, item := range group.Items {
			reversed.Items[len(group.Items)-1-j] = item
		}

		out[len(groups)-1-i] = reversed
	}

	return out
}

// ActiveGroup returns the first group with an active status, in the given order.
func ActiveGroup(groups []Group) *Group {
	for i := range groups {
		if groups[i].Status.IsActive() {
			return &groups[i]
		}
	}

	return nil
}

// RunningItem returns the item of group that is IN_PROGRESS.
func RunningItem(group *Group) *Item {
	return findItem(group, func(s Status) bool { return s == StatusInProgress })
}

// FailedItem returns the first item of group with a failed status.
func FailedItem(group *Group) *Item {
	return findItem(group, Status.IsFailed)
}

// ManualItem returns the first item of group waiting on a manual step.
func ManualItem(group *Group) *Item {
	return findItem(group, func(s Status) bool { return s == StatusHolding })
}

// TaskDetail picks the task worth showing: the running item's IN_PROGRESS
// task, otherwise the failed item's first failed task.
func TaskDetail(running, failed *Item) *Task {
	switch {
	case running != nil:
		return findTask(running, func(s Status) bool { return s == StatusInProgress })
	case failed != nil:
		return findTask(failed, Status.IsFailed)
	default:
		return nil
	}
}

func findItem(group *Group, match func(Status) bool) *Item {
	if group == nil {
		return nil
	}

	for i := range group.Items {
		if match(group.Items[i].Status) {
			return &group.Items[i]
		}
	}

	return nil
}

func findTask(item *Item, match func(Status) bool) *Task {
	for i := range item.Tasks {
		if match(item.Tasks[i].Status) {
			return &item.Tasks[i]
		}
	}

	return nil
}
