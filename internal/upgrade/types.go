package upgrade

import (
	"time"
)

// Direction of a stack upgrade request.
type Direction string

const (
	DirectionUpgrade   Direction = "UPGRADE"
	DirectionDowngrade Direction = "DOWNGRADE"
)

// Task is the smallest unit of upgrade work, executed on one host.
type Task struct {
	ID            int64  `json:"id"`
	RequestID     int64  `json:"request_id"`
	StageID       int64  `json:"stage_id"`
	Status        Status `json:"status"`
	HostName      string `json:"host_name,omitempty"`
	Role          string `json:"role,omitempty"`
	CommandDetail string `json:"command_detail,omitempty"`
	Stdout        string `json:"stdout,omitempty"`
	Stderr        string `json:"stderr,omitempty"`
}

// Item is one stage of an upgrade group.
type Item struct {
	RequestID       int64   `json:"request_id"`
	StageID         int64   `json:"stage_id"`
	GroupID         int64   `json:"group_id"`
	Status          Status  `json:"status"`
	Context         string  `json:"context,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	Skippable       bool    `json:"skippable"`
	Tasks           []Task  `json:"tasks"`
}

// Ref returns the identifiers that address this item.
func (i *Item) Ref() ItemRef {
	return ItemRef{GroupID: i.GroupID, StageID: i.StageID}
}

// Group is a batch of related upgrade items executed together.
type Group struct {
	GroupID         int64   `json:"group_id"`
	Name            string  `json:"name,omitempty"`
	Title           string  `json:"title,omitempty"`
	Status          Status  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	Items           []Item  `json:"items"`
}

// Snapshot is the upgrade request aggregate as last reported by Ambari.
type Snapshot struct {
	RequestID       int64     `json:"request_id"`
	ClusterName     string    `json:"cluster_name,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	RequestStatus   Status    `json:"request_status"`
	Direction       Direction `json:"direction,omitempty"`
	FromVersion     string    `json:"from_version,omitempty"`
	ToVersion       string    `json:"to_version,omitempty"`
	Groups          []Group   `json:"groups"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Clone returns a deep copy. A nil snapshot clones to nil.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := *s
	out.Groups = cloneGroups(s.Groups)

	return &out
}

// FindItem looks up an item by group and stage id.
func (s *Snapshot) FindItem(ref ItemRef) *Item {
	if s == nil {
		return nil
	}

	for gi := range s.Groups {
		group := &s.Groups[gi]
		if group.GroupID != ref.GroupID {
			continue
		}

		for ii := range group.Items {
			if group.Items[ii].StageID == ref.StageID {
				return &group.Items[ii]
			}
		}
	}

	return nil
}

func cloneGroups(groups []Group) []Group {
	if groups == nil {
		return nil
	}

	out := make([]Group, len(groups))
	for i, group := range groups {
		out[i] = group
		out[i].Items = cloneItems(group.Items)
	}

	return out
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}

	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item
		if item.Tasks != nil {
			out[i].Tasks = append([]Task(nil), item.Tasks...)
		}
	}

	return out
}

// ItemRef addresses an upgrade item within the current upgrade.
type ItemRef struct {
	GroupID int64 `json:"group_id"`
	StageID int64 `json:"stage_id"`
}

// StatusCommand is the set-state request sent to Ambari for one item.
type StatusCommand struct {
	ID        string `json:"id"`
	UpgradeID int64  `json:"upgrade_id"`
	GroupID   int64  `json:"group_id"`
	StageID   int64  `json:"stage_id"`
	Status    Status `json:"status"`
}

// TransitionEvent records an acknowledged item status change.
type TransitionEvent struct {
	ID          string    `json:"id"`
	ClusterName string    `json:"cluster_name"`
	RequestID   int64     `json:"request_id"`
	GroupID     int64     `json:"group_id"`
	StageID     int64     `json:"stage_id"`
	Action      Action    `json:"action"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	At          time.Time `json:"at"`
}
