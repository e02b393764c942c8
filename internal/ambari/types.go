package ambari

import (
	"upgradewatch/internal/upgrade"
)

// Wire shapes of the Ambari v1 REST API. Ambari nests each resource's own
// properties under a key named after the resource.

type upgradeResponse struct {
	Upgrade       upgradeProperties `json:"Upgrade"`
	UpgradeGroups []upgradeGroup    `json:"upgrade_groups"`
}

type upgradeProperties struct {
	ClusterName     string  `json:"cluster_name"`
	RequestID       int64   `json:"request_id"`
	ProgressPercent float64 `json:"progress_percent"`
	RequestStatus   string  `json:"request_status"`
	Direction       string  `json:"direction"`
	FromVersion     string  `json:"from_version"`
	ToVersion       string  `json:"to_version"`
}

type upgradeGroup struct {
	UpgradeGroup upgradeGroupProperties `json:"UpgradeGroup"`
	UpgradeItems []upgradeItem          `json:"upgrade_items"`
}

type upgradeGroupProperties struct {
	GroupID         int64   `json:"group_id"`
	Name            string  `json:"name"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
}

type upgradeItem struct {
	UpgradeItem upgradeItemProperties `json:"UpgradeItem"`
	Tasks       []task                `json:"tasks"`
}

type upgradeItemProperties struct {
	RequestID       int64   `json:"request_id"`
	StageID         int64   `json:"stage_id"`
	GroupID         int64   `json:"group_id"`
	Status          string  `json:"status"`
	Context         string  `json:"context"`
	ProgressPercent float64 `json:"progress_percent"`
	Skippable       bool    `json:"skippable"`
}

type task struct {
	Tasks taskProperties `json:"Tasks"`
}

type taskProperties struct {
	ID            int64  `json:"id"`
	RequestID     int64  `json:"request_id"`
	StageID       int64  `json:"stage_id"`
	Status        string `json:"status"`
	HostName      string `json:"host_name"`
	Role          string `json:"role"`
	CommandDetail string `json:"command_detail"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
}

type upgradeList struct {
	Items []struct {
		Upgrade struct {
			RequestID int64 `json:"request_id"`
		} `json:"Upgrade"`
	} `json:"items"`
}

type stackVersionList struct {
	Items []struct {
		RepositoryVersions []struct {
			RepositoryVersions struct {
				RepositoryVersion string `json:"repository_version"`
			} `json:"RepositoryVersions"`
		} `json:"repository_versions"`
	} `json:"items"`
}

type itemStatusRequest struct {
	UpgradeItem struct {
		Status string `json:"status"`
	} `json:"UpgradeItem"`
}

func (r *upgradeResponse) snapshot() *upgrade.Snapshot {
	snapshot := &upgrade.Snapshot{
		RequestID:       r.Upgrade.RequestID,
		ClusterName:     r.Upgrade.ClusterName,
		ProgressPercent: r.Upgrade.ProgressPercent,
		RequestStatus:   upgrade.Status(r.Upgrade.RequestStatus),
		Direction:       upgrade.Direction(r.Upgrade.Direction),
		FromVersion:     r.Upgrade.FromVersion,
		ToVersion:       r.Upgrade.ToVersion,
		Groups:          make([]upgrade.Group, 0, len(r.UpgradeGroups)),
	}

	for _, g := range r.UpgradeGroups {
		group := upgrade.Group{
			GroupID:         g.UpgradeGroup.GroupID,
			Name:            g.UpgradeGroup.Name,
			Title:           g.UpgradeGroup.Title,
			Status:          upgrade.Status(g.UpgradeGroup.Status),
			ProgressPercent: g.UpgradeGroup.ProgressPercent,
			Items:           make([]upgrade.Item, 0, len(g.UpgradeItems)),
		}

		for _, i := range g.UpgradeItems {
			item := upgrade.Item{
				RequestID:       i.UpgradeItem.RequestID,
				StageID:         i.UpgradeItem.StageID,
				GroupID:         i.UpgradeItem.GroupID,
				Status:          upgrade.Status(i.UpgradeItem.Status),
				Context:         i.UpgradeItem.Context,
				ProgressPercent: i.UpgradeItem.ProgressPercent,
				Skippable:       i.UpgradeItem.Skippable,
				Tasks:           make([]upgrade.Task, 0, len(i.Tasks)),
			}

			// Older Ambari releases omit group_id on items.
			if item.GroupID == 0 {
				item.GroupID = group.GroupID
			}

			for _, t := range i.Tasks {
				item.Tasks = append(item.Tasks, upgrade.Task{
					ID:            t.Tasks.ID,
					RequestID:     t.Tasks.RequestID,
					StageID:       t.Tasks.StageID,
					Status:        upgrade.Status(t.Tasks.Status),
					HostName:      t.Tasks.HostName,
					Role:          t.Tasks.Role,
					CommandDetail: t.Tasks.CommandDetail,
					Stdout:        t.Tasks.Stdout,
					Stderr:        t.Tasks.Stderr,
				})
			}

			group.Items = append(group.Items, item)
		}

		snapshot.Groups = append(snapshot.Groups, group)
	}

	return snapshot
}
