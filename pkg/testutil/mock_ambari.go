package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Operations that SetError can fail.
const (
	OpListUpgrades  = "ListUpgrades"
	OpGetUpgrade    = "GetUpgrade"
	OpStackVersions = "StackVersions"
	OpSetItemStatus = "SetItemStatus"
)

const apiPrefix = "/api/v1/clusters/"

//nolint:gochecknoglobals // compiled once
var itemPattern = regexp.MustCompile(`^/upgrades/([0-9]+)/upgrade_groups/([0-9]+)/upgrade_items/([0-9]+)$`)

// ItemCommand is a set-state call the mock received.
type ItemCommand struct {
	UpgradeID int64
	GroupID   int64
	StageID   int64
	Status    string
	RequestID string
}

// MockAmbari serves the subset of the Ambari v1 REST API the upgrade
// watcher uses, for one cluster.
type MockAmbari struct {
	mu       sync.Mutex
	cluster  string
	upgrades map[int64]string
	current  string
	errors   map[string]int
	commands []ItemCommand
}

// NewMockAmbari creates a mock for cluster with no upgrades.
func NewMockAmbari(cluster string) *MockAmbari {
	return &MockAmbari{
		cluster:  cluster,
		upgrades: make(map[int64]string),
		errors:   make(map[string]int),
	}
}

// SetUpgrade stores the raw JSON returned for upgrade id.
func (m *MockAmbari) SetUpgrade(id int64, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upgrades[id] = body
}

// SetCurrentVersion sets the CURRENT repository version.
func (m *MockAmbari) SetCurrentVersion(version string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = version
}

// SetError makes operation answer with statusCode. Zero clears it.
func (m *MockAmbari) SetError(operation string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if statusCode == 0 {
		delete(m.errors, operation)

		return
	}

	m.errors[operation] = statusCode
}

// Commands returns the set-state calls received so far.
func (m *MockAmbari) Commands() []ItemCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]ItemCommand(nil), m.commands...)
}

func (m *MockAmbari) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path, ok := strings.CutPrefix(r.URL.Path, apiPrefix+m.cluster)
	if !ok {
		http.NotFound(w, r)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "/upgrades" && r.Method == http.MethodGet:
		m.listUpgrades(w)
	case path == "/stack_versions" && r.Method == http.MethodGet:
		m.stackVersions(w)
	case itemPattern.MatchString(path) && r.Method == http.MethodPut:
		m.setItemStatus(w, r, itemPattern.FindStringSubmatch(path))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/upgrades/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(path, "/upgrades/"), 10, 64)
		if err != nil {
			http.NotFound(w, r)

			return
		}

		m.getUpgrade(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockAmbari) fail(w http.ResponseWriter, operation string) bool {
	m.mu.Lock()
	status, failing := m.errors[operation]
	m.mu.Unlock()

	if !failing {
		return false
	}

	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status": %d, "message": "mock %s failure"}`, status, operation)

	return true
}

func (m *MockAmbari) listUpgrades(w http.ResponseWriter) {
	if m.fail(w, OpListUpgrades) {
		return
	}

	m.mu.Lock()
	ids := make([]int64, 0, len(m.upgrades))

	for id := range m.upgrades {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type upgradeRef struct {
		Upgrade struct {
			RequestID int64 `json:"request_id"`
		} `json:"Upgrade"`
	}

	items := make([]upgradeRef, len(ids))
	for i, id := range ids {
		items[i].Upgrade.RequestID = id
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
}

func (m *MockAmbari) getUpgrade(w http.ResponseWriter, r *http.Request, id int64) {
	if m.fail(w, OpGetUpgrade) {
		return
	}

	m.mu.Lock()
	body, ok := m.upgrades[id]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)

		return
	}

	_, _ = io.WriteString(w, body)
}

func (m *MockAmbari) stackVersions(w http.ResponseWriter) {
	if m.fail(w, OpStackVersions) {
		return
	}

	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current == "" {
		_, _ = io.WriteString(w, `{"items": []}`)

		return
	}

	_, _ = fmt.Fprintf(w,
		`{"items": [{"repository_versions": [{"RepositoryVersions": {"repository_version": %q}}]}]}`, current)
}

func (m *MockAmbari) setItemStatus(w http.ResponseWriter, r *http.Request, match []string) {
	if m.fail(w, OpSetItemStatus) {
		return
	}

	var body struct {
		UpgradeItem struct {
			Status string `json:"status"`
		} `json:"UpgradeItem"`
	}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	upgradeID, _ := strconv.ParseInt(match[1], 10, 64)
	groupID, _ := strconv.ParseInt(match[2], 10, 64)
	stageID, _ := strconv.ParseInt(match[3], 10, 64)

	m.mu.Lock()
	m.commands = append(m.commands, ItemCommand{
		UpgradeID: upgradeID,
		GroupID:   groupID,
		StageID:   stageID,
		Status:    body.UpgradeItem.Status,
		RequestID: r.Header.Get("X-Request-Id"),
	})
	m.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
}
