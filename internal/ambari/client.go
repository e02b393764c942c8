package ambari

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"upgradewatch/internal/config"
	"upgradewatch/internal/interfaces"
	"upgradewatch/internal/upgrade"
	pkgerrors "upgradewatch/pkg/errors"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	apiPrefix      = "/api/v1"
	requestedBy    = "ambari"
	maxErrorBody   = 4096
	upgradeFields  = "Upgrade,upgrade_groups/UpgradeGroup,upgrade_groups/upgrade_items/UpgradeItem,upgrade_groups/upgrade_items/tasks/Tasks/*"
	versionsFields = "repository_versions/RepositoryVersions/repository_version"
)

// StatusError is a non-2xx answer from Ambari.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s: %d %s", e.Method, e.Path,
		pkgerrors.ErrBackendNonSuccessfulStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return pkgerrors.ErrNotFound
	}

	return pkgerrors.ErrBackendNonSuccessfulStatus
}

// Client talks to the Ambari REST API for one cluster. Every request passes
// through a rate limiter and a circuit breaker.
type Client struct {
	baseURL    string
	cluster    string
	username   string
	password   string
	upgradeID  int64
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     interfaces.Logger
}

// NewClient builds a client from configuration. password is passed separately
// since it may have been resolved from Vault.
func NewClient(cfg config.AmbariConfig, resilience config.ResilienceConfig, password string, logger interfaces.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipSSLValidation {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 - opt-in via skip_ssl_validation
	}

	log := logger.Named("ambari-client")

	client := &Client{
		baseURL:   cfg.Address + apiPrefix,
		cluster:   cfg.Cluster,
		username:  cfg.Username,
		password:  password,
		upgradeID: cfg.UpgradeID,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Timeout) * time.Second,
		},
		limiter: rate.NewLimiter(
			rate.Limit(resilience.RateLimit.RequestsPerSecond),
			resilience.RateLimit.Burst,
		),
		logger: log,
	}

	breaker := resilience.CircuitBreaker
	interval, _ := time.ParseDuration(breaker.Interval)
	timeout, _ := time.ParseDuration(breaker.Timeout)

	client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Ambari-API",
		MaxRequests: breaker.MaxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("Circuit breaker %s state changed from %v to %v", name, from, to)
		},
		IsSuccessful: isSuccessful,
	})

	return client
}

// isSuccessful keeps client errors from tripping the breaker; only transport
// failures and 5xx answers count against Ambari.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < http.StatusInternalServerError
	}

	return false
}

// FetchUpgrade returns the snapshot of the configured upgrade request, or of
// the latest one when none is configured.
func (c *Client) FetchUpgrade(ctx context.Context) (*upgrade.Snapshot, error) {
	id := c.upgradeID
	if id == 0 {
		latest, err := c.LatestUpgradeID(ctx)
		if err != nil {
			return nil, err
		}

		id = latest
	}

	var resp upgradeResponse

	query := url.Values{"fields": []string{upgradeFields}}

	err := c.do(ctx, http.MethodGet, c.clusterPath("/upgrades/"+strconv.FormatInt(id, 10)), query, nil, "", &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch upgrade %d: %w", id, err)
	}

	snapshot := resp.snapshot()
	if snapshot.ClusterName == "" {
		snapshot.ClusterName = c.cluster
	}

	snapshot.FetchedAt = time.Now()

	return snapshot, nil
}

// LatestUpgradeID returns the highest upgrade request id of the cluster.
func (c *Client) LatestUpgradeID(ctx context.Context) (int64, error) {
	var list upgradeList

	query := url.Values{"fields": []string{"Upgrade/request_id"}}

	err := c.do(ctx, http.MethodGet, c.clusterPath("/upgrades"), query, nil, "", &list)
	if err != nil {
		return 0, fmt.Errorf("failed to list upgrades: %w", err)
	}

	var latest int64
	for _, item := range list.Items {
		latest = max(latest, item.Upgrade.RequestID)
	}

	if latest == 0 {
		return 0, fmt.Errorf("%w: %s", pkgerrors.ErrNoUpgrade, c.cluster)
	}

	return latest, nil
}

// FetchCurrentVersion returns the repository version in CURRENT state.
func (c *Client) FetchCurrentVersion(ctx context.Context) (string, error) {
	var list stackVersionList

	query := url.Values{
		"ClusterStackVersions/state": []string{"CURRENT"},
		"fields":                     []string{versionsFields},
	}

	err := c.do(ctx, http.MethodGet, c.clusterPath("/stack_versions"), query, nil, "", &list)
	if err != nil {
		return "", fmt.Errorf("failed to fetch current stack version: %w", err)
	}

	for _, item := range list.Items {
		for _, repo := range item.RepositoryVersions {
			if v := repo.RepositoryVersions.RepositoryVersion; v != "" {
				return v, nil
			}
		}
	}

	return "", fmt.Errorf("current stack version: %w", pkgerrors.ErrNotFound)
}

// SetItemStatus asks Ambari to move an upgrade item to a new status.
func (c *Client) SetItemStatus(ctx context.Context, cmd upgrade.StatusCommand) error {
	var body itemStatusRequest
	body.UpgradeItem.Status = string(cmd.Status)

	path := c.clusterPath(fmt.Sprintf("/upgrades/%d/upgrade_groups/%d/upgrade_items/%d",
		cmd.UpgradeID, cmd.GroupID, cmd.StageID))

	err := c.do(ctx, http.MethodPut, path, nil, body, cmd.ID, nil)
	if err != nil {
		return fmt.Errorf("failed to set upgrade item %d to %s: %w", cmd.StageID, cmd.Status, err)
	}

	return nil
}

func (c *Client) clusterPath(suffix string) string {
	return "/clusters/" + url.PathEscape(c.cluster) + suffix
}

// do runs one request through the limiter and breaker and decodes a JSON
// answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in interface{}, requestID string, out interface{}) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if requestID == "" {
		requestID = uuid.New().String()
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, in, requestID, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", pkgerrors.ErrBackendUnavailable, err)
	}

	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, in interface{}, requestID string, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("X-Requested-By", requestedBy)
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Ambari request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}

	return nil
}
