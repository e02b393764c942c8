package vault

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "upgradewatch/pkg/errors"
	"upgradewatch/pkg/logger"

	"github.com/hashicorp/vault/api"
)

// Client wraps the HashiCorp Vault API client for reading KV secrets.
type Client struct {
	*api.Client

	URL  string
	KVv2 bool
}

// NewClient creates a new vault client using the HashiCorp API with default timeout.
func NewClient(url, token string, insecure, kvV2 bool) (*Client, error) {
	const defaultTimeoutSeconds = 30

	return NewClientWithTimeout(url, token, insecure, kvV2, defaultTimeoutSeconds*time.Second)
}

// NewClientWithTimeout creates a new vault client with a custom timeout duration.
func NewClientWithTimeout(url, token string, insecure, kvV2 bool, timeout time.Duration) (*Client, error) {
	loggerInstance := logger.Get().Named("vault client init")
	loggerInstance.Debugf("creating new vault client for %s", url)

	if insecure {
		loggerInstance.Info("vault client configured with InsecureSkipVerify=true - TLS certificate verification will be bypassed")
	}

	config := api.DefaultConfig()
	config.Address = url

	tlsConfig := &tls.Config{
		InsecureSkipVerify: insecure,         // #nosec G402 - This is configurable by user for development/testing
		MinVersion:         tls.VersionTLS12, // Enforce TLS 1.2 minimum
	}

	config.HttpClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			const maxRedirects = 10
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			// Preserve token on redirects
			req.Header.Set("X-Vault-Token", token)

			return nil
		},
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(token)

	return &Client{Client: client, URL: url, KVv2: kvV2}, nil
}

// GetSecret reads the secret at path, given as "<mount>/<path>". The bool
// reports whether a secret was there.
func (vc *Client) GetSecret(ctx context.Context, path string) (map[string]interface{}, bool, error) {
	loggerInstance := logger.Get().Named("vault get")

	fullPath, err := vc.resolvePath(path)
	if err != nil {
		return nil, false, err
	}

	loggerInstance.Debugf("reading secret at %s (KV v2: %v)", fullPath, vc.KVv2)

	secret, err := vc.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read vault secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, false, nil
	}

	// For KV v2, the actual data is nested under "data" key
	if vc.KVv2 {
		data, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return nil, false, nil
		}

		return data, true, nil
	}

	return secret.Data, true, nil
}

// GetString reads a single string value out of a secret.
func (vc *Client) GetString(ctx context.Context, path, key string) (string, error) {
	data, found, err := vc.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	if !found {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrMissingSecret, path)
	}

	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrKeyNotFound, key, path)
	}

	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrKeyNotString, key, path)
	}

	return value, nil
}

// resolvePath inserts the KV v2 "data" segment after the mount.
func (vc *Client) resolvePath(path string) (string, error) {
	mount, rest, ok := strings.Cut(strings.Trim(path, "/"), "/")
	if !ok || mount == "" || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	if vc.KVv2 {
		return mount + "/data/" + rest, nil
	}

	return mount + "/" + rest, nil
}
