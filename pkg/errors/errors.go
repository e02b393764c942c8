package errors

import "errors"

// Common static errors shared across packages.
var (
	// Backend errors.
	ErrBackendNonSuccessfulStatus = errors.New("ambari responded with non-successful status code")
	ErrBackendUnavailable         = errors.New("ambari backend unavailable")
	ErrNotFound                   = errors.New("not found")

	// Snapshot errors.
	ErrNoUpgrade     = errors.New("no upgrade found for cluster")
	ErrNotLoaded     = errors.New("upgrade data not loaded yet")
	ErrEmptyCluster  = errors.New("cluster name is not set")
	ErrMissingSecret = errors.New("secret not found")
)
