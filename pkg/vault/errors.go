package vault

import "errors"

// Vault-related errors.
var (
	ErrTooManyRedirects = errors.New("stopped after 10 redirects")
	ErrInvalidPath      = errors.New("secret path must be <mount>/<path>")
	ErrKeyNotFound      = errors.New("key not found in secret")
	ErrKeyNotString     = errors.New("secret value is not a string")
)
