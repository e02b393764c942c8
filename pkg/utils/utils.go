package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/geofffranks/spruce"
	"gopkg.in/yaml.v2"
)

// Static errors for err113 compliance.
var (
	ErrFilePathCannotBeEmpty = errors.New("file path cannot be empty")
	ErrPathTraversalDetected = errors.New("path traversal detected in file path")
	ErrNoFilesToMerge        = errors.New("no files to merge")
)

// ReadFile reads path if it exists. The bool reports whether it existed.
func ReadFile(path string) ([]byte, bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte{}, false, nil
		}

		return []byte{}, true, fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	fileBytes, err := SafeReadFile(path)

	return fileBytes, true, err
}

// MergeFiles reads every YAML file in order and merges them with spruce.
// Later files override earlier ones. Every file must exist.
func MergeFiles(paths ...string) (map[interface{}]interface{}, error) {
	if len(paths) == 0 {
		return nil, ErrNoFilesToMerge
	}

	merged := make(map[interface{}]interface{})

	for _, path := range paths {
		data, err := SafeReadFile(path)
		if err != nil {
			return nil, err
		}

		doc := make(map[interface{}]interface{})

		err = yaml.Unmarshal(data, &doc)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML file %s: %w", path, err)
		}

		merged, err = spruce.Merge(merged, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
	}

	return merged, nil
}

// validateFilePath rejects empty paths and paths that climb out with "..".
func validateFilePath(path string) error {
	if path == "" {
		return ErrFilePathCannotBeEmpty
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal detected in file path %s: %w", path, ErrPathTraversalDetected)
	}

	return nil
}

// SafeReadFile reads a file after validating the path.
func SafeReadFile(path string) ([]byte, error) {
	err := validateFilePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 - Path has been validated by validateFilePath
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return data, nil
}
