package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Startup configuration which is missing or unusable. The daemon refuses to start.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Reads the platform session credential. The content is opaque, but must be a non-empty JSON document.
func loadSession(path string) (json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "session-file", Err: err}
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, &ConfigError{Field: "session-file", Err: errors.New("session file is empty")}
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, &ConfigError{Field: "session-file", Err: errors.New("session file is not valid JSON")}
	}
	return json.RawMessage(trimmed), nil
}

// Resolves the administrator identity. A non-empty file takes precedence over the flag value.
func loadAdminID(flagValue, path string) (string, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", &ConfigError{Field: "admin-id-file", Err: err}
		}
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	}
	id := strings.TrimSpace(flagValue)
	if id == "" {
		return "", &ConfigError{Field: "admin-id", Err: errors.New("no administrator id configured")}
	}
	return id, nil
}
