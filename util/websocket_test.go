package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWebsocketURL(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		host     string
		expected string
	}{
		{"localhost:8090", "ws://localhost:8090/v1/session"},
		{"127.0.0.1", "ws://127.0.0.1/v1/session"},
		{"[::1]:8090", "ws://[::1]:8090/v1/session"},
		{"gateway.example.com", "wss://gateway.example.com/v1/session"},
		{"ws://gateway.example.com", "ws://gateway.example.com/v1/session"},
		{"wss://gateway.example.com/ignored", "wss://gateway.example.com/v1/session"},
		{"http://gateway.example.com:123", "ws://gateway.example.com:123/v1/session"},
		{"https://gateway.example.com", "wss://gateway.example.com/v1/session"},
	}

	for _, c := range testCases {
		u, err := WebsocketURL(c.host, "/v1/session")
		assert.NoError(err, c.host)
		assert.Equal(c.expected, u)
	}

	for _, bad := range []string{"", "  ", "ftp://gateway.example.com"} {
		_, err := WebsocketURL(bad, "/v1/session")
		assert.Error(err, bad)
	}
}

func TestSleepContext(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(SleepContext(t.Context(), 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(SleepContext(ctx, time.Hour), context.Canceled)
}
