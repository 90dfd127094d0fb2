package server_test

import (
	"testing"
	"time"

	"carte-manager/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_TokenTTL(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    time.Duration
	}{
		{"Configured", 30, 30 * time.Minute},
		{"Zero", 0, time.Hour},
		{"Negative", -5, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := server.Config{TokenTTLMinutes: tt.minutes}
			assert.Equal(t, tt.want, c.TokenTTL())
		})
	}
}
