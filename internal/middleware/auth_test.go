package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   string
	}{
		{"well formed", "pv_a1b2c3d4_deadbeefdeadbeef", "a1b2c3d4"},
		{"secret containing underscores keeps the first prefix", "pv_abc_def_ghi", "abc"},
		{"wrong scheme", "sk_a1b2c3d4_deadbeef", ""},
		{"missing secret", "pv_a1b2c3d4", ""},
		{"empty prefix", "pv__secret", ""},
		{"empty key", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, APIKeyPrefix(tt.apiKey))
		})
	}
}
