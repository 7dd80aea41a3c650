package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_GetUint(t *testing.T) {
	// Numbers arrive as float64 after a round trip through encoding/json.
	var decoded JSON
	require.NoError(t, json.Unmarshal([]byte(`{"wallet_id": 7}`), &decoded))
	assert.Equal(t, uint(7), decoded.GetUint("wallet_id"))

	direct := JSON{"a": 7, "b": uint(8), "c": "not a number"}
	assert.Equal(t, uint(7), direct.GetUint("a"))
	assert.Equal(t, uint(8), direct.GetUint("b"))
	assert.Equal(t, uint(0), direct.GetUint("c"))
	assert.Equal(t, uint(0), direct.GetUint("missing"))

	var nilMap JSON
	assert.Equal(t, uint(0), nilMap.GetUint("a"))
}

func TestNewJSON(t *testing.T) {
	src := map[string]interface{}{"provider": "mock"}
	j := NewJSON(src)

	j["authorization_url"] = "https://pay.example.com/x"
	assert.NotContains(t, src, "authorization_url", "mutating the copy must not touch the source map")
	assert.Equal(t, "mock", j.GetString("provider"))

	assert.NotNil(t, NewJSON(nil))
	assert.Empty(t, NewJSON(nil))
}

func TestJSON_GetString(t *testing.T) {
	j := JSON{"country": "NL", "amount": 5}
	assert.Equal(t, "NL", j.GetString("country"))
	assert.Equal(t, "", j.GetString("amount"))
	assert.Equal(t, "", j.GetString("missing"))
}

func TestJSON_ScanValue(t *testing.T) {
	j := JSON{"provider": "mock"}

	v, err := j.Value()
	require.NoError(t, err)

	var scanned JSON
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, "mock", scanned.GetString("provider"))

	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)

	assert.Error(t, scanned.Scan(42))
}
