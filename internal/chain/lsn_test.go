package chain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseLSN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"126000000943800037", "126000000943800037", false},
		{" 42 ", "42", false},
		{"1.50", "1.5", false},
		{"99999999999999999999999", "99999999999999999999999", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l, err := ParseLSN(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, l.String())
		})
	}
}

func TestLSN_ExactComparison(t *testing.T) {
	// adjacent values that collapse to the same float64
	a := MustParseLSN("126000000955200001")
	b := MustParseLSN("126000000955200002")

	assert.False(t, a.Equal(b))
	assert.Equal(t, -1, a.Cmp(b))
	assert.True(t, a.LessThanOrEqual(b))
	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.Between(a, b))
	assert.Equal(t, b, MaxLSN(a, b))
	assert.True(t, MustParseLSN("1.0").Equal(NewLSN(1)))
	assert.Equal(t, MustParseLSN("1.0").String(), NewLSN(1).String())
}

func TestLSN_Scan(t *testing.T) {
	tests := []struct {
		name     string
		src      interface{}
		expected string
	}{
		{"bytes", []byte("126000000943800037"), "126000000943800037"},
		{"string", "95000000019800037", "95000000019800037"},
		{"int64", int64(1234), "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l LSN
			require.NoError(t, l.Scan(tt.src))
			assert.Equal(t, tt.expected, l.String())
		})
	}

	var l LSN
	assert.Error(t, l.Scan(nil))
}

func TestLSN_JSON(t *testing.T) {
	type wrapper struct {
		LSN LSN `json:"lsn"`
	}

	data, err := json.Marshal(wrapper{LSN: MustParseLSN("126000000943800037")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lsn":"126000000943800037"}`, string(data))

	var quoted, bare wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"lsn":"126000000943800037"}`), &quoted))
	require.NoError(t, json.Unmarshal([]byte(`{"lsn":126000000943800037}`), &bare))
	assert.True(t, quoted.LSN.Equal(bare.LSN))
	assert.Equal(t, "126000000943800037", bare.LSN.String())

	assert.Error(t, json.Unmarshal([]byte(`{"lsn":null}`), &quoted))
}

func TestLSN_YAML(t *testing.T) {
	type wrapper struct {
		LSN LSN `yaml:"lsn"`
	}

	var w wrapper
	require.NoError(t, yaml.Unmarshal([]byte("lsn: 126000000943800037\n"), &w))
	assert.Equal(t, "126000000943800037", w.LSN.String())

	out, err := yaml.Marshal(w)
	require.NoError(t, err)
	assert.Contains(t, string(out), "126000000943800037")
}
