package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placeSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"name", "formattedAddress"},
	"properties": map[string]interface{}{
		"name":             map[string]interface{}{"type": "string", "minLength": 1},
		"formattedAddress": map[string]interface{}{"type": "string", "minLength": 1},
	},
}

func TestSchema_ValidateBytes(t *testing.T) {
	s := MustCompile(placeSchema)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		errFields []string
	}{
		{"valid", `{"name":"Hotel X","formattedAddress":"1 Main St"}`, true, nil},
		{"missing address", `{"name":"Hotel X"}`, false, []string{"(root)"}},
		{"empty name", `{"name":"","formattedAddress":"1 Main St"}`, false, []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ValidateBytes([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			for i, f := range tt.errFields {
				assert.Equal(t, f, result.Errors[i].Field)
			}
			if !tt.valid {
				assert.NotEmpty(t, result.Error())
			}
		})
	}
}

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompile(placeSchema)
	result, err := s.ValidateValue(map[string]interface{}{"name": "Hotel X", "formattedAddress": 12})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "formattedAddress", result.Errors[0].Field)
	assert.Equal(t, "INVALID_TYPE", result.Errors[0].Code)
}

func TestSchema_ValidateBytes_NotJSON(t *testing.T) {
	_, err := MustCompile(placeSchema).ValidateBytes([]byte("{not json"))
	require.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 12})
	require.Error(t, err)
	assert.Panics(t, func() { MustCompile(map[string]interface{}{"type": 12}) })
}
