package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchemaValidator_Distribution(t *testing.T) {
	sv, err := NewDefaultSchemaValidator()
	require.NoError(t, err)
	assert.True(t, sv.SchemaExists(SchemaDistribution))
	assert.False(t, NewSchemaValidator().SchemaExists(SchemaDistribution))

	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{
			name:  "two buckets",
			body:  `{"buckets":[{"lower":0,"upper":2,"fraction":0.5},{"lower":8,"upper":10,"fraction":0.5}]}`,
			valid: true,
		},
		{
			name:  "negative fraction",
			body:  `{"buckets":[{"lower":0,"upper":2,"fraction":-0.5},{"lower":8,"upper":10,"fraction":1}]}`,
			valid: false,
		},
		{
			name:  "missing buckets",
			body:  `{}`,
			valid: false,
		},
		{
			name:  "empty buckets",
			body:  `{"buckets":[]}`,
			valid: false,
		},
		{
			name:  "upper above scale",
			body:  `{"buckets":[{"lower":0,"upper":11,"fraction":1}]}`,
			valid: false,
		},
		{
			name:  "missing fraction",
			body:  `{"buckets":[{"lower":0,"upper":2}]}`,
			valid: false,
		},
		{
			name:  "unknown field",
			body:  `{"buckets":[{"lower":0,"upper":2,"fraction":1,"weight":3}]}`,
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sv.ValidateJSONString(SchemaDistribution, tt.body)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
			if !tt.valid {
				assert.NotEmpty(t, result.Errors)
				assert.NotNil(t, result.ToAPIError())
			} else {
				assert.Nil(t, result.ToAPIError())
			}
		})
	}
}

func TestSchemaValidator_UnknownSchema(t *testing.T) {
	sv := NewSchemaValidator()
	result := sv.ValidateJSONString("missing", `{}`)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "SCHEMA_NOT_FOUND", result.Errors[0].Code)
}

func TestSchemaValidator_StructInput(t *testing.T) {
	sv, err := NewDefaultSchemaValidator()
	require.NoError(t, err)

	body := map[string]interface{}{
		"buckets": []map[string]float64{{"lower": 4, "upper": 6, "fraction": 1}},
	}
	assert.True(t, sv.ValidateDistribution(body).Valid)
}
