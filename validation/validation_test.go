package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/dbsnap/errors"
)

type createItem struct {
	Name string `json:"name" validate:"required,max=100"`
}

type engineConfig struct {
	Engine   string `mapstructure:"engine" validate:"oneof=postgres sqlite"`
	Postgres struct {
		Image string `mapstructure:"image" validate:"required"`
	} `mapstructure:"postgres"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" validate:"gt=0"`
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(createItem{Name: "Get Me"}))
}

func TestValidate_RequiredUsesJSONName(t *testing.T) {
	err := Validate(createItem{})
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidInput, appErr.Code)
	assert.Equal(t, "name: is required", appErr.Message)

	fields := appErr.Details["fields"].([]FieldError)
	require.Len(t, fields, 1)
	assert.Equal(t, "name", fields[0].Field)
}

func TestValidate_MaxLength(t *testing.T) {
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	err := Validate(createItem{Name: string(long)})
	assert.ErrorContains(t, err, "name: must be at most 100 characters")
}

func TestValidate_NestedConfigPaths(t *testing.T) {
	err := Validate(engineConfig{Engine: "mysql"})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "engine: must be one of: postgres sqlite")
	assert.Contains(t, msg, "postgres.image: is required")
	assert.Contains(t, msg, "startup_timeout: must be greater than 0")
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "startup_timeout", toSnakeCase("StartupTimeout"))
	assert.Equal(t, "name", toSnakeCase("Name"))
}
