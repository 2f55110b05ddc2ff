package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderstack/mediastage/internal/errs"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("S3_ACCESS_KEY", "AKIAEXAMPLE")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("S3_BUCKET_NAME", "render-assets")
	t.Setenv("S3_ENDPOINT_URL", "https://s3.amazonaws.com")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_INPUT_DIR", "incoming")
	t.Setenv("S3_OUTPUT_DIR", "renders")
	t.Setenv("LIST_LIMIT_ITEMS", "250")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Store.Region)
	assert.Equal(t, "AKIAEXAMPLE", cfg.Store.AccessKey)
	assert.Equal(t, "render-assets", cfg.Store.Bucket)
	assert.Equal(t, "https://s3.amazonaws.com", cfg.Store.EndpointURL)
	assert.Equal(t, "incoming", cfg.Staging.InputPrefix)
	assert.Equal(t, "renders", cfg.Staging.OutputRoot)
	assert.Equal(t, 250, cfg.Staging.ListLimit)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("S3_INPUT_DIR", "")
	t.Setenv("S3_OUTPUT_DIR", "")
	t.Setenv("LIST_LIMIT_ITEMS", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "input", cfg.Staging.InputPrefix)
	assert.Equal(t, "output", cfg.Staging.OutputRoot)
	assert.Equal(t, 100, cfg.Staging.ListLimit)
	assert.Equal(t, "input", cfg.Staging.LocalDir)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, AddressingAuto, cfg.Store.AddressingStyle)
}

func TestLoad_DefaultEndpoint(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("S3_ENDPOINT_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://s3.amazonaws.com", cfg.Store.EndpointURL)
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY", "")
	t.Setenv("S3_SECRET_KEY", "")
	t.Setenv("S3_BUCKET_NAME", "render-assets")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, errs.IsCredentials(err))
	assert.Contains(t, err.Error(), "S3_ACCESS_KEY")
	assert.Contains(t, err.Error(), "S3_SECRET_KEY")
}

func TestLoad_InvalidListLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LIST_LIMIT_ITEMS", "plenty")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LIST_LIMIT_ITEMS")
}

func TestAddressingStyle(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "auto", value: "auto", want: AddressingAuto},
		{name: "virtual", value: "virtual", want: AddressingVirtual},
		{name: "path", value: "path", want: AddressingPath},
		{name: "unknown falls back to auto", value: "dns-compatible", want: AddressingAuto},
		{name: "empty defaults to auto", value: "", want: AddressingAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("S3_ADDRESSING_STYLE", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Store.AddressingStyle)
		})
	}
}
