package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	path := writeConfigFile(t, `
logs:
  level: debug
storage:
  directory: /tmp/trustedge-test
cloud_sync:
  enabled: false
  frequency: "@every 1m"
`)
	t.Setenv("TRUSTEDGE_CONFIG_FILE", path)

	conf, err := LoadConfig[DeviceAuthConfig](DefaultDeviceAuthConfig())
	require.NoError(t, err)

	assert.Equal(t, Debug, conf.Logs.Level)
	assert.Equal(t, "/tmp/trustedge-test", conf.Storage.Directory)
	assert.False(t, conf.CloudSync.Enabled)
	assert.Equal(t, "@every 1m", conf.CloudSync.Frequency)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
logs:
  level: info
`)
	t.Setenv("TRUSTEDGE_CONFIG_FILE", path)

	conf, err := LoadConfig[DeviceAuthConfig](DefaultDeviceAuthConfig())
	require.NoError(t, err)

	defaults := DefaultDeviceAuthConfig()
	assert.Equal(t, defaults.CloudSync.Frequency, conf.CloudSync.Frequency)
	assert.Equal(t, defaults.CloudCallTimeout, conf.CloudCallTimeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("TRUSTEDGE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))

	_, err := LoadConfig[DeviceAuthConfig](nil)
	assert.Error(t, err)
}

func TestDecodeEncodeStructRoundtrip(t *testing.T) {
	original := DefaultDeviceAuthConfig()

	encoded, err := EncodeStruct(original)
	require.NoError(t, err)

	decoded, err := DecodeStruct[DeviceAuthConfig](encoded)
	require.NoError(t, err)

	assert.Equal(t, *original, decoded)
}
