package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4747, cfg.Connection.EnginePort)
	assert.Equal(t, 4242, cfg.Connection.RepositoryPort)
	assert.True(t, cfg.Connection.Secure)
	assert.Equal(t, UpdateModeCreate, cfg.Import.UpdateMode)
	assert.Equal(t, 1000, cfg.Import.SleepAppUploadMs)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("QCTRLQ_CONNECTION_HOST", "qlik.example.com")
	t.Setenv("QCTRLQ_IMPORT_DRY_RUN", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "qlik.example.com", cfg.Connection.Host)
	assert.True(t, cfg.Import.DryRun)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctrlq.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[connection]
host = "from-file.example.com"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.example.com", cfg.Connection.Host)
}

func TestTransportConfig_BearerWins(t *testing.T) {
	cfg := &Config{Connection: Connection{Host: "h", BearerToken: "t"}}
	tc, err := cfg.TransportConfig()
	require.NoError(t, err)
	require.NotNil(t, tc.Bearer)
	assert.Nil(t, tc.Cert)
}

func TestTransportConfig_UnreadableCertFails(t *testing.T) {
	cfg := &Config{Connection: Connection{
		Host:           "h",
		ClientCertPath: "/nonexistent/cert.pem",
		ClientKeyPath:  "/nonexistent/key.pem",
	}}
	_, err := cfg.TransportConfig()
	assert.Error(t, err)
}

func TestValidateImportRun_RejectsUpdateMode(t *testing.T) {
	r := ImportRun{UpdateMode: UpdateModeUpdate}
	assert.Error(t, r.ValidateImportRun())
}

func TestValidateImportRun_AcceptsCreate(t *testing.T) {
	r := ImportRun{UpdateMode: UpdateModeCreate}
	assert.NoError(t, r.ValidateImportRun())
}
