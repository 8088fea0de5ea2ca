package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pbinitiative/zencmmn/internal/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidate(t *testing.T) {
	out, _, err := execute(t, "validate", "../../pkg/cmmn/test-cases/simple_case.cmmn", "../../pkg/cmmn/test-cases/start_message_case.cmmn")

	require.NoError(t, err)
	assert.Contains(t, out, "case simple_case is valid")
	assert.Contains(t, out, "case claim_case is valid")
}

func TestValidateReportsInvalidFiles(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "broken.cmmn")
	require.NoError(t, os.WriteFile(invalid, []byte("<definitions"), 0o600))

	_, errOut, err := execute(t, "validate", "../../pkg/cmmn/test-cases/simple_case.cmmn", invalid)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cmmn is not valid")
	assert.Contains(t, errOut, "broken.cmmn:")
}

func TestConfigPrintsEffectiveConfiguration(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: from-file\npersistence:\n  type: sqlite\n"), 0o600))
	t.Setenv("CONFIG_FILE", file)

	out, _, err := execute(t, "config")
	require.NoError(t, err)

	var conf config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &conf))
	assert.Equal(t, "from-file", conf.Name)
	assert.Equal(t, config.PersistenceSqlite, conf.Persistence.Type)
	assert.Equal(t, "from-file", conf.Tracing.Name)
}

func TestConfigRejectsInvalidConfiguration(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(file, []byte("persistence:\n  type: postgres\n"), 0o600))
	t.Setenv("CONFIG_FILE", file)

	_, _, err := execute(t, "config")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown persistence type "postgres"`)
}
