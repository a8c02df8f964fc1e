package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_JSONOffline(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir+"/config")
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"doctor", "--json", "--offline"})

	require.NoError(t, cmd.Execute())

	var out DoctorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Contains(t, []string{"ready", "ready_with_warnings"}, out.Status)

	names := make([]string, 0, len(out.Checks))
	for _, c := range out.Checks {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "write_permissions")
	assert.Contains(t, names, "disk_space")
	assert.Contains(t, names, "store:wiring-regulations")
	// Offline runs skip the Ollama probes.
	assert.NotContains(t, names, "ollama")
}

func TestDoctorCmd_ShowsHelp(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"doctor", "--help"})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "diagnostics")
	assert.Contains(t, buf.String(), "--offline")
}

func TestFormatCheckAge(t *testing.T) {
	assert.Equal(t, "less than 1 hour", formatCheckAge(5*time.Minute))
	assert.Equal(t, "1 hour", formatCheckAge(90*time.Minute))
	assert.Equal(t, "6 hours", formatCheckAge(6*time.Hour))
	assert.Equal(t, "1 day", formatCheckAge(30*time.Hour))
	assert.Equal(t, "3 days", formatCheckAge(80*time.Hour))
}
