package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readConfig(t *testing.T, path string) map[string]any {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded map[string]any
	require.NoError(t, json.Unmarshal(content, &loaded))
	return loaded
}

func TestSetupCmd_Run(t *testing.T) {
	t.Run("SetupQwenLocal", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Chdir(tmpDir)

		cmd := &SetupCmd{Qwen: true, Local: true, Format: "json", Watch: true}
		require.NoError(t, cmd.Run())

		config := readConfig(t, filepath.Join(tmpDir, ".qwen", "mcp.json"))
		assert.Contains(t, config, "mcpServers")
	})

	t.Run("SetupQwenGlobal", func(t *testing.T) {
		tmpHome := t.TempDir()
		t.Setenv("HOME", tmpHome)

		cmd := &SetupCmd{Qwen: true, Global: true, Format: "json"}
		require.NoError(t, cmd.Run())

		_, err := os.Stat(filepath.Join(tmpHome, ".qwen", "global", "mcp.json"))
		assert.NoError(t, err)
	})

	t.Run("SetupClaudeDefaultsToLocal", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Chdir(tmpDir)

		cmd := &SetupCmd{Claude: true, Format: "json"}
		require.NoError(t, cmd.Run())
		assert.True(t, cmd.Local)

		_, err := os.Stat(filepath.Join(tmpDir, ".claude", "mcp.json"))
		assert.NoError(t, err)
	})

	t.Run("SetupCursorCustomPath", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "custom")

		cmd := &SetupCmd{Cursor: true, Local: true, Format: "text", FilePath: dir}
		require.NoError(t, cmd.Run())

		content, err := os.ReadFile(filepath.Join(dir, "mcp.json"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "# MCP configuration for axon-metrics")
		assert.Contains(t, string(content), `mcpServers: {"axon-metrics"`)
	})

	t.Run("SetupClaudeCustomPath", func(t *testing.T) {
		dir := t.TempDir()

		cmd := &SetupCmd{Claude: true, Local: true, Format: "json", FilePath: dir}
		require.NoError(t, cmd.Run())

		readConfig(t, filepath.Join(dir, "settings.json"))
	})

	t.Run("SetupDefault", func(t *testing.T) {
		// When no specific client is specified, should output to stdout
		cmd := &SetupCmd{Format: "json"}
		assert.NoError(t, cmd.Run())
	})
}

func TestMCPConfigGeneration(t *testing.T) {
	t.Parallel()

	t.Run("WithWatch", func(t *testing.T) {
		config := generateMCPConfig(true)

		mcpServers := config["mcpServers"].(map[string]any)
		require.Contains(t, mcpServers, "axon-metrics")

		server := mcpServers["axon-metrics"].(map[string]any)
		assert.Equal(t, "axon-metrics", server["command"])
		assert.Equal(t, []string{"serve", "--watch"}, server["args"])
	})

	t.Run("WithoutWatch", func(t *testing.T) {
		server := generateMCPConfig(false)["mcpServers"].(map[string]any)["axon-metrics"].(map[string]any)
		assert.Equal(t, []string{"serve"}, server["args"])
	})
}

func TestConfigPaths(t *testing.T) {
	t.Parallel()

	t.Run("GetLocalConfigPath", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := getLocalConfigPath(tmpDir, "qwen")
		assert.Equal(t, filepath.Join(tmpDir, ".qwen", "mcp.json"), path)
	})

	t.Run("GetClientConfigDir", func(t *testing.T) {
		assert.Equal(t, ".qwen", getClientConfigDir("qwen"))
		assert.Equal(t, ".claude", getClientConfigDir("claude"))
		assert.Equal(t, ".cursor", getClientConfigDir("cursor"))
		assert.Equal(t, ".qwen", getClientConfigDir("other"))
	})
}

func TestWriteConfig(t *testing.T) {
	t.Parallel()

	t.Run("WriteJSONConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		require.NoError(t, writeConfig(configPath, generateMCPConfig(true), "json"))
		assert.Contains(t, readConfig(t, configPath), "mcpServers")
	})

	t.Run("WriteConfigCreatesDirectory", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

		require.NoError(t, writeConfig(configPath, map[string]any{"test": "value"}, "json"))
		_, err := os.Stat(configPath)
		assert.NoError(t, err)
	})
}

func TestSetupCmd_Validation(t *testing.T) {
	t.Parallel()

	t.Run("InvalidFormat", func(t *testing.T) {
		cmd := &SetupCmd{Qwen: true, Format: "invalid"}
		assert.Error(t, cmd.Run())
	})
}
