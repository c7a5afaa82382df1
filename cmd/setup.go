package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Custom directory for the local configuration"`
	Watch    bool   `default:"true" negatable:"" help:"Configure the server to re-analyze on changes"`
}

// mcpClient describes where an MCP client looks for its configuration.
type mcpClient struct {
	name      string
	title     string
	configDir string
	localFile string
}

var mcpClients = []mcpClient{
	{name: "qwen", title: "Qwen", configDir: ".qwen", localFile: "mcp.json"},
	{name: "claude", title: "Claude", configDir: ".claude", localFile: "settings.json"},
	{name: "cursor", title: "Cursor", configDir: ".cursor", localFile: "mcp.json"},
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Format)
	}

	selected := map[string]bool{"qwen": c.Qwen, "claude": c.Claude, "cursor": c.Cursor}
	if !c.Qwen && !c.Claude && !c.Cursor {
		return c.outputDefaultConfig()
	}

	// If neither local nor global is specified, default to local
	if !c.Local && !c.Global {
		c.Local = true
	}

	config := generateMCPConfig(c.Watch)
	for _, client := range mcpClients {
		if !selected[client.name] {
			continue
		}
		if c.Global {
			globalPath := getGlobalConfigPath(client.name)
			if err := writeConfig(globalPath, config, c.Format); err != nil {
				return err
			}
			color.Green("✓ Created global %s MCP config at %s", client.title, globalPath)
		}
		if c.Local {
			localPath := getLocalConfigPath(".", client.name)
			if c.FilePath != "" {
				localPath = filepath.Join(c.FilePath, client.localFile)
			}
			if err := writeConfig(localPath, config, c.Format); err != nil {
				return err
			}
			color.Green("✓ Created local %s MCP config at %s", client.title, localPath)
		}
	}
	return nil
}

func (c *SetupCmd) outputDefaultConfig() error {
	content, err := renderConfig(generateMCPConfig(c.Watch), c.Format)
	if err != nil {
		return err
	}
	if c.Format == "text" {
		fmt.Println("# Add this to your MCP client configuration:")
		fmt.Println()
	}
	fmt.Print(string(content))
	return nil
}

// Configuration generators

func generateMCPConfig(watch bool) map[string]any {
	args := []string{"serve"}
	if watch {
		args = append(args, "--watch")
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"axon-metrics": map[string]any{
				"command": "axon-metrics",
				"args":    args,
			},
		},
	}
}

// Path helpers

func getLocalConfigPath(basePath, client string) string {
	return filepath.Join(basePath, getClientConfigDir(client), "mcp.json")
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return filepath.Join(homeDir, getClientConfigDir(client), "global", "mcp.json")
}

func getClientConfigDir(client string) string {
	for _, c := range mcpClients {
		if c.name == client {
			return c.configDir
		}
	}
	return mcpClients[0].configDir
}

// Config writers

func renderConfig(config map[string]any, format string) ([]byte, error) {
	if format == "json" {
		content, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(content, '\n'), nil
	}

	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("# MCP configuration for axon-metrics\n")
	sb.WriteString("# Generated by axon-metrics setup\n\n")
	for _, k := range keys {
		value, err := json.Marshal(config[k])
		if err != nil {
			return nil, fmt.Errorf("marshaling %s: %w", k, err)
		}
		fmt.Fprintf(&sb, "%s: %s\n", k, value)
	}
	return []byte(sb.String()), nil
}

func writeConfig(configPath string, config map[string]any, format string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	content, err := renderConfig(config, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
