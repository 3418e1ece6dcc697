package clientconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultPaths lists common locations of MCP client configuration files.
func DefaultPaths(userHome string) []string {
	return []string{
		filepath.Join(userHome, ".cursor", "mcp.json"),
		filepath.Join(".", ".cursor", "mcp.json"),
		filepath.Join(userHome, "Library", "Application Support", "Code", "User", "settings.json"),
		filepath.Join(userHome, ".config", "Code", "User", "settings.json"),
	}
}

// Server is the entry written under mcpServers.
type Server struct {
	Name string
	URL  string
}

// RegisterAll registers server in every existing file of paths and returns
// the files it modified. Per-file failures are logged and skipped.
func RegisterAll(paths []string, server Server, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	var modifiedFiles []string
	for _, path := range paths {
		modified, err := Register(path, server)
		if err != nil {
			logger.Warn("failed to update MCP client config", "path", path, "error", err)
			continue
		}
		if modified {
			modifiedFiles = append(modifiedFiles, path)
		}
	}
	return modifiedFiles
}

// Register points mcpServers.<name>.url at server.URL in a single client
// config file. Missing files are skipped. The original is kept as <path>.bak.
func Register(filePath string, server Server) (bool, error) {
	if server.Name == "" || server.URL == "" {
		return false, errors.New("server name and url are required")
	}

	// Read the file
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil // File doesn't exist, not an error
	}
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	// Parse JSON
	config := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &config); err != nil {
			return false, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	if !upsertServer(config, server) {
		return false, nil // No changes needed
	}

	// Create backup of the original file
	if err := os.WriteFile(filePath+".bak", data, 0o644); err != nil {
		return false, fmt.Errorf("failed to create backup file: %w", err)
	}

	updatedData, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(filePath, updatedData, 0o644); err != nil {
		return false, fmt.Errorf("failed to write modified file: %w", err)
	}

	return true, nil
}

// upsertServer sets config.mcpServers[name].url, keeping any other fields of
// an existing entry. It reports whether anything changed.
func upsertServer(config map[string]interface{}, server Server) bool {
	servers, ok := config["mcpServers"].(map[string]interface{})
	if !ok {
		servers = map[string]interface{}{}
		config["mcpServers"] = servers
	}

	entry, ok := servers[server.Name].(map[string]interface{})
	if !ok {
		servers[server.Name] = map[string]interface{}{"url": server.URL}
		return true
	}

	if url, _ := entry["url"].(string); url == server.URL {
		return false
	}
	entry["url"] = server.URL
	return true
}
