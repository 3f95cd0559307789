package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
)

const (
	sandboxTokenPlaceholder    = "{{ZENODO_SANDBOX_TOKEN}}"
	productionTokenPlaceholder = "{{ZENODO_PRODUCTION_TOKEN}}"
)

const configTemplate = `# Required. Directory holding the files that can be uploaded. A file id is either a
# regular file or a directory whose regular files are uploaded as parts, in name order.
file_directory = "/path/to/files"

# Optional. Use the production Zenodo instance by default instead of the sandbox, default false
production = false

# Optional request timeout in secs for calls to Zenodo, default 60
request_timeout = 60

# Optional log level, default "info"
loglevel = "info"

# Optional bind address of 'gozenodo serve', default "0.0.0.0"
bind_address = "0.0.0.0"

# Optional TCP port of 'gozenodo serve', default 9092
port = 9092

# Required. Username and password that clients of 'gozenodo serve' use to connect
username = "myusername"
password = "mypassword"

[zenodo]
# Personal access tokens, created in Applications -> Personal access tokens.
# An operation fails when the token of the environment it runs against is empty.
sandbox_token = {{ZENODO_SANDBOX_TOKEN}}
production_token = {{ZENODO_PRODUCTION_TOKEN}}
`

// GenerateConfig writes a configuration file holding the given tokens.
// An existing file is kept as <path>.bak.
func GenerateConfig(configPath, sandboxToken, productionToken string) error {
	fmt.Printf("Generating config %s\n", configPath)

	sandbox, err := tomlString(sandboxToken)
	if err != nil {
		return err
	}
	production, err := tomlString(productionToken)
	if err != nil {
		return err
	}

	config := strings.Replace(configTemplate, sandboxTokenPlaceholder, sandbox, 1)
	config = strings.Replace(config, productionTokenPlaceholder, production, 1)

	// Check if config file already exists and back it up
	if _, err := os.Stat(configPath); err == nil {
		backupPath := configPath + ".bak"
		fmt.Printf("Backing up config %s\n", configPath)
		if err := os.Rename(configPath, backupPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Tokens are secrets, keep the file private.
	fmt.Printf("Writing %s\n", configPath)
	if err := os.WriteFile(configPath, []byte(config), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// tomlString returns value as a quoted TOML string.
func tomlString(value string) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]string{"v": value}); err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}
	_, quoted, ok := strings.Cut(strings.TrimSpace(buf.String()), " = ")
	if !ok {
		return "", fmt.Errorf("failed to encode token")
	}
	return quoted, nil
}

// ParseCreator turns "Name" or "Name;Affiliation" into a Creator.
func ParseCreator(value string) (zenodo.Creator, error) {
	name, affiliation, _ := strings.Cut(value, ";")
	name = strings.TrimSpace(name)
	if name == "" {
		return zenodo.Creator{}, fmt.Errorf("creator %q has no name", value)
	}
	return zenodo.Creator{Name: name, Affiliation: strings.TrimSpace(affiliation)}, nil
}

// BuildDepositionRequest assembles deposition metadata from command line values.
func BuildDepositionRequest(title, description, uploadType string, creators []string) (zenodo.DepositionRequest, error) {
	req := zenodo.DepositionRequest{
		Metadata: zenodo.Metadata{
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(description),
			UploadType:  strings.TrimSpace(uploadType),
		},
	}

	for _, value := range creators {
		creator, err := ParseCreator(value)
		if err != nil {
			return zenodo.DepositionRequest{}, err
		}
		req.Metadata.Creators = append(req.Metadata.Creators, creator)
	}

	return req, nil
}

// LoadMetadataFile reads a JSON document to send as deposition metadata
// without interpreting it.
func LoadMetadataFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("metadata file %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
