package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Adapter describes how to launch one language's server. The exact
// argument lists matter for compatibility; the defaults below are the
// built-in set. AltCommand and AltArgs describe the secondary executable
// tried when the primary is not on PATH.
type Adapter struct {
	ID          string   `toml:"id"`
	Extensions  []string `toml:"extensions"`
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	AltCommand  string   `toml:"alt_command"`
	AltArgs     []string `toml:"alt_args"`
	RootMarkers []string `toml:"root_markers"`
}

// BuiltinAdapters returns the default language set.
func BuiltinAdapters() []Adapter {
	return []Adapter{
		{
			ID:          "rust",
			Extensions:  []string{".rs"},
			Command:     "rust-analyzer",
			RootMarkers: []string{"Cargo.toml"},
		},
		{
			ID:          "go",
			Extensions:  []string{".go"},
			Command:     "gopls",
			RootMarkers: []string{"go.mod"},
		},
		{
			ID:          "python",
			Extensions:  []string{".py", ".pyw"},
			Command:     "pylsp",
			AltCommand:  "pyright",
			RootMarkers: []string{"pyproject.toml", "setup.py"},
		},
		{
			ID:          "typescript",
			Extensions:  []string{".ts", ".tsx", ".js", ".jsx"},
			Command:     "tsgo",
			Args:        []string{"--lsp", "--stdio"},
			AltCommand:  "typescript-language-server",
			AltArgs:     []string{"--stdio"},
			RootMarkers: []string{"package.json", "tsconfig.json"},
		},
	}
}

// adapterFile is the TOML shape of a languages.toml override.
type adapterFile struct {
	Languages []Adapter `toml:"languages"`
}

// LoadAdapters returns the built-in adapters merged with any
// languages.toml in the project root. A file entry whose id matches a
// built-in replaces it wholesale; unknown ids append.
func LoadAdapters(projectRoot string) ([]Adapter, error) {
	adapters := BuiltinAdapters()

	tomlPath := filepath.Join(projectRoot, "languages.toml")
	data, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return adapters, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read languages.toml: %w", err)
	}

	var file adapterFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse languages.toml: %w", err)
	}

	for _, override := range file.Languages {
		if override.ID == "" || len(override.Extensions) == 0 || override.Command == "" {
			return nil, fmt.Errorf("languages.toml entry %q needs id, extensions and command", override.ID)
		}
		replaced := false
		for i := range adapters {
			if adapters[i].ID == override.ID {
				adapters[i] = override
				replaced = true
				break
			}
		}
		if !replaced {
			adapters = append(adapters, override)
		}
	}
	return adapters, nil
}

// AdapterForFile resolves the adapter owning a path by extension, or nil.
func AdapterForFile(adapters []Adapter, path string) *Adapter {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	for i := range adapters {
		for _, candidate := range adapters[i].Extensions {
			if candidate == ext {
				return &adapters[i]
			}
		}
	}
	return nil
}

// LanguageForFile returns the language id owning a path, or "".
func LanguageForFile(adapters []Adapter, path string) string {
	if a := AdapterForFile(adapters, path); a != nil {
		return a.ID
	}
	return ""
}
