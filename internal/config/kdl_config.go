package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .symgraph.kdl file in
// projectRoot. Returns (nil, nil) when no file exists.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".symgraph.kdl")
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .symgraph.kdl: %w", err)
	}

	cfg, err := parseKDL(projectRoot, string(content))
	if err != nil {
		return nil, err
	}

	// Resolve the root relative to the directory holding the file.
	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	return cfg, nil
}

func parseKDL(projectRoot, content string) (*Config, error) {
	cfg := Default(projectRoot)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "store":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.StorePath = s
					}
				case "include":
					cfg.Index.Include = collectStringArgs(cn)
				case "exclude":
					cfg.Index.Exclude = append(cfg.Index.Exclude, collectStringArgs(cn)...)
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "parallelism":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Parallelism = v
					}
				case "cycle_timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.CycleTimeoutSec = v
					}
				}
			}
		case "lsp":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "pool_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Lsp.PoolSize = v
					}
				case "max_idle_minutes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Lsp.MaxIdleMinutes = v
					}
				case "fallback_only":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Lsp.FallbackOnly = b
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "l1_entries":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.L1Entries = v
					}
				case "l2_max_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.L2MaxBytes = int64(v)
					}
				case "scratch_dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cache.ScratchDir = s
					}
				}
			}
		}
	}
	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
