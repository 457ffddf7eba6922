// Package config holds the engine's process-lifetime tunables. These
// are never part of the wire protocol (spec §6) - they only affect how
// fast the watcher polls, how many workers Search spawns, and similar
// knobs - so the defaults below are correct for almost every caller and
// the KDL file is purely an override mechanism.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Config is the engine's tunable set (SPEC_FULL.md §3 EngineConfig).
type Config struct {
	PollInterval    time.Duration
	SearchWorkers   int
	ProgressPercent float64       // emit Progress roughly this often, by % of bytes scanned
	ProgressMaxRate time.Duration // never emit Progress faster than this
	MatchCap        int
}

// Default returns the built-in tunables used when no config file is
// present, or for any field a config file leaves unset.
func Default() *Config {
	return &Config{
		PollInterval:    time.Second,
		SearchWorkers:   runtime.NumCPU(),
		ProgressPercent: 5.0,
		ProgressMaxRate: 100 * time.Millisecond,
		MatchCap:        1000,
	}
}

// Load returns the default Config, overridden by bigline.kdl if it
// exists in the process's working directory. A missing file is not an
// error; a malformed one is.
func Load() (*Config, error) {
	cfg := Default()

	const fileName = "bigline.kdl"
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return cfg, nil
	}

	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}

	if err := applyKDL(cfg, string(content)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	return cfg, nil
}

// ApplyKDLFile overrides cfg in place from KDL source, used by callers
// (e.g. cmd/bigline's --config flag) that name a config file explicitly
// rather than relying on Load's implicit ./bigline.kdl lookup.
func ApplyKDLFile(cfg *Config, content string) error {
	return applyKDL(cfg, content)
}

func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "poll_interval_ms":
			if v, ok := firstIntArg(n); ok {
				cfg.PollInterval = time.Duration(v) * time.Millisecond
			}
		case "search_workers":
			if v, ok := firstIntArg(n); ok && v > 0 {
				cfg.SearchWorkers = v
			}
		case "progress_percent":
			if v, ok := firstFloatArg(n); ok && v > 0 {
				cfg.ProgressPercent = v
			}
		case "progress_max_rate_ms":
			if v, ok := firstIntArg(n); ok && v > 0 {
				cfg.ProgressMaxRate = time.Duration(v) * time.Millisecond
			}
		case "match_cap":
			if v, ok := firstIntArg(n); ok && v > 0 {
				cfg.MatchCap = v
			}
		}
	}
	return nil
}

// ConfigPath resolves bigline.kdl relative to dir, used by callers that
// want to report where a config file would be looked for.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "bigline.kdl")
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

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
