package treex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/molt-dev/molt/core/errors"
	"github.com/molt-dev/molt/core/log"
)

// FileOptions configures a file-backed tree.
type FileOptions struct {
	Format   string        // File format: "json", "yaml", "toml" (default: by extension)
	Interval time.Duration // Polling interval for change detection (default: 1s)
	Logger   log.Logger    // Logger for watch failures (default: discard)
}

// FileTree is a configuration tree backed by a file on disk. The tree is
// loaded eagerly and, once Watch is started, refreshed whenever the
// file's modification time advances. Refreshes merge into the existing
// root so subscriptions held on inner nodes survive reloads.
type FileTree struct {
	path     string
	format   string
	interval time.Duration
	logger   log.Logger
	root     *MapNode
}

// OpenFile loads a configuration file into a tree.
func OpenFile(path string, opts FileOptions) (*FileTree, error) {
	format := opts.Format
	if format == "" {
		format = detectFormat(path)
	}

	interval := opts.Interval
	if interval == 0 {
		interval = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	t := &FileTree{
		path:     path,
		format:   format,
		interval: interval,
		logger:   logger,
		root:     NewTree(),
	}

	if err := t.refresh(); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the tree's root node.
func (t *FileTree) Root() *MapNode {
	return t.root
}

// Watch polls the file for modification-time changes until ctx is done.
// Parse failures leave the current tree in place and are logged.
func (t *FileTree) Watch(ctx context.Context) {
	go func() {
		var lastMod time.Time
		if info, err := os.Stat(t.path); err == nil {
			lastMod = info.ModTime()
		}

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(t.path)
				if err != nil {
					if !os.IsNotExist(err) {
						t.logger.Error(err, "failed to stat configuration file", log.Str("path", t.path))
					}
					continue
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				if err := t.refresh(); err != nil {
					t.logger.Error(err, "failed to reload configuration file", log.Str("path", t.path))
				}
			}
		}
	}()
}

// refresh re-reads and re-parses the file into the existing root.
func (t *FileTree) refresh() error {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return errors.Wrapf(errors.CodeInvalidConfiguration, "treex.refresh", err, "read %s", t.path)
	}

	data, err := parseFile(raw, t.format)
	if err != nil {
		return errors.Wrapf(errors.CodeInvalidConfiguration, "treex.refresh", err, "parse %s as %s", t.path, t.format)
	}

	t.root.Apply(data)
	return nil
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func parseFile(raw []byte, format string) (map[string]any, error) {
	data := map[string]any{}
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	case "toml":
		if err := toml.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	case "json":
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.CodeInvalidArgument, "unsupported format: %s", format)
	}
	return data, nil
}
