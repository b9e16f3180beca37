// Package project holds the loaded semantic documents of one project and
// swaps them atomically on reload.
//
// Either document may be absent. Readers take a Snapshot and use it for the
// whole request, so they see the old or the new documents in full, never a mix.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/rules"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
)

// Snapshot is one immutable load of the project documents.
type Snapshot struct {
	// Registry is nil when semantic_model.yml does not exist.
	Registry *semantic.Registry
	// Rules is nil when business_rules.yml does not exist.
	Rules    *rules.RuleSet
	Hash     string
	LoadedAt time.Time
}

// HasModels reports whether the semantic model document was loaded.
func (s *Snapshot) HasModels() bool { return s != nil && s.Registry != nil }

// HasRules reports whether the business rules document was loaded.
func (s *Snapshot) HasRules() bool { return s != nil && s.Rules != nil }

// Models returns the registry or a SpecNotFoundError naming the missing document.
func (s *Snapshot) Models(dir string) (*semantic.Registry, error) {
	if !s.HasModels() {
		return nil, &core.SpecNotFoundError{Document: "semantic model", Path: filepath.Join(dir, core.SemanticModelFile)}
	}
	return s.Registry, nil
}

// BusinessRules returns the rule set or a SpecNotFoundError naming the missing document.
func (s *Snapshot) BusinessRules(dir string) (*rules.RuleSet, error) {
	if !s.HasRules() {
		return nil, &core.SpecNotFoundError{Document: "business rules", Path: filepath.Join(dir, core.BusinessRulesFile)}
	}
	return s.Rules, nil
}

// Context owns the current snapshot of a project's semantics directory.
type Context struct {
	dir      string
	logger   *slog.Logger
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	notifier *Notifier
}

// New creates a context for dir without loading anything.
// A nil logger discards output.
func New(dir string, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Context{dir: dir, logger: logger, notifier: NewNotifier()}
	c.current.Store(&Snapshot{})
	return c
}

// Load creates a context and performs the initial load.
func Load(dir string, logger *slog.Logger) (*Context, error) {
	c := New(dir, logger)
	if _, err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the semantics directory.
func (c *Context) Dir() string { return c.dir }

// Snapshot returns the current snapshot. It is never nil.
func (c *Context) Snapshot() *Snapshot { return c.current.Load() }

// Registry returns the current registry or a SpecNotFoundError.
func (c *Context) Registry() (*semantic.Registry, error) {
	return c.Snapshot().Models(c.dir)
}

// Rules returns the current rule set or a SpecNotFoundError.
func (c *Context) Rules() (*rules.RuleSet, error) {
	return c.Snapshot().BusinessRules(c.dir)
}

// Subscribe returns a channel pinged after every reload that changed the snapshot.
func (c *Context) Subscribe() chan struct{} { return c.notifier.Subscribe() }

// Unsubscribe releases a channel returned by Subscribe.
func (c *Context) Unsubscribe(ch chan struct{}) { c.notifier.Unsubscribe(ch) }

// Reload re-reads both documents and swaps the snapshot when their content
// changed. On error the previous snapshot stays in place.
func (c *Context) Reload() (changed bool, err error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	modelData, err := readOptional(filepath.Join(c.dir, core.SemanticModelFile))
	if err != nil {
		return false, err
	}
	rulesData, err := readOptional(filepath.Join(c.dir, core.BusinessRulesFile))
	if err != nil {
		return false, err
	}

	hash := contentHash(modelData, rulesData)
	prev := c.Snapshot()
	if prev.Hash == hash {
		c.logger.Debug("project unchanged", "dir", c.dir)
		return false, nil
	}

	next := &Snapshot{Hash: hash, LoadedAt: time.Now()}
	if modelData != nil {
		if next.Registry, err = semantic.Load(modelData); err != nil {
			return false, fmt.Errorf("%s: %w", core.SemanticModelFile, err)
		}
	}
	if rulesData != nil {
		if next.Rules, err = rules.Load(rulesData); err != nil {
			return false, fmt.Errorf("%s: %w", core.BusinessRulesFile, err)
		}
	}

	c.current.Store(next)
	c.logger.Info("project loaded",
		"dir", c.dir,
		"models", next.HasModels(),
		"rules", next.HasRules(),
	)
	c.notifier.Broadcast()
	return true, nil
}

// readOptional returns nil data for a missing file.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// contentHash distinguishes a missing document from an empty one.
func contentHash(docs ...[]byte) string {
	h := sha256.New()
	for _, d := range docs {
		if d == nil {
			_, _ = h.Write([]byte{0})
			continue
		}
		_, _ = h.Write([]byte{1})
		_, _ = fmt.Fprintf(h, "%d:", len(d))
		_, _ = h.Write(d)
	}
	return hex.EncodeToString(h.Sum(nil))
}
