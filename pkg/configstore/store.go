// Package configstore implements the configuration engine: a stack of
// configuration-tree snapshots with multi-level undo, policy-validated
// load/set/delete/search/dump/save operations, and the reconciler that
// converges the live target backend to the current tree.
package configstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/openlio/liocfg/pkg/config"
	"github.com/openlio/liocfg/pkg/target"
)

// DefaultSavePath is where Save persists the configuration when no
// path is given.
const DefaultSavePath = "/etc/liocfg/saveconfig.lio"

// ErrNothingToUndo is returned by Undo when only the initial snapshot
// remains.
var ErrNothingToUndo = errors.New("nothing to undo")

// Stats counts engine operations for the metrics collector.
type Stats struct {
	Commits       uint64
	Undos         uint64
	ParseErrors   uint64
	ApplySteps    uint64
	ApplyFailures uint64
}

// Options configures a Store.
type Options struct {
	// PolicyDir holds *.lio policy files; empty or missing falls back
	// to the built-in policy. Ignored when Policy is set.
	PolicyDir string
	// Policy is a pre-loaded policy tree (tests).
	Policy *config.Node
	// Backend is the live target collaborator; nil disables
	// diff-live/apply.
	Backend target.Backend
	// SavePath overrides DefaultSavePath.
	SavePath string
	// HistorySize bounds the commit history ring (default 50).
	HistorySize int
}

// Store owns the snapshot stack. Every successful mutating operation
// validates against a clone and pushes it; a failing operation leaves
// the stack untouched. A Store must be driven by one logical caller;
// the lock only protects concurrent readers (API handlers) against a
// mutating caller.
type Store struct {
	mu        sync.RWMutex
	validator *config.Validator
	stack     []*config.Node
	reference *config.Node
	backend   target.Backend
	history   *History
	savePath  string
	stats     Stats
}

// New creates a Store with a single empty snapshot.
func New(opts Options) (*Store, error) {
	policy := opts.Policy
	if policy == nil {
		var err error
		policy, err = config.LoadPolicy(opts.PolicyDir)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}
	histSize := opts.HistorySize
	if histSize <= 0 {
		histSize = 50
	}
	savePath := opts.SavePath
	if savePath == "" {
		savePath = DefaultSavePath
	}
	return &Store{
		validator: config.NewValidator(policy),
		stack:     []*config.Node{config.NewRoot()},
		backend:   opts.Backend,
		history:   NewHistory(histSize),
		savePath:  savePath,
	}, nil
}

// Policy returns the loaded policy tree.
func (s *Store) Policy() *config.Node {
	return s.validator.Policy()
}

// SavePath returns the configured save path.
func (s *Store) SavePath() string {
	return s.savePath
}

// Stats returns a snapshot of the operation counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// ObjectCounts returns the number of objects per class in the current
// tree.
func (s *Store) ObjectCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, obj := range s.current().Walk(config.FilterKind(config.KindObj)) {
		counts[obj.Key()[0]]++
	}
	return counts
}

// Depth returns the snapshot stack depth.
func (s *Store) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stack)
}

// History returns the commit history.
func (s *Store) History() *History {
	return s.history
}

func (s *Store) current() *config.Node {
	return s.stack[len(s.stack)-1]
}

func (s *Store) push(tree *config.Node, op string) {
	s.stack = append(s.stack, tree)
	s.stats.Commits++
	s.history.Push(op, tree)
}

// Set parses configuration text and merges it into a clone of the
// current tree, pushing the clone on success. Returns the nodes the
// text created or changed.
func (s *Store) Set(text string) ([]*config.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(text, false, "set "+summarize(text))
}

func (s *Store) setLocked(text string, allowNew bool, op string) ([]*config.Node, error) {
	stmts, err := config.ParseText(text)
	if err != nil {
		s.stats.ParseErrors++
		return nil, err
	}
	stage := s.current().Clone()
	nodes, err := s.loadParseTree(stage, stmts, allowNew)
	if err != nil {
		return nil, err
	}
	s.push(stage, op)
	return nodes, nil
}

// Delete parses a search pattern and removes every matching subtree
// from a clone of the current tree, pushing the clone. Returns the
// detached subtrees.
func (s *Store) Delete(pattern string) ([]*config.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pat, err := config.ParsePattern(pattern)
	if err != nil {
		s.stats.ParseErrors++
		return nil, err
	}
	stage := s.current().Clone()
	matches, err := stage.Search(pat, nil)
	if err != nil {
		return nil, err
	}
	for _, node := range matches {
		node.Detach()
	}
	s.push(stage, "delete "+pattern)
	return matches, nil
}

// Load parses a configuration file into a brand-new tree, replacing
// the current configuration entirely.
func (s *Store) Load(path string) ([]*config.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFileLocked(path, true)
}

// Update parses a configuration file and merges it into the current
// tree.
func (s *Store) Update(path string) ([]*config.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFileLocked(path, false)
}

func (s *Store) loadFileLocked(path string, replace bool) ([]*config.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	stmts, err := config.ParseText(string(data))
	if err != nil {
		s.stats.ParseErrors++
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stage := s.current().Clone()
	op := "update " + path
	if replace {
		stage = config.NewRoot()
		op = "load " + path
	}
	nodes, err := s.loadParseTree(stage, stmts, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.push(stage, op)
	return nodes, nil
}

// Restore loads the saved configuration like Load, except that a
// missing file is not an error and leaves the configuration untouched.
func (s *Store) Restore(path string) ([]*config.Node, error) {
	if path == "" {
		path = s.savePath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return s.Load(path)
}

// LoadLive replaces the current configuration with the live backend
// state. Attributes the local policy does not know are accepted as
// raw attributes, since the live system may be newer.
func (s *Store) LoadLive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage, err := s.liveTreeLocked()
	if err != nil {
		return err
	}
	s.push(stage, "load live configuration")
	return nil
}

// Undo pops the snapshot stack, restoring the previous configuration.
func (s *Store) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stack) <= 1 {
		return ErrNothingToUndo
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.stats.Undos++
	return nil
}

// Clear replaces the current configuration with an empty tree.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(config.NewRoot(), "clear")
}

// Search returns the nodes of the current tree matching the pattern,
// passed through filter.
func (s *Store) Search(pattern string, filter config.NodeFilter) ([]*config.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pat, err := config.ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return s.current().Search(pat, filter)
}

// Dump renders the current tree (or the subtrees matching pattern)
// back to configuration text.
func (s *Store) Dump(pattern string, filter config.NodeFilter) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dumpLocked(pattern, filter)
}

func (s *Store) dumpLocked(pattern string, filter config.NodeFilter) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return config.Dump(s.current(), filter), nil
	}
	pat, err := config.ParsePattern(pattern)
	if err != nil {
		return "", err
	}
	matches, err := s.current().Search(pat, filter)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, node := range matches {
		text := config.DumpNode(node, filter)
		if parent := node.Parent(); parent != nil && !parent.IsRoot() {
			text = parent.PathStr() + " " + text
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// Save writes the dump of the current tree (or the matched subtrees)
// to path, defaulting to the configured save path. Declared-but-unset
// attributes are never saved. Returns the written text.
func (s *Store) Save(path, pattern string) (string, error) {
	s.mu.RLock()
	text, err := s.dumpLocked(pattern, config.FilterNoMissing)
	s.mu.RUnlock()
	if err != nil {
		return "", err
	}
	if path == "" {
		path = s.savePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("save configuration: %w", err)
		}
	}
	// Auth secrets may be embedded in the dump.
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		return "", fmt.Errorf("save configuration: %w", err)
	}
	return text, nil
}

// loadParseTree walks parsed statements into the staged tree: objects
// are validated and created if missing, attributes are validated and
// replace any same-named attribute, groups record their policy path,
// blocks recurse. Returns the created or changed nodes.
func (s *Store) loadParseTree(root *config.Node, stmts []config.Statement, allowNew bool) ([]*config.Node, error) {
	var updated []*config.Node
	var loadStmts func(parent *config.Node, stmts []config.Statement) error
	loadStmts = func(parent *config.Node, stmts []config.Statement) error {
		for _, stmt := range stmts {
			cursor := parent
			for _, tok := range stmt {
				switch tok.Kind {
				case config.KindObj:
					if err := s.validator.ValidateObj(tok, cursor); err != nil {
						return err
					}
					node := cursor.Get(tok.Key)
					if node == nil {
						var err error
						node, err = cursor.Set(tok.Key, config.KindObj, config.NodeData{PolicyPath: tok.PolicyPath})
						if err != nil {
							return err
						}
						if err := s.validator.AddMissing(node); err != nil {
							return err
						}
						updated = append(updated, node)
					}
					cursor = node

				case config.KindAttr:
					if err := s.validator.ValidateAttr(tok, cursor, allowNew); err != nil {
						return err
					}
					// Attributes are single-valued: purge any node
					// carrying the same name before inserting, so a
					// re-set replaces rather than accumulates.
					for _, child := range cursor.Nodes() {
						if child.Kind() == config.KindAttr && child.Key()[0] == tok.Key[0] {
							child.Detach()
						}
					}
					attr := &config.AttrData{
						ValType:    tok.ValType,
						Value:      tok.Key[1],
						Default:    tok.ValDefault,
						HasDefault: tok.HasDefault,
						Required:   tok.Required,
						Comment:    tok.Comment,
						Source:     "config",
					}
					node, err := cursor.Set(tok.Key, config.KindAttr, config.NodeData{
						PolicyPath: tok.PolicyPath,
						Attr:       attr,
					})
					if err != nil {
						return err
					}
					updated = append(updated, node)

				case config.KindGroup:
					if err := s.validator.ValidateGroup(tok, cursor); err != nil {
						if !allowNew {
							return err
						}
					}
					cursor = cursor.Cine(tok.Key, config.KindGroup, config.NodeData{PolicyPath: tok.PolicyPath})

				case config.KindBlock:
					if err := loadStmts(cursor, tok.Statements); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := loadStmts(root, stmts); err != nil {
		return nil, err
	}
	return updated, nil
}

// summarize shortens configuration text for history entries.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 60 {
		return text[:57] + "..."
	}
	return text
}
