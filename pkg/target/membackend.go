package target

import (
	"sync"

	"github.com/openlio/liocfg/pkg/config"
)

// MemBackend is an in-memory Backend holding the live tree as a plain
// configuration tree. It backs config-only mode (no kernel target
// subsystem present) and the test suite.
type MemBackend struct {
	mu   sync.RWMutex
	tree *config.Node

	// FailOn, when non-empty, makes the next operation whose object
	// path renders to this string fail. Tests use it to exercise
	// partial-apply semantics.
	FailOn string
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{tree: config.NewRoot()}
}

func (m *MemBackend) failing(path []ObjRef) bool {
	return m.FailOn != "" && formatPath(path) == m.FailOn
}

func (m *MemBackend) resolve(path []ObjRef) *config.Node {
	cur := m.tree
	for _, ref := range path {
		cur = cur.Get([]string{ref.Class, ref.ID})
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ListObjects implements Backend.
func (m *MemBackend) ListObjects(parent []ObjRef, class string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node := m.resolve(parent)
	if node == nil {
		return nil, pathError("list", parent)
	}
	var ids []string
	for _, child := range node.Nodes() {
		if child.Kind() == config.KindObj && child.Key()[0] == class {
			ids = append(ids, child.Key()[1])
		}
	}
	return ids, nil
}

// CreateObject implements Backend. Missing intermediate objects are
// created; attributes replace any previous value.
func (m *MemBackend) CreateObject(path []ObjRef, attrs []Attr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing(path) {
		return pathError("create", path)
	}
	cur := m.tree
	for _, ref := range path {
		cur = cur.Cine([]string{ref.Class, ref.ID}, config.KindObj, config.NodeData{})
	}
	for _, attr := range attrs {
		holder := cur
		if attr.Group != "" {
			holder = cur.Cine([]string{attr.Group}, config.KindGroup, config.NodeData{})
		}
		setAttr(holder, attr.Name, attr.Value)
	}
	return nil
}

// DeleteObject implements Backend. Deleting a missing object is a
// no-op.
func (m *MemBackend) DeleteObject(path []ObjRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing(path) {
		return pathError("delete", path)
	}
	if node := m.resolve(path); node != nil {
		node.Detach()
	}
	return nil
}

// GetAttr implements Backend.
func (m *MemBackend) GetAttr(path []ObjRef, group, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node := m.resolve(path)
	if node == nil {
		return "", pathError("get", path)
	}
	if group != "" {
		node = node.Get([]string{group})
		if node == nil {
			return "", pathError("get", path)
		}
	}
	for _, child := range node.Nodes() {
		if child.Kind() == config.KindAttr && child.Key()[0] == name {
			return child.Key()[1], nil
		}
	}
	return "", pathError("get", path)
}

// SetAttr implements Backend.
func (m *MemBackend) SetAttr(path []ObjRef, group, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.resolve(path)
	if node == nil {
		return pathError("set", path)
	}
	if group != "" {
		node = node.Cine([]string{group}, config.KindGroup, config.NodeData{})
	}
	setAttr(node, name, value)
	return nil
}

// Clear implements Backend.
func (m *MemBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tree = config.NewRoot()
	return nil
}

// DumpText implements Backend.
func (m *MemBackend) DumpText() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return config.Dump(m.tree, nil), nil
}

// setAttr replaces any attribute named name under node. Attributes are
// single-valued: the key encodes the value, so a change is delete+add.
func setAttr(node *config.Node, name, value string) {
	for _, child := range node.Nodes() {
		if child.Kind() == config.KindAttr && child.Key()[0] == name {
			child.Detach()
		}
	}
	node.Cine([]string{name, value}, config.KindAttr, config.NodeData{
		Attr: &config.AttrData{Value: value, Source: "live"},
	})
}
