package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// NoValue marks an attribute that the policy declares but the
// configuration has not supplied. It is distinct from an empty string
// and can never be produced by the lexer.
const NoValue = "\x00(undefined)\x00"

// AttrData is the attribute payload of a Node.
type AttrData struct {
	ValType    string // declared value type name
	Value      string // normalized value, NoValue if unset
	Default    string
	HasDefault bool
	Required   bool
	Comment    string
	Source     string     // provenance: "config", "policy", "live"
	RefUp      int        // @(N ...) rules: ancestors to climb, -1 = root
	RefPath    [][]string // @(N ...) rules: downward search path
}

// NodeData is the kind-specific payload of a Node. PolicyPath is the
// chain of policy-tree keys that validated the node; IDFixed/IDType are
// set on policy-tree object nodes; Attr is set on attribute nodes.
type NodeData struct {
	PolicyPath [][]string
	IDFixed    string
	IDType     string
	Attr       *AttrData
}

func (d NodeData) clone() NodeData {
	out := d
	out.PolicyPath = clonePath(d.PolicyPath)
	if d.Attr != nil {
		attr := *d.Attr
		attr.RefPath = clonePath(d.Attr.RefPath)
		out.Attr = &attr
	}
	return out
}

func clonePath(path [][]string) [][]string {
	if path == nil {
		return nil
	}
	out := make([][]string, len(path))
	for i, key := range path {
		out[i] = append([]string(nil), key...)
	}
	return out
}

// Node is one element of a configuration or policy tree: the root, an
// object, an attribute, or an attribute group. A node's key is unique
// among its siblings; the chain of keys from the root uniquely
// identifies it within one tree. The parent pointer is non-owning; a
// parent exclusively owns its children.
type Node struct {
	key      []string
	kind     Kind
	data     NodeData
	parent   *Node
	children map[string]*Node
}

// NewRoot creates an empty tree.
func NewRoot() *Node {
	return &Node{kind: KindRoot, children: make(map[string]*Node)}
}

func keyID(key []string) string {
	return strings.Join(key, "\x00")
}

// Key returns the node's key tuple. Callers must not modify it.
func (n *Node) Key() []string { return n.key }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Data returns the node's payload.
func (n *Node) Data() NodeData { return n.data }

// SetData replaces the node's payload.
func (n *Node) SetData(data NodeData) { n.data = data }

// Attr returns the attribute payload, nil for non-attribute nodes.
func (n *Node) Attr() *AttrData { return n.data.Attr }

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether the node is a tree root.
func (n *Node) IsRoot() bool { return n.parent == nil }

// Root returns the root of the tree containing n.
func (n *Node) Root() *Node {
	for !n.IsRoot() {
		n = n.parent
	}
	return n
}

// Get returns the child with the given key, or nil.
func (n *Node) Get(key []string) *Node {
	return n.children[keyID(key)]
}

// Set creates a child with the given key. It fails if the key exists.
func (n *Node) Set(key []string, kind Kind, data NodeData) (*Node, error) {
	id := keyID(key)
	if _, ok := n.children[id]; ok {
		return nil, fmt.Errorf("node %s already exists under %s", formatKey(key), n.PathStr())
	}
	child := &Node{
		key:      append([]string(nil), key...),
		kind:     kind,
		data:     data,
		parent:   n,
		children: make(map[string]*Node),
	}
	n.children[id] = child
	return child, nil
}

// Cine creates the child if missing, else returns the existing child
// unmodified (create-if-not-exists).
func (n *Node) Cine(key []string, kind Kind, data NodeData) *Node {
	if existing := n.Get(key); existing != nil {
		return existing
	}
	child, _ := n.Set(key, kind, data)
	return child
}

// Update replaces the payload of an existing child, or creates it.
// Children of an existing node are preserved.
func (n *Node) Update(key []string, kind Kind, data NodeData) *Node {
	if existing := n.Get(key); existing != nil {
		existing.kind = kind
		existing.data = data
		return existing
	}
	child, _ := n.Set(key, kind, data)
	return child
}

// Delete detaches and returns the subtree at the given path below n,
// or nil if the path does not resolve.
func (n *Node) Delete(path [][]string) *Node {
	node := n.GetPath(path)
	if node == nil || node.IsRoot() {
		return nil
	}
	node.Detach()
	return node
}

// Detach removes n from its parent. Detaching the root is a no-op.
func (n *Node) Detach() {
	if n.parent == nil {
		return
	}
	delete(n.parent.children, keyID(n.key))
	n.parent = nil
}

// GetPath resolves a chain of keys below n, nil on a miss.
func (n *Node) GetPath(path [][]string) *Node {
	cur := n
	for _, key := range path {
		cur = cur.Get(key)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Path returns the chain of keys from the root down to n. The root
// contributes nothing.
func (n *Node) Path() [][]string {
	if n.IsRoot() {
		return nil
	}
	return append(n.parent.Path(), n.key)
}

// KeyStr renders the node's key in configuration syntax, quoting
// values that would not survive re-parsing as a bare word.
func (n *Node) KeyStr() string {
	return formatKey(n.key)
}

// PathStr renders the full path in configuration syntax.
func (n *Node) PathStr() string {
	if n.IsRoot() {
		return "(root)"
	}
	parts := make([]string, 0, 4)
	for _, key := range n.Path() {
		parts = append(parts, formatKey(key))
	}
	return strings.Join(parts, " ")
}

func formatKey(key []string) string {
	parts := make([]string, len(key))
	for i, item := range key {
		parts[i] = quoteWord(item)
	}
	return strings.Join(parts, " ")
}

// quoteWord quotes a key item when it contains characters that the
// lexer would not accept in a bare word.
func quoteWord(word string) string {
	if word == NoValue {
		return "<undefined>"
	}
	if word == "" {
		return `""`
	}
	for i := 0; i < len(word); i++ {
		if !isWordChar(word[i]) {
			escaped := strings.ReplaceAll(word, `\`, `\\`)
			escaped = strings.ReplaceAll(escaped, `"`, `\"`)
			return `"` + escaped + `"`
		}
	}
	return word
}

// Nodes returns the node's children in deterministic order: attributes
// first, then groups, then objects in class precedence order, so that
// objects other nodes may reference are listed and created first.
func (n *Node) Nodes() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, child := range n.children {
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool {
		return nodeLess(out[i], out[j])
	})
	return out
}

func nodeLess(a, b *Node) bool {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return ra < rb
	}
	return keyID(a.key) < keyID(b.key)
}

func kindRank(n *Node) int {
	switch n.kind {
	case KindAttr:
		return 0
	case KindGroup:
		return 1
	case KindObj:
		if rank, ok := objectClassRank[n.key[0]]; ok {
			return 2 + rank
		}
		return 2 + len(objectClasses)
	default:
		return 2 + len(objectClasses) + 1
	}
}

// Clone returns a deep, independent copy of n and all descendants.
// The clone is a root; it shares no mutable state with the original.
func (n *Node) Clone() *Node {
	clone := &Node{
		key:      append([]string(nil), n.key...),
		kind:     n.kind,
		data:     n.data.clone(),
		children: make(map[string]*Node, len(n.children)),
	}
	for id, child := range n.children {
		cc := child.Clone()
		cc.parent = clone
		clone.children[id] = cc
	}
	return clone
}

// Walk returns all descendants of n in depth-first pre-order. The
// filter may drop a node from the result without pruning its children.
func (n *Node) Walk(filter NodeFilter) []*Node {
	var out []*Node
	var walk func(node *Node)
	walk = func(node *Node) {
		for _, child := range node.Nodes() {
			if filtered := applyFilter(filter, child); filtered != nil {
				out = append(out, filtered)
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

// Search returns the descendants matching the pattern, one pattern
// element per tree level, filtered through filter. Each pattern item is
// a regular expression implicitly anchored at both ends; a pattern
// element of length n matches keys of length n, except that a single
// item also matches two-element keys on the first item (so a bare
// attribute name finds the attribute regardless of its value).
func (n *Node) Search(pattern [][]string, filter NodeFilter) ([]*Node, error) {
	compiled, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	var out []*Node
	var search func(node *Node, depth int)
	search = func(node *Node, depth int) {
		for _, child := range node.Nodes() {
			if !matchKey(compiled[depth], child.key) {
				continue
			}
			if depth == len(compiled)-1 {
				if filtered := applyFilter(filter, child); filtered != nil {
					out = append(out, filtered)
				}
				continue
			}
			search(child, depth+1)
		}
	}
	if len(compiled) > 0 {
		search(n, 0)
	}
	return out, nil
}

func compilePattern(pattern [][]string) ([][]*regexp.Regexp, error) {
	compiled := make([][]*regexp.Regexp, len(pattern))
	for i, key := range pattern {
		compiled[i] = make([]*regexp.Regexp, len(key))
		for j, item := range key {
			expr := item
			if !strings.HasSuffix(expr, "$") {
				expr += "$"
			}
			re, err := regexp.Compile("^(?:" + expr + ")")
			if err != nil {
				return nil, &ParseError{Msg: fmt.Sprintf("bad pattern %q: %v", item, err)}
			}
			compiled[i][j] = re
		}
	}
	return compiled, nil
}

func matchKey(pattern []*regexp.Regexp, key []string) bool {
	switch {
	case len(pattern) == len(key):
		for i, re := range pattern {
			if !re.MatchString(key[i]) {
				return false
			}
		}
		return true
	case len(pattern) == 1 && len(key) == 2:
		return pattern[0].MatchString(key[0])
	default:
		return false
	}
}
