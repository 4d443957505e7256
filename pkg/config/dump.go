package config

import (
	"strings"
)

// Dump renders the children of root back to configuration-dialect text,
// one statement per top-level subtree. Subtrees with a single visible
// child inline it on one line; subtrees with more wrap their children
// in an indented brace block. Declared-but-unsupplied attributes are
// never rendered; the filter may drop further nodes.
func Dump(root *Node, filter NodeFilter) string {
	var b strings.Builder
	for _, child := range visibleChildren(root, filter) {
		b.WriteString(renderNode(child, filter, 0))
		b.WriteByte('\n')
	}
	return b.String()
}

// DumpNode renders a single subtree, starting with node's own key.
func DumpNode(node *Node, filter NodeFilter) string {
	if node.IsRoot() {
		return Dump(node, filter)
	}
	return renderNode(node, filter, 0) + "\n"
}

func renderNode(n *Node, filter NodeFilter, indent int) string {
	if n.Kind() == KindAttr {
		return n.KeyStr()
	}
	kids := visibleChildren(n, filter)
	switch len(kids) {
	case 0:
		return n.KeyStr()
	case 1:
		return n.KeyStr() + " " + renderNode(kids[0], filter, indent)
	default:
		pad := strings.Repeat("    ", indent)
		var b strings.Builder
		b.WriteString(n.KeyStr())
		b.WriteString(" {\n")
		for _, kid := range kids {
			b.WriteString(pad)
			b.WriteString("    ")
			b.WriteString(renderNode(kid, filter, indent+1))
			b.WriteByte('\n')
		}
		b.WriteString(pad)
		b.WriteString("}")
		return b.String()
	}
}

func visibleChildren(n *Node, filter NodeFilter) []*Node {
	var out []*Node
	for _, child := range n.Nodes() {
		if a := child.Attr(); a != nil && a.Value == NoValue {
			continue
		}
		if applyFilter(filter, child) == nil {
			continue
		}
		out = append(out, child)
	}
	return out
}
