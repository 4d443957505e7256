package config

// NodeFilter is a pure function deciding whether (and as what) a node
// appears in search, walk and dump output. Returning nil drops the
// node; filters must not mutate their argument.
type NodeFilter func(*Node) *Node

func applyFilter(f NodeFilter, n *Node) *Node {
	if f == nil {
		return n
	}
	return f(n)
}

// FilterChain composes filters left to right, short-circuiting on the
// first nil.
func FilterChain(filters ...NodeFilter) NodeFilter {
	return func(n *Node) *Node {
		for _, f := range filters {
			n = applyFilter(f, n)
			if n == nil {
				return nil
			}
		}
		return n
	}
}

// FilterReverse complements a pass-through filter: nodes it dropped
// pass, nodes it passed are dropped. Only valid for filters that pass
// nodes through unmodified.
func FilterReverse(f NodeFilter) NodeFilter {
	return func(n *Node) *Node {
		if f(n) == nil {
			return n
		}
		return nil
	}
}

// FilterNoDefault drops attribute nodes still holding their declared
// default value.
func FilterNoDefault(n *Node) *Node {
	if a := n.Attr(); a != nil && a.HasDefault && a.Value == a.Default {
		return nil
	}
	return n
}

// FilterNoMissing drops attribute nodes whose value is declared but
// not supplied.
func FilterNoMissing(n *Node) *Node {
	if a := n.Attr(); a != nil && a.Value == NoValue {
		return nil
	}
	return n
}

// FilterOnlyMissing keeps only declared-but-unsupplied attribute nodes.
func FilterOnlyMissing(n *Node) *Node {
	if a := n.Attr(); a != nil && a.Value == NoValue {
		return n
	}
	return nil
}

// FilterOnlyRequired keeps only required attribute nodes.
func FilterOnlyRequired(n *Node) *Node {
	if a := n.Attr(); a != nil && a.Required {
		return n
	}
	return nil
}

// FilterKind keeps only nodes of the given kind.
func FilterKind(kind Kind) NodeFilter {
	return func(n *Node) *Node {
		if n.Kind() == kind {
			return n
		}
		return nil
	}
}
