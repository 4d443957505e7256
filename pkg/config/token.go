package config

import (
	"fmt"
	"strings"
)

// Kind classifies a parsed token or a tree node.
type Kind int

const (
	KindRoot Kind = iota
	KindObj
	KindAttr
	KindGroup
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindObj:
		return "obj"
	case KindAttr:
		return "attr"
	case KindGroup:
		return "group"
	case KindBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Statement is one parsed configuration statement: an ordered token
// sequence, e.g. [obj obj attr] or [obj group block].
type Statement []*Token

// Token is one element of a parsed statement. Obj tokens carry a
// (class, identifier) key, attr tokens a (name, value) key, group tokens
// a (name) key and block tokens the nested statements.
//
// The policy dialect fills in the rule fields: IDFixed/IDType for object
// identifiers, ValType/ValDefault or RefUp/RefPath for attribute values.
type Token struct {
	Kind   Kind
	Key    []string
	Line   int
	Column int

	// Policy dialect payload.
	IDFixed    string   // exact object identifier, "" if typed
	IDType     string   // identifier value type, "" if fixed
	ValType    string   // attribute value type
	ValDefault string   // attribute default value
	HasDefault bool     // false means the attribute is required
	Required   bool     // required iff no default given
	RefUp      int      // ancestors to climb for @(N ...) rules, -1 = root
	RefPath    [][]string // downward search path for @(...) rules
	Comment    string   // trailing # comment

	// PolicyPath is recorded by the validator: the policy-tree path
	// that legitimized this token.
	PolicyPath [][]string

	// Block payload.
	Statements []Statement
}

func (t *Token) String() string {
	if t.Kind == KindBlock {
		return fmt.Sprintf("block(%d statements)", len(t.Statements))
	}
	return fmt.Sprintf("%s(%s)", t.Kind, strings.Join(t.Key, " "))
}

// ParseError reports malformed text in any of the three dialects.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

func parseErrorf(tok LexToken, format string, args ...any) *ParseError {
	return &ParseError{Line: tok.Line, Column: tok.Column, Msg: fmt.Sprintf(format, args...)}
}

// PolicyError reports a configuration statement that violates the policy:
// unknown object class or attribute, wrong value type, or an unresolved
// or ambiguous cross-reference.
type PolicyError struct {
	Msg string
}

func (e *PolicyError) Error() string {
	return e.Msg
}

func policyErrorf(format string, args ...any) *PolicyError {
	return &PolicyError{Msg: fmt.Sprintf(format, args...)}
}

// objectClasses is the fixed set of object-class keywords, in creation
// precedence order: storage objects must be listed and created before the
// fabric objects that reference them.
var objectClasses = []string{
	"storage", "disk", "fabric", "target", "tpgt",
	"lun", "acl", "portal", "mapped_lun",
}

var objectClassRank = func() map[string]int {
	m := make(map[string]int, len(objectClasses))
	for i, c := range objectClasses {
		m[c] = i
	}
	return m
}()

// IsObjectClass reports whether word is an object-class keyword.
func IsObjectClass(word string) bool {
	_, ok := objectClassRank[word]
	return ok
}

// ClassRank returns the creation-precedence rank of an object class;
// unknown classes sort last.
func ClassRank(class string) int {
	if r, ok := objectClassRank[class]; ok {
		return r
	}
	return len(objectClasses)
}

// ComparePaths orders object paths in tree creation order: element by
// element, class precedence first, then identifier; shorter paths
// (parents) come before longer ones (children).
func ComparePaths(a, b [][]string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ra, rb := ClassRank(a[i][0]), ClassRank(b[i][0])
		if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		if c := strings.Compare(keyID(a[i]), keyID(b[i])); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
