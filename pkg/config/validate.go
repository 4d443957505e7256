package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Validator applies the policy model to raw parsed tokens: it checks
// object identifiers and attribute values against their declared types,
// resolves attribute cross-references, and materializes declared
// attributes an object does not supply.
type Validator struct {
	policy *Node
}

// NewValidator creates a Validator over a loaded policy tree.
func NewValidator(policy *Node) *Validator {
	return &Validator{policy: policy}
}

// Policy returns the validator's policy tree.
func (v *Validator) Policy() *Node {
	return v.policy
}

// ValidateObj checks an object token against the policy children legal
// under parent. The first policy rule accepting the identifier wins and
// its path is recorded on the token.
func (v *Validator) ValidateObj(tok *Token, parent *Node) error {
	class, id := tok.Key[0], tok.Key[1]
	pattern := append(clonePath(parent.Data().PolicyPath), []string{class, ".*"})
	candidates, err := v.policy.Search(pattern, FilterKind(KindObj))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return policyErrorf("unknown object type %q under %s", class, describeParent(parent))
	}
	var expected []string
	for _, pnode := range candidates {
		d := pnode.Data()
		if d.IDFixed != "" {
			if id == d.IDFixed {
				tok.PolicyPath = pnode.Path()
				return nil
			}
			expected = append(expected, strconv.Quote(d.IDFixed))
			continue
		}
		if norm, verr := validateValue(d.IDType, id, parent.Root()); verr == nil {
			// Keep the normalized form (e.g. lowercased WWNs) so the
			// tree key matches what the live side reports back.
			tok.Key = []string{class, norm}
			tok.PolicyPath = pnode.Path()
			return nil
		}
		expected = append(expected, "%"+d.IDType)
	}
	return policyErrorf("invalid %s identifier %q: expected %s",
		class, id, strings.Join(expected, " or "))
}

// ValidateGroup checks an attribute-group token against the policy.
func (v *Validator) ValidateGroup(tok *Token, parent *Node) error {
	pattern := append(clonePath(parent.Data().PolicyPath), []string{regexp.QuoteMeta(tok.Key[0])})
	candidates, err := v.policy.Search(pattern, FilterKind(KindGroup))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return policyErrorf("unknown attribute group %q under %s", tok.Key[0], describeParent(parent))
	}
	tok.PolicyPath = candidates[0].Path()
	return nil
}

// ValidateAttr checks an attribute token against the policy and
// normalizes its value. A value-less token (declaration only) passes
// unchanged. When the policy knows nothing about the attribute and
// allowNew is set, a permissive raw attribute is synthesized so that
// dumps from live systems with newer attributes than the local policy
// still load.
func (v *Validator) ValidateAttr(tok *Token, parent *Node, allowNew bool) error {
	if len(tok.Key) < 2 {
		return nil
	}
	name, value := tok.Key[0], tok.Key[1]
	pattern := append(clonePath(parent.Data().PolicyPath), []string{regexp.QuoteMeta(name), ".*"})
	candidates, err := v.policy.Search(pattern, FilterKind(KindAttr))
	if err != nil {
		return err
	}

	var lastErr error
	for _, pnode := range candidates {
		rule := pnode.Attr()
		if rule.RefPath != nil {
			if err := resolveRef(rule, parent, value); err != nil {
				lastErr = err
				continue
			}
			tok.ValType = rule.ValType
			tok.Required = true
			tok.PolicyPath = pnode.Path()
			return nil
		}
		norm, verr := validateValue(rule.ValType, value, parent.Root())
		if verr != nil {
			lastErr = verr
			continue
		}
		tok.Key = []string{name, norm}
		tok.ValType = rule.ValType
		tok.ValDefault = rule.Default
		tok.HasDefault = rule.HasDefault
		tok.Required = rule.Required
		if tok.Comment == "" {
			tok.Comment = rule.Comment
		}
		tok.PolicyPath = pnode.Path()
		return nil
	}

	if len(candidates) == 0 {
		if allowNew {
			tok.ValType = "raw"
			tok.ValDefault = value
			tok.HasDefault = true
			tok.Required = false
			return nil
		}
		return policyErrorf("unknown attribute %q under %s", name, describeParent(parent))
	}
	return policyErrorf("invalid value %q for attribute %q: %v", value, name, lastErr)
}

// resolveRef resolves an @(N path...) cross-reference: climb N
// ancestors of the attribute's parent (to the root when N is absent),
// then search the downward path for exactly one node whose identifier
// equals the attribute value.
func resolveRef(rule *AttrData, parent *Node, value string) error {
	base := parent
	if rule.RefUp < 0 {
		base = parent.Root()
	} else {
		for i := 0; i < rule.RefUp && !base.IsRoot(); i++ {
			base = base.Parent()
		}
	}
	found, err := base.Search(rule.RefPath, nil)
	if err != nil {
		return err
	}
	var matches []*Node
	for _, node := range found {
		key := node.Key()
		if len(key) == 2 && key[1] == value {
			matches = append(matches, node)
		}
	}
	switch len(matches) {
	case 0:
		return policyErrorf("reference %q does not resolve under %s", value, describeParent(base))
	case 1:
		return nil
	default:
		return fmt.Errorf("internal error: reference %q is ambiguous (%d matches)", value, len(matches))
	}
}

// AddMissing materializes every policy-declared attribute and group the
// object does not carry, with its default value or NoValue when the
// attribute is required. Afterwards every object holds every declared
// attribute, which keeps diffing uniform.
func (v *Validator) AddMissing(obj *Node) error {
	pnode := v.policy.GetPath(obj.Data().PolicyPath)
	if pnode == nil {
		if obj.Data().PolicyPath == nil {
			return nil
		}
		return fmt.Errorf("internal error: policy path %v does not resolve", obj.Data().PolicyPath)
	}
	return v.addMissing(obj, pnode)
}

func (v *Validator) addMissing(node *Node, pnode *Node) error {
	for _, rule := range pnode.Nodes() {
		switch rule.Kind() {
		case KindAttr:
			name := rule.Key()[0]
			if hasAttrNamed(node, name) {
				continue
			}
			ad := rule.Attr()
			value := NoValue
			if ad.HasDefault {
				value = ad.Default
			}
			attr := &AttrData{
				ValType:    ad.ValType,
				Value:      value,
				Default:    ad.Default,
				HasDefault: ad.HasDefault,
				Required:   ad.Required,
				Comment:    ad.Comment,
				Source:     "policy",
				RefUp:      ad.RefUp,
				RefPath:    clonePath(ad.RefPath),
			}
			if _, err := node.Set([]string{name, value}, KindAttr, NodeData{
				PolicyPath: rule.Path(),
				Attr:       attr,
			}); err != nil {
				return err
			}
		case KindGroup:
			group := node.Cine(rule.Key(), KindGroup, NodeData{PolicyPath: rule.Path()})
			if err := v.addMissing(group, rule); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasAttrNamed(node *Node, name string) bool {
	for _, child := range node.Nodes() {
		if child.Kind() == KindAttr && child.Key()[0] == name {
			return true
		}
	}
	return false
}

func describeParent(n *Node) string {
	if n.IsRoot() {
		return "configuration root"
	}
	return n.PathStr()
}

var (
	bytesRe = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)([kKMGT])?B?$`)
	iqnRe   = regexp.MustCompile(`^iqn\.[0-9]{4}-[0-9]{2}(\.[a-z0-9-]+)+(:[^\s]+)?$`)
	naaRe   = regexp.MustCompile(`^naa\.[0-9a-f]{16}(?:[0-9a-f]{16})?$`)
	globRe  = regexp.MustCompile(`[*?\[\]]`)
)

// validateValue normalizes value against a declared type. Validation is
// pure string work plus tree lookups; it performs no I/O. An unknown
// type name is a policy-file bug, reported as an internal error.
func validateValue(typ, value string, root *Node) (string, error) {
	switch typ {
	case "bool":
		switch strings.ToLower(value) {
		case "yes", "true", "1", "enable":
			return "yes", nil
		case "no", "false", "0", "disable":
			return "no", nil
		}
		return "", fmt.Errorf("not a boolean: %q", value)

	case "bytes":
		m := bytesRe.FindStringSubmatch(value)
		if m == nil {
			return "", fmt.Errorf("not a size: %q (expected e.g. 1MB, 512kB)", value)
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return "", fmt.Errorf("not a size: %q", value)
		}
		unit := strings.ToUpper(m[2])
		return strconv.FormatFloat(f, 'f', 1, 64) + unit + "B", nil

	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("not an integer: %q", value)
		}
		return strconv.Itoa(n), nil

	case "posint":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("not a positive integer: %q", value)
		}
		return strconv.Itoa(n), nil

	case "erl":
		if value == "0" || value == "1" || value == "2" {
			return value, nil
		}
		return "", fmt.Errorf("error recovery level must be 0, 1 or 2, got %q", value)

	case "ipport":
		i := strings.LastIndexByte(value, ':')
		if i < 0 {
			return "", fmt.Errorf("not an address:port pair: %q", value)
		}
		addr := strings.Trim(value[:i], "[]")
		port, err := strconv.Atoi(value[i+1:])
		if err != nil || port < 0 || port > 65535 {
			return "", fmt.Errorf("bad port in %q", value)
		}
		if net.ParseIP(addr) == nil {
			return "", fmt.Errorf("bad IP address in %q", value)
		}
		return value, nil

	case "str":
		if globRe.MatchString(value) {
			return "", fmt.Errorf("string %q must not contain * ? [ ]", value)
		}
		return value, nil

	case "iqn":
		lower := strings.ToLower(value)
		if !iqnRe.MatchString(lower) {
			return "", fmt.Errorf("not an iqn WWN: %q", value)
		}
		return lower, nil

	case "naa":
		lower := strings.ToLower(value)
		if !naaRe.MatchString(lower) {
			return "", fmt.Errorf("not a naa WWN: %q", value)
		}
		return lower, nil

	case "backend":
		plugin, name, ok := strings.Cut(value, ":")
		if !ok {
			return "", fmt.Errorf("backend reference %q must be plugin:disk", value)
		}
		pattern := [][]string{
			{"storage", regexp.QuoteMeta(plugin)},
			{"disk", regexp.QuoteMeta(name)},
		}
		matches, err := root.Search(pattern, nil)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return "", fmt.Errorf("no storage object %s disk %s in configuration", plugin, name)
		}
		return value, nil

	default:
		return "", fmt.Errorf("internal error: unknown value type %q (policy file bug)", typ)
	}
}
