package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed policy/*.lio
var defaultPolicyFS embed.FS

// LoadPolicy parses every policy-dialect file (*.lio) in dir and merges
// them into a single policy tree. Files are merged without replacement:
// each file contributes its own branches and cannot overwrite another
// file's rules. When dir is empty or missing, the built-in policy
// shipped with the binary is used.
func LoadPolicy(dir string) (*Node, error) {
	root := NewRoot()
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err == nil {
			var files []string
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".lio") {
					files = append(files, e.Name())
				}
			}
			sort.Strings(files)
			if len(files) > 0 {
				for _, name := range files {
					data, err := os.ReadFile(filepath.Join(dir, name))
					if err != nil {
						return nil, fmt.Errorf("read policy %s: %w", name, err)
					}
					if err := MergePolicyText(root, string(data)); err != nil {
						return nil, fmt.Errorf("policy %s: %w", name, err)
					}
				}
				return root, nil
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read policy dir: %w", err)
		}
	}
	return DefaultPolicy()
}

// DefaultPolicy loads the embedded built-in policy.
func DefaultPolicy() (*Node, error) {
	root := NewRoot()
	entries, err := defaultPolicyFS.ReadDir("policy")
	if err != nil {
		return nil, fmt.Errorf("embedded policy: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := defaultPolicyFS.ReadFile("policy/" + name)
		if err != nil {
			return nil, fmt.Errorf("embedded policy %s: %w", name, err)
		}
		if err := MergePolicyText(root, string(data)); err != nil {
			return nil, fmt.Errorf("embedded policy %s: %w", name, err)
		}
	}
	return root, nil
}

// MergePolicyText parses policy-dialect text and merges its rules into
// the policy tree rooted at root.
func MergePolicyText(root *Node, text string) error {
	stmts, err := ParsePolicyText(text)
	if err != nil {
		return err
	}
	return mergePolicyStatements(root, stmts)
}

func mergePolicyStatements(parent *Node, stmts []Statement) error {
	for _, stmt := range stmts {
		cursor := parent
		for _, tok := range stmt {
			switch tok.Kind {
			case KindObj:
				key := []string{tok.Key[0], tok.Key[1]}
				cursor = cursor.Cine(key, KindObj, NodeData{
					IDFixed: tok.IDFixed,
					IDType:  tok.IDType,
				})
			case KindAttr:
				attr := &AttrData{
					ValType:    tok.ValType,
					Default:    tok.ValDefault,
					HasDefault: tok.HasDefault,
					Required:   tok.Required,
					Comment:    tok.Comment,
					Source:     "policy",
					RefUp:      tok.RefUp,
					RefPath:    tok.RefPath,
				}
				cursor.Cine(tok.Key, KindAttr, NodeData{Attr: attr})
			case KindGroup:
				cursor = cursor.Cine(tok.Key, KindGroup, NodeData{})
			case KindBlock:
				if err := mergePolicyStatements(cursor, tok.Statements); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
