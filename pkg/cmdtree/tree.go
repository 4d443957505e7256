// Package cmdtree defines the canonical CLI command trees for liocfg.
//
// All command names, descriptions, and completion candidates used by
// the interactive shell live here, so tab completion and ? help stay
// in sync with the dispatcher.
package cmdtree

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/openlio/liocfg/pkg/configstore"
)

// Node defines a completion tree node with description, children, and
// optional dynamic values.
type Node struct {
	Desc      string
	Children  map[string]*Node
	DynamicFn func(store *configstore.Store) []string
}

// Candidate holds a command name and its description for display.
type Candidate struct {
	Name string
	Desc string
}

// configuredClasses returns the object classes present in the current
// configuration, for pattern completion.
func configuredClasses(store *configstore.Store) []string {
	if store == nil {
		return nil
	}
	counts := store.ObjectCounts()
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// OperationalTree defines tab completion for operational mode.
var OperationalTree = map[string]*Node{
	"configure": {Desc: "Enter configuration mode"},
	"show": {Desc: "Show information", Children: map[string]*Node{
		"configuration": {Desc: "Show current configuration [pattern]", DynamicFn: configuredClasses},
		"history":       {Desc: "Show committed configuration changes"},
		"log":           {Desc: "Show recent log entries [N]"},
		"diff":          {Desc: "Show differences against the live target"},
		"verify":        {Desc: "Run configuration pre-flight checks"},
		"status":        {Desc: "Show engine status"},
		"policy":        {Desc: "Show the loaded attribute policy"},
		"version":       {Desc: "Show software version"},
	}},
	"apply": {Desc: "Converge the live target to the configuration", Children: map[string]*Node{
		"force": {Desc: "Clear the target and recreate every object"},
	}},
	"save":    {Desc: "Save the configuration [path]"},
	"restore": {Desc: "Load the saved configuration"},
	"clear":   {Desc: "Replace the configuration with an empty one"},
	"quit":    {Desc: "Exit CLI"},
	"exit":    {Desc: "Exit CLI"},
}

// ConfigTopLevel defines tab completion for configuration mode.
var ConfigTopLevel = map[string]*Node{
	"set":     {Desc: "Add configuration statements"},
	"delete":  {Desc: "Delete configuration nodes matching a pattern", DynamicFn: configuredClasses},
	"load":    {Desc: "Replace the configuration from a file"},
	"update":  {Desc: "Merge a configuration file into the current one"},
	"show":    {Desc: "Show configuration [pattern] [| compare]", DynamicFn: configuredClasses},
	"compare": {Desc: "Show the configuration diffed against the live target"},
	"undo":    {Desc: "Undo the last configuration change"},
	"save":    {Desc: "Save the configuration [path]"},
	"apply": {Desc: "Converge the live target to the configuration", Children: map[string]*Node{
		"force": {Desc: "Clear the target and recreate every object"},
	}},
	"verify": {Desc: "Run configuration pre-flight checks"},
	"run":    {Desc: "Run an operational command"},
	"exit":   {Desc: "Exit configuration mode"},
	"quit":   {Desc: "Exit configuration mode"},
}

// Complete walks the tree to find completion candidates for the given
// words and partial. A word not found among static children is treated
// as a dynamic value when its parent supplies DynamicFn.
func Complete(tree map[string]*Node, words []string, partial string, store *configstore.Store) []Candidate {
	current := tree
	var currentNode *Node
	dynamicConsumed := false
	for _, w := range words {
		dynamicConsumed = false
		node, ok := current[w]
		if !ok {
			if currentNode != nil && currentNode.DynamicFn != nil {
				dynamicConsumed = true
				continue
			}
			return nil
		}
		currentNode = node
		if node.Children == nil {
			if node.DynamicFn != nil {
				var candidates []Candidate
				for _, name := range node.DynamicFn(store) {
					if strings.HasPrefix(name, partial) {
						candidates = append(candidates, Candidate{Name: name, Desc: "(configured)"})
					}
				}
				return candidates
			}
			return nil
		}
		current = node.Children
	}

	var candidates []Candidate
	for name, node := range current {
		if strings.HasPrefix(name, partial) {
			candidates = append(candidates, Candidate{Name: name, Desc: node.Desc})
		}
	}
	if !dynamicConsumed && currentNode != nil && currentNode.DynamicFn != nil {
		for _, name := range currentNode.DynamicFn(store) {
			if strings.HasPrefix(name, partial) {
				candidates = append(candidates, Candidate{Name: name, Desc: "(configured)"})
			}
		}
	}
	return candidates
}

// Names extracts the candidate names.
func Names(candidates []Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	return names
}

// WriteHelp prints aligned completion candidates to w. The output is
// built as a single string and written in one call so that readline's
// wrapped writer triggers only one refresh cycle.
func WriteHelp(w io.Writer, candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	maxWidth := 20
	for _, c := range candidates {
		if len(c.Name)+2 > maxWidth {
			maxWidth = len(c.Name) + 2
		}
	}
	var sb strings.Builder
	sb.WriteString("Possible completions:\n")
	for _, c := range candidates {
		if c.Desc != "" {
			fmt.Fprintf(&sb, "  %-*s %s\n", maxWidth, c.Name, c.Desc)
		} else {
			fmt.Fprintf(&sb, "  %s\n", c.Name)
		}
	}
	io.WriteString(w, sb.String())
}

// CommonPrefix returns the longest shared prefix among the given
// strings.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
