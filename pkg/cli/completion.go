package cli

import (
	"sort"
	"strings"

	"github.com/openlio/liocfg/pkg/cmdtree"
)

// completer implements readline.AutoComplete over the command trees.
type completer struct {
	cli *CLI
}

func (cp *completer) tree() map[string]*cmdtree.Node {
	if cp.cli.configMode {
		return cmdtree.ConfigTopLevel
	}
	return cmdtree.OperationalTree
}

// Do implements tab completion: a single match is inserted, multiple
// matches print aligned candidates above the prompt and insert the
// common prefix.
func (cp *completer) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	words := strings.Fields(text)
	partial := ""
	if len(text) > 0 && text[len(text)-1] != ' ' && len(words) > 0 {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}

	candidates := cmdtree.Complete(cp.tree(), words, partial, cp.cli.store)
	if len(candidates) == 0 {
		return nil, 0
	}
	names := cmdtree.Names(candidates)
	sort.Strings(names)

	if len(names) == 1 {
		suffix := names[0][len(partial):]
		return [][]rune{[]rune(suffix + " ")}, len(partial)
	}

	cmdtree.WriteHelp(cp.cli.rl.Stdout(), candidates)
	suffix := cmdtree.CommonPrefix(names)[len(partial):]
	if suffix == "" {
		return nil, 0
	}
	return [][]rune{[]rune(suffix)}, len(partial)
}

// helpListener makes '?' print contextual help without submitting the
// line, matching the feel of network-device shells.
func (c *CLI) helpListener(line []rune, pos int, key rune) ([]rune, int, bool) {
	if key != '?' || pos < 1 {
		return line, pos, false
	}
	// Strip the '?' that readline already inserted.
	cleanLine := make([]rune, 0, len(line)-1)
	cleanLine = append(cleanLine, line[:pos-1]...)
	cleanLine = append(cleanLine, line[pos:]...)
	text := string(cleanLine[:pos-1])

	tree := cmdtree.OperationalTree
	if c.configMode {
		tree = cmdtree.ConfigTopLevel
	}
	candidates := cmdtree.Complete(tree, strings.Fields(text), "", c.store)
	if len(candidates) == 0 {
		cmdtree.WriteHelp(c.rl.Stdout(), []cmdtree.Candidate{{Name: "<text>", Desc: "No completions"}})
	} else {
		cmdtree.WriteHelp(c.rl.Stdout(), candidates)
	}
	return cleanLine, pos - 1, true
}
