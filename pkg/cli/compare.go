package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/openlio/liocfg/pkg/config"
)

// showCompare prints a line diff between the live target configuration
// and the current tree: what apply would have to change.
func (c *CLI) showCompare() error {
	live, err := c.store.LiveDump()
	if err != nil {
		return err
	}
	current, err := c.store.Dump("", config.FilterNoMissing)
	if err != nil {
		return err
	}
	out := renderLineDiff(live, current, isatty.IsTerminal(os.Stdout.Fd()))
	if out == "" {
		fmt.Println("configuration matches the live target")
		return nil
	}
	fmt.Print(out)
	return nil
}

// renderLineDiff produces a unified-style line diff, coloring
// insertions green and deletions red when colorize is set. Unchanged
// regions are elided down to their line count.
func renderLineDiff(old, new string, colorize bool) string {
	dmp := diffmatchpatch.New()
	oldChars, newChars, lineIndex := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineIndex)

	addLine := color.New(color.FgGreen).SprintfFunc()
	delLine := color.New(color.FgRed).SprintfFunc()
	if !colorize {
		addLine = fmt.Sprintf
		delLine = fmt.Sprintf
	}

	var sb strings.Builder
	changed := false
	for _, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			changed = true
			for _, line := range lines {
				sb.WriteString(addLine("+ %s\n", line))
			}
		case diffmatchpatch.DiffDelete:
			changed = true
			for _, line := range lines {
				sb.WriteString(delLine("- %s\n", line))
			}
		case diffmatchpatch.DiffEqual:
			if d.Text != "" {
				fmt.Fprintf(&sb, "  [%d unchanged lines]\n", len(lines))
			}
		}
	}
	if !changed {
		return ""
	}
	return sb.String()
}
