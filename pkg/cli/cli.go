// Package cli implements the interactive shell for liocfg.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/openlio/liocfg/pkg/cmdtree"
	"github.com/openlio/liocfg/pkg/config"
	"github.com/openlio/liocfg/pkg/configstore"
	"github.com/openlio/liocfg/pkg/logging"
)

// Version is the software version reported by show version.
var Version = "dev"

// CLI is the interactive command-line interface.
type CLI struct {
	rl         *readline.Instance
	store      *configstore.Store
	eventBuf   *logging.EventBuffer
	hostname   string
	username   string
	configMode bool
}

// New creates a new CLI.
func New(store *configstore.Store, eventBuf *logging.EventBuffer) *CLI {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "liocfg"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}
	return &CLI{
		store:    store,
		eventBuf: eventBuf,
		hostname: hostname,
		username: username,
	}
}

func (c *CLI) operationalPrompt() string {
	return fmt.Sprintf("%s@%s> ", c.username, c.hostname)
}

func (c *CLI) configPrompt() string {
	return fmt.Sprintf("%s@%s# ", c.username, c.hostname)
}

// Run starts the interactive CLI loop.
func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.operationalPrompt(),
		HistoryFile:     "/tmp/liocfg_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &completer{cli: c},
		Listener:        readline.FuncListener(c.helpListener),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()

	fmt.Println("liocfg - declarative SCSI target configuration")
	fmt.Println("Type '?' for help")
	fmt.Println()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.dispatch(line); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return nil
}

var errExit = fmt.Errorf("exit")

func (c *CLI) dispatch(line string) error {
	if c.configMode {
		return c.dispatchConfig(line)
	}
	return c.dispatchOperational(line)
}

func (c *CLI) dispatchOperational(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "configure":
		c.configMode = true
		c.rl.SetPrompt(c.configPrompt())
		fmt.Println("Entering configuration mode")
		return nil

	case "show":
		return c.handleShow(parts[1:])

	case "apply":
		return c.handleApply(parts[1:])

	case "save":
		return c.handleSave(parts[1:])

	case "restore":
		nodes, err := c.store.Restore("")
		if err != nil {
			return err
		}
		if nodes == nil {
			fmt.Println("no saved configuration")
			return nil
		}
		fmt.Printf("restored %d nodes from %s\n", len(nodes), c.store.SavePath())
		return nil

	case "clear":
		c.store.Clear()
		fmt.Println("configuration cleared")
		return nil

	case "quit", "exit":
		return errExit

	case "?", "help":
		cmdtree.WriteHelp(c.rl.Stdout(), helpCandidates(cmdtree.OperationalTree))
		return nil

	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (c *CLI) dispatchConfig(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "set":
		if len(parts) < 2 {
			return fmt.Errorf("set: missing statement")
		}
		nodes, err := c.store.Set(strings.Join(parts[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("set %d nodes\n", len(nodes))
		return nil

	case "delete":
		if len(parts) < 2 {
			return fmt.Errorf("delete: missing pattern")
		}
		nodes, err := c.store.Delete(strings.Join(parts[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d nodes\n", len(nodes))
		return nil

	case "load":
		if len(parts) != 2 {
			return fmt.Errorf("load: expected one file path")
		}
		nodes, err := c.store.Load(parts[1])
		if err != nil {
			return err
		}
		fmt.Printf("loaded %d nodes\n", len(nodes))
		return nil

	case "update":
		if len(parts) != 2 {
			return fmt.Errorf("update: expected one file path")
		}
		nodes, err := c.store.Update(parts[1])
		if err != nil {
			return err
		}
		fmt.Printf("updated %d nodes\n", len(nodes))
		return nil

	case "show":
		return c.handleConfigShow(parts[1:])

	case "compare":
		return c.showCompare()

	case "undo":
		if err := c.store.Undo(); err != nil {
			return err
		}
		fmt.Println("configuration rolled back")
		return nil

	case "save":
		return c.handleSave(parts[1:])

	case "apply":
		return c.handleApply(parts[1:])

	case "verify":
		c.printVerify()
		return nil

	case "run":
		if len(parts) < 2 {
			return fmt.Errorf("run: missing command")
		}
		return c.dispatchOperational(strings.Join(parts[1:], " "))

	case "exit", "quit":
		c.configMode = false
		c.rl.SetPrompt(c.operationalPrompt())
		fmt.Println("Exiting configuration mode")
		return nil

	case "?", "help":
		cmdtree.WriteHelp(c.rl.Stdout(), helpCandidates(cmdtree.ConfigTopLevel))
		return nil

	default:
		return fmt.Errorf("unknown command: %s (in configuration mode)", parts[0])
	}
}

func (c *CLI) handleShow(args []string) error {
	if len(args) == 0 {
		cmdtree.WriteHelp(c.rl.Stdout(), helpCandidates(cmdtree.OperationalTree["show"].Children))
		return nil
	}

	switch args[0] {
	case "configuration":
		text, err := c.store.Dump(strings.Join(args[1:], " "), nil)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil

	case "history":
		for _, e := range c.store.History().List() {
			fmt.Printf("%s  %s  %s\n", e.Time.Format("2006-01-02 15:04:05"), e.ID[:8], e.Op)
		}
		return nil

	case "log":
		n := 20
		if len(args) >= 2 {
			if v, err := strconv.Atoi(args[1]); err == nil && v > 0 {
				n = v
			}
		}
		if c.eventBuf == nil {
			fmt.Println("no log buffer")
			return nil
		}
		records := c.eventBuf.Latest(n)
		for i := len(records) - 1; i >= 0; i-- {
			rec := records[i]
			fmt.Printf("%s %-5s %s %s\n", rec.Time.Format("15:04:05"), rec.Level, rec.Msg, rec.Attrs)
		}
		return nil

	case "diff":
		diff, err := c.store.DiffLive()
		if err != nil {
			return err
		}
		c.printDiff(diff)
		return nil

	case "verify":
		c.printVerify()
		return nil

	case "status":
		stats := c.store.Stats()
		fmt.Printf("Snapshot depth:  %d\n", c.store.Depth())
		fmt.Printf("Commits:         %d\n", stats.Commits)
		fmt.Printf("Undos:           %d\n", stats.Undos)
		fmt.Printf("Parse errors:    %d\n", stats.ParseErrors)
		fmt.Printf("Apply steps:     %d\n", stats.ApplySteps)
		fmt.Printf("Apply failures:  %d\n", stats.ApplyFailures)
		for class, count := range c.store.ObjectCounts() {
			fmt.Printf("Objects (%s): %d\n", class, count)
		}
		return nil

	case "policy":
		fmt.Print(config.Dump(c.store.Policy(), nil))
		return nil

	case "version":
		fmt.Printf("liocfg %s\n", Version)
		return nil

	default:
		return fmt.Errorf("unknown show target: %s", args[0])
	}
}

func (c *CLI) handleConfigShow(args []string) error {
	line := strings.Join(args, " ")
	if strings.Contains(line, "| compare") {
		return c.showCompare()
	}
	text, err := c.store.Dump(line, nil)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func (c *CLI) handleApply(args []string) error {
	force := len(args) > 0 && args[0] == "force"
	applier, err := c.store.Apply(force)
	if err != nil {
		return err
	}
	for {
		desc, ok, err := applier.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Printf("  %s\n", desc)
	}
	fmt.Println("apply complete")
	return nil
}

func (c *CLI) handleSave(args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := c.store.Save(path, ""); err != nil {
		return err
	}
	if path == "" {
		path = c.store.SavePath()
	}
	fmt.Printf("configuration saved to %s\n", path)
	return nil
}

func (c *CLI) printDiff(diff *configstore.Diff) {
	section := func(title string, nodes []*config.Node) {
		if len(nodes) == 0 {
			return
		}
		fmt.Printf("%s:\n", title)
		for _, node := range nodes {
			fmt.Printf("  %s\n", node.PathStr())
		}
	}
	if diff.Empty() {
		fmt.Println("configuration matches the live target")
		return
	}
	section("Created", diff.Created)
	section("Removed", diff.Removed)
	section("Major changes", diff.Major)
	section("Minor changes", diff.Minor)
	fmt.Println(diff.Summary())
}

func (c *CLI) printVerify() {
	problems := c.store.Verify()
	if len(problems) == 0 {
		fmt.Println("configuration verified, no problems found")
		return
	}
	for category, items := range problems {
		fmt.Printf("%s:\n", category)
		for _, item := range items {
			fmt.Printf("  %s\n", item)
		}
	}
}

func helpCandidates(tree map[string]*cmdtree.Node) []cmdtree.Candidate {
	candidates := make([]cmdtree.Candidate, 0, len(tree))
	for name, node := range tree {
		candidates = append(candidates, cmdtree.Candidate{Name: name, Desc: node.Desc})
	}
	return candidates
}
