// liocfg is the standalone SCSI target configuration tool.
//
// Without arguments it starts the interactive shell. With a
// subcommand it performs one operation and exits, which makes it
// usable from init scripts: "liocfg restore" at boot, "liocfg save"
// before shutdown.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/openlio/liocfg/pkg/cli"
	"github.com/openlio/liocfg/pkg/configstore"
	"github.com/openlio/liocfg/pkg/logging"
	"github.com/openlio/liocfg/pkg/target"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: liocfg [flags] [command]

Commands:
  (none)    start the interactive shell
  dump      print the current configuration
  save      save the configuration to the save file
  restore   load the saved configuration (a missing file is not an error)
  clear     clear the configuration
  verify    run configuration pre-flight checks
  version   print version

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	saveFile := flag.String("save", configstore.DefaultSavePath, "saved configuration path")
	policyDir := flag.String("policy-dir", "", "directory of .lio policy files (empty for built-in policy)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	eventBuf := logging.Setup(*debug, 200)

	store, err := configstore.New(configstore.Options{
		PolicyDir: *policyDir,
		Backend:   target.NewMemBackend(),
		SavePath:  *saveFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "liocfg: %v\n", err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		if _, err := store.Restore(""); err != nil {
			fmt.Fprintf(os.Stderr, "liocfg: restore: %v\n", err)
			os.Exit(1)
		}
		if err := cli.New(store, eventBuf).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "liocfg: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runCommand(store, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "liocfg: %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func runCommand(store *configstore.Store, cmd string, args []string) error {
	switch cmd {
	case "dump":
		if _, err := store.Restore(""); err != nil {
			return err
		}
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		text, err := store.Dump(pattern, nil)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil

	case "save":
		if _, err := store.Restore(""); err != nil {
			return err
		}
		text, err := store.Save("", "")
		if err != nil {
			return err
		}
		fmt.Printf("saved %d bytes to %s\n", len(text), store.SavePath())
		return nil

	case "restore":
		nodes, err := store.Restore("")
		if err != nil {
			return err
		}
		if nodes == nil {
			fmt.Println("no saved configuration")
			return nil
		}
		fmt.Printf("restored %d nodes from %s\n", len(nodes), store.SavePath())
		return nil

	case "clear":
		store.Clear()
		if _, err := store.Save("", ""); err != nil {
			return err
		}
		fmt.Println("configuration cleared")
		return nil

	case "verify":
		if _, err := store.Restore(""); err != nil {
			return err
		}
		problems := store.Verify()
		if len(problems) == 0 {
			fmt.Println("no problems found")
			return nil
		}
		for category, items := range problems {
			fmt.Printf("%s:\n", category)
			for _, item := range items {
				fmt.Printf("  %s\n", item)
			}
		}
		return fmt.Errorf("%d problem categories", len(problems))

	case "version":
		fmt.Printf("liocfg %s\n", cli.Version)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command")
	}
}
