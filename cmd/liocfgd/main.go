// liocfgd is the SCSI target configuration daemon.
//
// It owns the declarative configuration tree, serves the HTTP API and
// an interactive shell, and converges the kernel target state to the
// configuration on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/openlio/liocfg/pkg/cli"
	"github.com/openlio/liocfg/pkg/configstore"
	"github.com/openlio/liocfg/pkg/daemon"
	"github.com/openlio/liocfg/pkg/logging"
)

func main() {
	saveFile := flag.String("save", configstore.DefaultSavePath, "saved configuration path")
	policyDir := flag.String("policy-dir", "", "directory of .lio policy files (empty for built-in policy)")
	apiAddr := flag.String("api-addr", "127.0.0.1:8080", "HTTP API listen address (empty to disable)")
	noShell := flag.Bool("no-shell", false, "run headless without the interactive shell")
	noRestore := flag.Bool("no-restore", false, "do not load the saved configuration on start")
	debug := flag.Bool("debug", false, "enable debug logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("liocfgd %s\n", cli.Version)
		return
	}

	eventBuf := logging.Setup(*debug, 1000)

	d, err := daemon.New(daemon.Options{
		SaveFile:  *saveFile,
		PolicyDir: *policyDir,
		APIAddr:   *apiAddr,
		NoShell:   *noShell,
		NoRestore: *noRestore,
	}, eventBuf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "liocfgd: %v\n", err)
		os.Exit(1)
	}

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "liocfgd: %v\n", err)
		os.Exit(1)
	}
}
