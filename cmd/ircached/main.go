package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kingpin "gopkg.in/alecthomas/kingpin.v2"

	ircache "github.com/bcix/tinyirrdbcache"
	"github.com/bcix/tinyirrdbcache/registry"
	"github.com/bcix/tinyirrdbcache/server"
	"github.com/bcix/tinyirrdbcache/snapshot"
)

var (
	version   = "tinyirrdbcache v0.0.1"
	usageText = version + `

Usage: ircached [OPTIONS]

Options:
  -h, --help             Show help message.
  -v, --verbose          Print observation events on STDERR.

  -c, --config=FILE      Registry configuration file (JSON). Required.
      --snapshot-dir=DIR Snapshot directory. (default: the config file's
                         snapshotDir, else $HOME/.tinyirrdbcache).
      --listen=ADDR      HTTP listen address. (default: :8080).
`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	app := kingpin.New("ircached", "tinyirrdbcache daemon")
	app.HelpFlag.Short('h')
	app.UsageTemplate(usageText)
	app.UsageWriter(stderr)

	// Instead of letting kingpin call os.Exit() (its default Terminate
	// hook) on --help or a parse error, flag it here so run stays
	// callable from tests without exiting the test process.
	terminate := false
	app.Terminate(func(int) {
		terminate = true
	})

	verboseFlag := app.Flag("verbose", "").Short('v').Bool()
	configFlag := app.Flag("config", "").Short('c').Required().String()
	snapshotDirFlag := app.Flag("snapshot-dir", "").Default("").String()
	listenFlag := app.Flag("listen", "").Default(":8080").String()

	if _, err := app.Parse(args); err != nil {
		printError(stderr, fmt.Sprintf("Error: %s\n\n%s", err, usageText))
		return 1
	} else if terminate {
		// Occurs when kingpin prints the --help message.
		return 1
	}

	var verbose ircache.Observer
	if *verboseFlag {
		verbose = func(e ircache.Event) {
			if e.Err != nil {
				fmt.Fprintf(stderr, "# %s\n", e.Err.Error())
			} else {
				fmt.Fprintf(stderr, "# [%s] %s\n", e.Registry, e.Detail)
			}
		}
	}

	doc, err := loadConfig(*configFlag)
	if err != nil {
		printError(stderr, fmt.Sprintf("Error: reading config: %s", err))
		return 1
	}

	snapshotDir := *snapshotDirFlag
	if snapshotDir == "" {
		snapshotDir = doc.SnapshotDir
	}
	store, err := snapshot.NewStore(snapshotDir)
	if err != nil {
		printError(stderr, fmt.Sprintf("Error: resolving snapshot dir: %s", err))
		return 1
	}

	registries := server.Registries{}
	var supervisors []*registry.Supervisor

	for _, cfg := range doc.Configs() {
		sup := registry.NewSupervisor(cfg, store, http.DefaultClient, verbose)
		if !sup.Start() {
			fmt.Fprintf(stderr, "# [%s] startup failed, will retry\n", cfg.ShortName)
			stop := make(chan struct{})
			go sup.RetryLoop(stop)
		}
		supervisors = append(supervisors, sup)
		if sup.Index != nil {
			registries[cfg.ShortName] = sup.Index
		}
	}

	srv := &http.Server{Addr: *listenFlag, Handler: server.New(registries)}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(stderr, "# http server: %s\n", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	for _, sup := range supervisors {
		sup.Stop()
	}
	srv.Close()

	return 0
}

func loadConfig(path string) (registry.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return registry.Document{}, err
	}
	defer f.Close()

	var doc registry.Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return registry.Document{}, err
	}
	return doc, nil
}

func printError(stderr io.Writer, text string) {
	fmt.Fprintf(stderr, "# %s\n", text)
}
