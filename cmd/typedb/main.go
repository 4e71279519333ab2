package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/typedb/typedb-sub006/bgtask"
	"github.com/typedb/typedb-sub006/diagnostics"
	"github.com/typedb/typedb-sub006/storage/kvstore"
	"github.com/typedb/typedb-sub006/typeerr"
)

func main() {
	var dbPath string
	var interactive bool
	var inMemory bool
	var verbose bool
	var queryName string
	var help bool

	flag.StringVar(&dbPath, "db", "", "database path")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&inMemory, "mem", false, "use an in-memory store")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show execution diagnostics)")
	flag.StringVar(&queryName, "query", "", "run a single named demo query and exit")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [database_path]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A typed graph database engine.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -mem -i            # Interactive mode, in-memory store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mydata.db -i       # Interactive mode with persistent store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -mem -query has-name-and-age\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}
	if dbPath == "" && flag.NArg() > 0 {
		dbPath = flag.Arg(0)
	}

	var kv kvstore.KV
	if inMemory || dbPath == "" {
		kv = kvstore.OpenMemory()
	} else {
		opened, err := kvstore.Open(dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		kv = opened
	}
	defer kv.Close()

	var handler diagnostics.Handler
	if verbose {
		formatter := diagnostics.NewOutputFormatter(os.Stderr)
		handler = formatter.Handle
	}

	eng, err := newEngine(kv, handler)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	watch := bgtask.NewWatch()
	tracker := bgtask.NewTracker(watch)
	tracker.Periodic(30*time.Second, true, eng.refreshStatistics)
	defer tracker.Shutdown()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		watch.Trip()
	}()

	switch {
	case queryName != "":
		if err := eng.runNamed(queryName, watch.Done(), os.Stdout); err != nil {
			printError(err)
			os.Exit(1)
		}
	case interactive:
		runInteractive(eng, watch)
	default:
		fmt.Println("Loaded demo dataset. Use -i for interactive mode or -query <name>.")
		fmt.Println("Available queries:")
		for _, q := range eng.queryNames() {
			fmt.Printf("  %s\n", q)
		}
	}
}

func runInteractive(eng *engine, watch *bgtask.Watch) {
	fmt.Println("typedb interactive mode. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if watch.Tripped() {
			return
		}
		fmt.Print("typedb> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "help":
			fmt.Println("Commands:")
			fmt.Println("  queries             list the built-in demo queries")
			fmt.Println("  run <name>          execute a demo query")
			fmt.Println("  explain <name>      show a demo query's match plan")
			fmt.Println("  insert-demo         insert a fresh person with age 42")
			fmt.Println("  stats               show per-type instance counts")
			fmt.Println("  quit                exit")
		case "queries":
			for _, q := range eng.queryNames() {
				fmt.Printf("  %s\n", q)
			}
		case "run":
			if len(fields) < 2 {
				fmt.Println("usage: run <name>")
				continue
			}
			if err := eng.runNamed(fields[1], watch.Done(), os.Stdout); err != nil {
				printError(err)
			}
		case "explain":
			if len(fields) < 2 {
				fmt.Println("usage: explain <name>")
				continue
			}
			if err := eng.explainNamed(fields[1], os.Stdout); err != nil {
				printError(err)
			}
		case "insert-demo":
			if err := eng.insertDemo(watch.Done(), os.Stdout); err != nil {
				printError(err)
			}
		case "stats":
			eng.printStatistics(os.Stdout)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q; try 'help'\n", fields[0])
		}
	}
}

// printError renders capability errors in their standard display form,
// colorized, and everything else plainly.
func printError(err error) {
	var cap typeerr.CapabilityError
	if ok := asCapability(err, &cap); ok {
		fmt.Fprintln(os.Stderr, color.RedString(typeerr.Format(cap)))
		return
	}
	fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
}

func asCapability(err error, out *typeerr.CapabilityError) bool {
	for err != nil {
		if c, ok := err.(typeerr.CapabilityError); ok {
			*out = c
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
