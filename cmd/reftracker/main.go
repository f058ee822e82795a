// Command reftracker adds keys to, removes keys from, and inspects a
// key-based reference tracker stored in a Bolt database.
//
// Usage:
//
//	reftracker --db refs.db -o add -k snap1,snap2
//	reftracker --db refs.db -o rem -k snap1
//	reftracker --db refs.db -o stat
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/andreyvit/reftracker"
)

type appConfig struct {
	DB      string `toml:"db"`
	Tracker string `toml:"tracker"`
	Retries int    `toml:"retries"`
	Verbose bool   `toml:"verbose"`
}

type trackerOp int

const (
	opAdd trackerOp = iota
	opRem
	opStat
)

func main() {
	flags := pflag.NewFlagSet("reftracker", pflag.ExitOnError)
	dbPath := flags.String("db", "", "path to the Bolt database holding tracker objects")
	name := flags.StringP("name", "n", reftracker.DefaultTrackerName, "name of the tracker object")
	keysStr := flags.StringP("keys", "k", "", "comma-separated list of reference keys")
	opStr := flags.StringP("op", "o", "", "operation to perform: add, rem or stat")
	configPath := flags.StringP("config", "c", "", "optional TOML config file")
	retries := flags.Int("retries", 5, "attempts per operation when racing other writers")
	verbose := flags.BoolP("verbose", "v", false, "log every protocol step")
	flags.Parse(os.Args[1:])

	cfg := appConfig{Tracker: reftracker.DefaultTrackerName, Retries: 5}
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			fail("reading config %s: %v", *configPath, err)
		}
	}

	// Explicit flags override config file values.
	if flags.Changed("db") || cfg.DB == "" {
		cfg.DB = *dbPath
	}
	if flags.Changed("name") {
		cfg.Tracker = *name
	}
	if flags.Changed("retries") {
		cfg.Retries = *retries
	}
	if flags.Changed("verbose") {
		cfg.Verbose = *verbose
	}

	if cfg.Verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	validateNotEmpty("--db PATH", cfg.DB)
	validateNotEmpty("-n TRACKER NAME", cfg.Tracker)
	validateNotEmpty("-o OPERATION", *opStr)
	op, err := parseOp(*opStr)
	if err != nil {
		fail("%v", err)
	}

	var keys []string
	if op != opStat {
		validateNotEmpty("-k COMMA SEPARATED LIST OF KEYS", *keysStr)
		keys, err = tokenizeKeys(*keysStr)
		if err != nil {
			fail("%v", err)
		}
	}

	store, err := reftracker.OpenBolt(cfg.DB, reftracker.BoltOptions{})
	if err != nil {
		fail("opening store: %v", err)
	}
	defer store.Close()

	switch op {
	case opAdd:
		created, err := retryConflicts(cfg.Retries, func() (bool, error) {
			return reftracker.Add(store, cfg.Tracker, keys)
		})
		if err != nil {
			fail("add failed: %v", err)
		}
		if created {
			fmt.Printf("tracker %s created with %d key(s)\n", cfg.Tracker, len(keys))
		} else {
			fmt.Printf("keys added to tracker %s\n", cfg.Tracker)
		}

	case opRem:
		deleted, err := retryConflicts(cfg.Retries, func() (bool, error) {
			return reftracker.Remove(store, cfg.Tracker, keys)
		})
		if err != nil {
			fail("rem failed: %v", err)
		}
		if deleted {
			fmt.Printf("tracker %s holds no more references and was deleted\n", cfg.Tracker)
		} else {
			fmt.Printf("keys removed from tracker %s\n", cfg.Tracker)
		}

	case opStat:
		info, err := reftracker.Inspect(store, cfg.Tracker)
		if errors.Is(err, reftracker.ErrObjectNotFound) {
			fmt.Printf("tracker %s does not exist\n", cfg.Tracker)
			return
		}
		if err != nil {
			fail("stat failed: %v", err)
		}
		fmt.Printf("tracker %s: schema v%d, %d reference(s), store version %d\n",
			cfg.Tracker, info.SchemaVersion, info.Refcount, info.StoreVersion)
	}
}

func parseOp(s string) (trackerOp, error) {
	switch s {
	case "add":
		return opAdd, nil
	case "rem":
		return opRem, nil
	case "stat":
		return opStat, nil
	default:
		return 0, fmt.Errorf("unknown operation passed in -o %s. Valid operations are 'add', 'rem' and 'stat'", s)
	}
}

func tokenizeKeys(s string) ([]string, error) {
	keys := strings.Split(s, ",")
	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("key list %q contains an empty key", s)
		}
	}
	return keys, nil
}

// retryConflicts reruns fn while it loses optimistic-concurrency races,
// up to attempts tries. Retry policy lives here, not in the engine.
func retryConflicts(attempts int, fn func() (bool, error)) (bool, error) {
	var flag bool
	var err error
	for i := 0; i < attempts; i++ {
		flag, err = fn()
		if errors.Is(err, reftracker.ErrVersionMismatch) || errors.Is(err, reftracker.ErrObjectExists) {
			slog.Debug("tracker changed concurrently, retrying", "attempt", i+1)
			continue
		}
		return flag, err
	}
	return flag, err
}

func validateNotEmpty(name, val string) {
	if val == "" {
		fail("%s may not be empty", name)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
