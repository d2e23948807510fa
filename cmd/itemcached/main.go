// Command itemcached wires up a standalone item storage engine: it parses
// configuration, builds the slab allocator, metrics sink, and item store,
// then blocks. Grounded on cmd/memcached/main.go in the teacher repo; no
// wire protocol is implemented here, since the spec scopes the on-the-wire
// protocol out (spec §1, §6 Non-goals).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	"github.com/skipor/itemcached/config"
	"github.com/skipor/itemcached/internal/clock"
	"github.com/skipor/itemcached/internal/metrics"
	"github.com/skipor/itemcached/internal/slab"
	"github.com/skipor/itemcached/internal/tag"
	"github.com/skipor/itemcached/item"
	"github.com/skipor/itemcached/log"
)

const usage = `
Config values merge rules:
1) config file value overrides default
2) command line value overrides any
Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s", usage)
		flag.PrintDefaults()
	}
}

func main() {
	in := loadConfig()
	conf, err := config.Parse(*in)
	l := log.NewLogger(log.InfoLevel, os.Stderr)
	if err != nil {
		l.Fatal("config error: ", err)
	}
	l = log.NewLogger(conf.LogLevel, os.Stderr)
	if tag.Debug {
		l.Warn("using debug build: has more runtime checks and larger overhead")
	}

	m := metrics.New()
	sa := slab.New(conf.ClassSizes, 0)
	store := item.New(sa, conf.Store, m, clock.NewReal(), l)
	defer store.Teardown()

	l.Infof("item store ready: hash-power=%d use-cas=%v classes=%v",
		conf.Store.HashPower, conf.Store.UseCAS, conf.ClassSizes)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	l.Info("shutting down")
}

// loadConfig reads a JSON config file, if given, and merges command-line
// flag overrides onto it, the same two-step merge as the teacher's
// config()/parseFlags().
func loadConfig() *config.InputConfig {
	l := log.NewLogger(log.InfoLevel, os.Stderr)
	flg := parseFlags()
	fileConf := config.Default()
	if flg.ConfigPath != "" {
		data, err := ioutil.ReadFile(flg.ConfigPath)
		if err != nil {
			l.Fatal("config file read error: ", err)
		}
		if err := json.Unmarshal(data, fileConf); err != nil {
			l.Fatal("config parse error: ", err)
		}
	}
	config.Merge(fileConf, &flg.InputConfig)
	return fileConf
}

type flags struct {
	ConfigPath string
	config.InputConfig
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to json config")

	def := config.Default()
	withDefault := func(usage string, defVal interface{}) string {
		return fmt.Sprintf("%s (default %v)", usage, defVal)
	}
	flag.IntVar(&f.HashPower, "hash-power", 0, withDefault("log2 of hash index bucket count", def.HashPower))
	flag.BoolVar(&f.UseCAS, "use-cas", false, withDefault("embed and enforce CAS tokens", def.UseCAS))
	flag.StringVar(&f.MinChunk, "min-chunk", "", withDefault("smallest slab chunk size: 64b, 1k", def.MinChunk))
	flag.StringVar(&f.SlabSize, "slab-size", "", withDefault("largest slab chunk size: 1m, 512k", def.SlabSize))
	flag.StringVar(&f.LogLevel, "log-level", "", withDefault("log level: verb, debug, info, warn, error, fatal", def.LogLevel))
	flag.Parse()
	return f
}
