package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/migadu/listsearch/config"
	"github.com/migadu/listsearch/helpers"
)

type options struct {
	fs *flag.FlagSet

	configPath  string
	mbox        string
	exec        string
	clear       bool
	threaded    bool
	quiet       bool
	htmlToText  bool
	oldestFirst bool
	noCache     bool
	metricsAddr string
	logLevel    string

	archive string
	filter  []string
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("listsearch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	fs.StringVar(&o.configPath, "config", defaultConfigPath, "Path to TOML configuration file")
	fs.StringVar(&o.mbox, "o", "", "Append matches to the mbox file at `PATH`")
	fs.StringVar(&o.exec, "x", "", "Run shell `COMMAND` for each match with the message on stdin")
	fs.BoolVar(&o.clear, "c", false, "Clear the archive cache instead of searching")
	fs.BoolVar(&o.threaded, "t", false, "Also match replies to matching messages")
	fs.BoolVar(&o.quiet, "q", false, "Do not print matches")
	fs.BoolVar(&o.htmlToText, "html", false, "Search HTML bodies as plain text")
	fs.BoolVar(&o.oldestFirst, "oldest-first", false, "Search the oldest archive first")
	fs.BoolVar(&o.noCache, "no-cache", false, "Do not read or write the archive cache")
	fs.StringVar(&o.metricsAddr, "metrics", "", "Serve Prometheus metrics on `ADDR` while searching")
	fs.StringVar(&o.logLevel, "loglevel", "", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.fs = fs

	rest := fs.Args()
	if len(rest) == 0 {
		return nil, errors.New("missing ARCHIVE")
	}
	o.archive = rest[0]
	o.filter = rest[1:]
	if !o.clear && len(o.filter) == 0 {
		return nil, errors.New("must have at least one filter")
	}
	return o, nil
}

func (o *options) isFlagSet(name string) bool {
	isSet := false
	o.fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			isSet = true
		}
	})
	return isSet
}

// loadConfig layers the configuration file and then command-line flags
// over the defaults. A missing file is only an error when -config was
// given explicitly.
func (o *options) loadConfig() (config.Config, error) {
	cfg := config.NewDefaultConfig()

	path := helpers.ExpandHome(o.configPath)
	if err := config.LoadConfigFromFile(path, &cfg); err != nil {
		if !os.IsNotExist(err) || o.isFlagSet("config") {
			return cfg, fmt.Errorf("configuration file %s: %w", path, err)
		}
	}

	if o.isFlagSet("o") {
		cfg.Output.Mbox = helpers.ExpandHome(o.mbox)
	}
	if o.isFlagSet("x") {
		cfg.Output.Exec = o.exec
	}
	if o.isFlagSet("q") {
		cfg.Output.Print = !o.quiet
	}
	if o.isFlagSet("t") {
		cfg.Search.Threaded = o.threaded
	}
	if o.isFlagSet("html") {
		cfg.Search.HTMLToText = o.htmlToText
	}
	if o.isFlagSet("oldest-first") {
		cfg.Search.OldestFirst = o.oldestFirst
	}
	if o.isFlagSet("no-cache") {
		cfg.Cache.Enabled = !o.noCache
	}
	if o.isFlagSet("metrics") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.isFlagSet("loglevel") {
		cfg.Logging.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
