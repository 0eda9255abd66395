package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/nutrisnap/nutrisnap/cmd"
	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = ""
	buildDate = ""
)

func main() {
	settings, err := conf.Load(configFileFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	build := buildinfo.NewContext(version, buildDate)
	rootCmd := cmd.RootCommand(settings, build)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// configFileFromArgs picks --config out of the arguments before cobra runs,
// since flag defaults are taken from the loaded configuration.
func configFileFromArgs(args []string) string {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsAllowlist.UnknownFlags = true
	fs.Usage = func() {}
	configFile := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *configFile
}
