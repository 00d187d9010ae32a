package main

import (
	"flag"
	"fmt"
	"io"

	"reflex/internal/config"
	"reflex/internal/version"
)

func runValidateConfig(args []string, out, errOut io.Writer) int {
	set := flag.NewFlagSet("reflex config validate", flag.ContinueOnError)
	set.SetOutput(errOut)
	configPath := set.String("config", "", "path to the YAML configuration file")
	if err := set.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	path := *configPath
	if path == "" && set.NArg() > 0 {
		path = set.Arg(0)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(errOut, "invalid configuration:", err)
		return 1
	}

	fmt.Fprintln(out, "configuration ok")
	fmt.Fprintf(out, "  root:        %s\n", cfg.Root)
	fmt.Fprintf(out, "  api dir:     %s\n", cfg.APIDir)
	fmt.Fprintf(out, "  api prefix:  %s\n", cfg.APIPrefix)
	fmt.Fprintf(out, "  listen:      %s\n", cfg.ListenAddr)
	fmt.Fprintf(out, "  debounce:    %s\n", cfg.Debounce())
	fmt.Fprintf(out, "  max retries: %d\n", cfg.MaxRetries)
	return 0
}

func runVersion(out io.Writer) int {
	fmt.Fprintln(out, "reflex "+version.Get().String())
	return 0
}
