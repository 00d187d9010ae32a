package main

import "os"

func main() {
	deps := defaultCommandDeps()
	cmd, args := resolveCommand(os.Args[1:], deps)
	os.Exit(cmd.Run(args))
}
