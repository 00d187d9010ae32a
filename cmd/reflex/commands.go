package main

import (
	"io"
	"os"
)

type command interface {
	Run(args []string) int
}

type commandDeps struct {
	Stdout            io.Writer
	Stderr            io.Writer
	RunServe          func(args []string) int
	RunValidateConfig func(args []string, out, errOut io.Writer) int
	RunVersion        func(out io.Writer) int
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		RunServe:          runServe,
		RunValidateConfig: runValidateConfig,
		RunVersion:        runVersion,
	}
}

type serveCommand struct {
	deps commandDeps
}

func (c serveCommand) Run(args []string) int {
	return c.deps.RunServe(args)
}

type validateConfigCommand struct {
	deps commandDeps
}

func (c validateConfigCommand) Run(args []string) int {
	return c.deps.RunValidateConfig(args, c.deps.Stdout, c.deps.Stderr)
}

type versionCommand struct {
	deps commandDeps
}

func (c versionCommand) Run(args []string) int {
	return c.deps.RunVersion(c.deps.Stdout)
}

func resolveCommand(args []string, deps commandDeps) (command, []string) {
	if len(args) > 0 && args[0] == "version" {
		return versionCommand{deps: deps}, args[1:]
	}
	if len(args) > 0 && args[0] == "validate-config" {
		return validateConfigCommand{deps: deps}, args[1:]
	}
	if len(args) > 1 && args[0] == "config" && args[1] == "validate" {
		return validateConfigCommand{deps: deps}, args[2:]
	}
	if len(args) > 0 && args[0] == "serve" {
		return serveCommand{deps: deps}, args[1:]
	}
	return serveCommand{deps: deps}, args
}
