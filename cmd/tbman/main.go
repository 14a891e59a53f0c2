package main

import (
	"fmt"
	"os"
)

const usageText = `tbman manages long-running TensorBoard servers.

Usage:
  tbman <command> [flags]

Commands:
  daemon   run background daemon
  ps       list sessions
  create   create a session from log directories
  start    start a session's TensorBoard server
  stop     stop a session's TensorBoard server
  rm       delete a session
  update   rename a session or replace its log directories
  config   print configuration (effective or defaults)
  ui       run terminal dashboard
  help     show help

Flags:
  -h, --help   show help

Daemon flags:
  --background    run in background (logs to file)
  --force         stop any running daemon before starting
  --kill          stop any running daemon and exit
  --store PATH    override the session store path

Examples:
  tbman create --title mnist --path ./runs/mnist --start
  tbman ps
  tbman start <id>
  tbman update <id> --title mnist-v2
  tbman ui
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
