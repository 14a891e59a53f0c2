package main

import (
	"io"
	"os"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	newClient  clientFactory
	runDaemon  func(background bool, storePath string) error
	killDaemon func() error
	version    string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newTbmanClient,
		runDaemon: runDaemonProcess,
		killDaemon: func() error {
			return killDaemonWithFactory(newTbmanClient)
		},
		version: buildVersion(),
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"daemon": NewDaemonCommand(wiring.stderr, wiring.runDaemon, wiring.killDaemon),
		"ps":     NewPSCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"create": NewCreateCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"start":  NewStartCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"stop":   NewStopCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"rm":     NewRMCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"update": NewUpdateCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"config": NewConfigCommand(wiring.stdout, wiring.stderr),
		"ui":     NewUICommand(wiring.stderr, wiring.newClient),
	}
}
