package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
)

type StopCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewStopCommand(stdout, stderr io.Writer, newClient clientFactory) *StopCommand {
	return &StopCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *StopCommand) Run(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("stop requires exactly one session id")
	}
	id := fs.Arg(0)

	ctx := context.Background()
	client, err := c.newClient()
	if err != nil {
		return err
	}
	if err := client.EnsureDaemon(ctx); err != nil {
		return err
	}
	if err := client.StopSession(ctx, id); err != nil {
		return err
	}

	fmt.Fprintln(c.stdout, "ok")
	return nil
}
