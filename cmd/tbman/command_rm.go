package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
)

type RMCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewRMCommand(stdout, stderr io.Writer, newClient clientFactory) *RMCommand {
	return &RMCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *RMCommand) Run(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("rm requires at least one session id")
	}

	ctx := context.Background()
	client, err := c.newClient()
	if err != nil {
		return err
	}
	if err := client.EnsureDaemon(ctx); err != nil {
		return err
	}
	for _, id := range fs.Args() {
		if err := client.DeleteSession(ctx, id); err != nil {
			return err
		}
	}

	fmt.Fprintln(c.stdout, "ok")
	return nil
}
