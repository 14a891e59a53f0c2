package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	tbmanclient "tbman/internal/client"
)

type UpdateCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewUpdateCommand(stdout, stderr io.Writer, newClient clientFactory) *UpdateCommand {
	return &UpdateCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *UpdateCommand) Run(args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	title := fs.String("title", "", "new session title")
	var paths stringList
	fs.Var(&paths, "path", "replacement log directory (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("update requires exactly one session id")
	}
	id := fs.Arg(0)

	req := tbmanclient.UpdateSessionRequest{}
	if *title != "" {
		req.Title = title
	}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		req.Paths = append(req.Paths, abs)
	}
	if req.Title == nil && len(req.Paths) == 0 {
		return errors.New("update requires --title or --path")
	}

	ctx := context.Background()
	client, err := c.newClient()
	if err != nil {
		return err
	}
	if err := client.EnsureDaemon(ctx); err != nil {
		return err
	}
	if err := client.UpdateSession(ctx, id, req); err != nil {
		return err
	}

	fmt.Fprintln(c.stdout, "ok")
	return nil
}
