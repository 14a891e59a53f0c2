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

type CreateCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewCreateCommand(stdout, stderr io.Writer, newClient clientFactory) *CreateCommand {
	return &CreateCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *CreateCommand) Run(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	title := fs.String("title", "", "session title (defaults to the first directory name)")
	var paths stringList
	fs.Var(&paths, "path", "log directory (repeatable)")
	start := fs.Bool("start", false, "start the TensorBoard server immediately")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths = append(paths, fs.Args()...)
	if len(paths) == 0 {
		return errors.New("create requires at least one log directory")
	}

	absPaths := make([]string, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		absPaths = append(absPaths, abs)
	}
	sessionTitle := *title
	if sessionTitle == "" {
		sessionTitle = filepath.Base(absPaths[0])
	}

	ctx := context.Background()
	client, err := c.newClient()
	if err != nil {
		return err
	}
	if err := client.EnsureDaemon(ctx); err != nil {
		return err
	}
	session, err := client.CreateSession(ctx, tbmanclient.CreateSessionRequest{
		Title: sessionTitle,
		Paths: absPaths,
		Start: *start,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.stdout, session.ID)
	return nil
}
