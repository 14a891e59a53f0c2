package main

import (
	"context"

	tbmanclient "tbman/internal/client"
	"tbman/internal/types"
	"tbman/internal/ui"
)

type clientFactory func() (commandClient, error)

type commandClient interface {
	EnsureDaemon(ctx context.Context) error
	Health(ctx context.Context) (*tbmanclient.HealthResponse, error)
	ListSessions(ctx context.Context) ([]types.SessionInfo, error)
	GetSession(ctx context.Context, id string) (*types.SessionInfo, error)
	CreateSession(ctx context.Context, req tbmanclient.CreateSessionRequest) (*types.Session, error)
	UpdateSession(ctx context.Context, id string, req tbmanclient.UpdateSessionRequest) error
	DeleteSession(ctx context.Context, id string) error
	StartSession(ctx context.Context, id string) error
	StopSession(ctx context.Context, id string) error
	ShutdownDaemon(ctx context.Context) error
	RunUI() error
}

type tbmanClientAdapter struct {
	client *tbmanclient.Client
}

func newTbmanClient() (commandClient, error) {
	client, err := tbmanclient.New()
	if err != nil {
		return nil, err
	}
	return &tbmanClientAdapter{client: client}, nil
}

func (c *tbmanClientAdapter) EnsureDaemon(ctx context.Context) error {
	return c.client.EnsureDaemon(ctx)
}

func (c *tbmanClientAdapter) Health(ctx context.Context) (*tbmanclient.HealthResponse, error) {
	return c.client.Health(ctx)
}

func (c *tbmanClientAdapter) ListSessions(ctx context.Context) ([]types.SessionInfo, error) {
	return c.client.ListSessions(ctx)
}

func (c *tbmanClientAdapter) GetSession(ctx context.Context, id string) (*types.SessionInfo, error) {
	return c.client.GetSession(ctx, id)
}

func (c *tbmanClientAdapter) CreateSession(ctx context.Context, req tbmanclient.CreateSessionRequest) (*types.Session, error) {
	return c.client.CreateSession(ctx, req)
}

func (c *tbmanClientAdapter) UpdateSession(ctx context.Context, id string, req tbmanclient.UpdateSessionRequest) error {
	return c.client.UpdateSession(ctx, id, req)
}

func (c *tbmanClientAdapter) DeleteSession(ctx context.Context, id string) error {
	return c.client.DeleteSession(ctx, id)
}

func (c *tbmanClientAdapter) StartSession(ctx context.Context, id string) error {
	return c.client.StartSession(ctx, id)
}

func (c *tbmanClientAdapter) StopSession(ctx context.Context, id string) error {
	return c.client.StopSession(ctx, id)
}

func (c *tbmanClientAdapter) ShutdownDaemon(ctx context.Context) error {
	return c.client.ShutdownDaemon(ctx)
}

func (c *tbmanClientAdapter) RunUI() error {
	return ui.Run(c.client)
}
