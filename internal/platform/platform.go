// ABOUTME: Host platform tools: shutdown, restart and resource status.
// ABOUTME: Failures are reported through the notifier and returned.

package platform

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/notify"
)

type Client interface {
	ShutdownHost(ctx context.Context) error
	RestartHost(ctx context.Context) error
	CPU(ctx context.Context) (*api.CPUStatus, error)
	RAM(ctx context.Context) (*api.RAMStatus, error)
}

type Tools struct {
	client   Client
	notifier notify.Notifier
}

func New(client Client, notifier notify.Notifier) *Tools {
	return &Tools{client: client, notifier: notifier}
}

// Shutdown asks the server to power off its host.
func (t *Tools) Shutdown(ctx context.Context) error {
	if err := t.client.ShutdownHost(ctx); err != nil {
		log.Error().Err(err).Msg("host shutdown request failed")
		t.notifier.Error(notify.TitleError, "Failed to shut down the server")
		return fmt.Errorf("shutdown host: %w", err)
	}
	return nil
}

// Restart asks the server to reboot its host.
func (t *Tools) Restart(ctx context.Context) error {
	if err := t.client.RestartHost(ctx); err != nil {
		log.Error().Err(err).Msg("host restart request failed")
		t.notifier.Error(notify.TitleError, "Failed to restart the server")
		return fmt.Errorf("restart host: %w", err)
	}
	return nil
}

// Status is a point-in-time view of host resources.
type Status struct {
	CPU api.CPUStatus `json:"cpu"`
	RAM api.RAMStatus `json:"ram"`
}

// Status fetches CPU and memory usage in parallel.
func (t *Tools) Status(ctx context.Context) (*Status, error) {
	var st Status
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cpu, err := t.client.CPU(gctx)
		if err != nil {
			return fmt.Errorf("cpu status: %w", err)
		}
		st.CPU = *cpu
		return nil
	})
	g.Go(func() error {
		ram, err := t.client.RAM(gctx)
		if err != nil {
			return fmt.Errorf("ram status: %w", err)
		}
		st.RAM = *ram
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}
