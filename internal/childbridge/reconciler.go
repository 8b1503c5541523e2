// ABOUTME: Keeps a Table in step with the child-bridges namespace.
// ABOUTME: Seeds by point request, then merges pushed status updates.

package childbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/ws"
)

const Namespace = "child-bridges"

const (
	EventGetStatus    = "get-homebridge-child-bridge-status"
	EventMonitor      = "monitor-child-bridge-status"
	EventStatusUpdate = "child-bridge-status-update"
	EventRestart      = "restart-child-bridge"
	EventStop         = "stop-child-bridge"
	EventStart        = "start-child-bridge"
)

// Channel is the namespace connection the reconciler talks through.
// *ws.Conn satisfies it.
type Channel interface {
	Request(ctx context.Context, event string, payload, out any) error
	Emit(event string, payload any) error
	Subscribe(event string) *ws.Subscription
}

type Reconciler struct {
	ch    Channel
	table *Table
}

func NewReconciler(ch Channel, table *Table) *Reconciler {
	if table == nil {
		table = NewTable()
	}
	return &Reconciler{ch: ch, table: table}
}

func (r *Reconciler) Table() *Table {
	return r.table
}

// Seed replaces the table with the server's current statuses and asks the
// server to start pushing changes. A result arriving after ctx ended is dropped.
func (r *Reconciler) Seed(ctx context.Context) error {
	var rows []Status
	if err := r.ch.Request(ctx, EventGetStatus, nil, &rows); err != nil {
		return fmt.Errorf("failed to load child bridge status: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.table.Seed(rows)

	if err := r.ch.Emit(EventMonitor, nil); err != nil {
		return fmt.Errorf("failed to start child bridge monitor: %w", err)
	}
	return nil
}

// Watch merges pushed updates from sub until ctx ends or the subscription
// closes. onChange, if set, sees each merged row.
func (r *Reconciler) Watch(ctx context.Context, sub *ws.Subscription, onChange func(Status)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-sub.C():
			if !ok {
				return ws.ErrClosed
			}
			if ctx.Err() != nil {
				return nil
			}
			row, ok := r.apply(data)
			if ok && onChange != nil {
				onChange(row)
			}
		}
	}
}

// Run subscribes, seeds and then watches. The table is cleared on return.
func (r *Reconciler) Run(ctx context.Context, onChange func(Status)) error {
	sub := r.ch.Subscribe(EventStatusUpdate)
	defer sub.Close()
	defer r.table.Clear()

	if err := r.Seed(ctx); err != nil {
		return err
	}
	return r.Watch(ctx, sub, onChange)
}

func (r *Reconciler) apply(data json.RawMessage) (Status, bool) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		log.Warn().Err(err).Msg("ignoring malformed child bridge update")
		return Status{}, false
	}
	if u.Username == "" {
		log.Warn().Msg("ignoring child bridge update without username")
		return Status{}, false
	}
	if r.table.ApplyUpdate(u) {
		log.Debug().Str("username", u.Username).Msg("child bridge added")
	}
	row, _ := r.table.Get(u.Username)
	return row, true
}

// Restart asks the server to restart one child bridge.
func (r *Reconciler) Restart(username string) error {
	return r.control(EventRestart, username)
}

func (r *Reconciler) Stop(username string) error {
	return r.control(EventStop, username)
}

func (r *Reconciler) Start(username string) error {
	return r.control(EventStart, username)
}

func (r *Reconciler) control(event, username string) error {
	if username == "" {
		return fmt.Errorf("%s: username is required", event)
	}
	if err := r.ch.Emit(event, username); err != nil {
		return fmt.Errorf("%s %s: %w", event, username, err)
	}
	return nil
}
