// ABOUTME: Accessory reset flow for child bridge pairings.
// ABOUTME: Lists resettable pairings, removes cached accessories and collects restart targets.

package pairings

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/notify"
)

// CategoryBridge is the only pairing category that can be reset here.
const CategoryBridge = "bridge"

// Client is the part of the API the flow needs.
type Client interface {
	Pairings(ctx context.Context) ([]api.Pairing, error)
	RemovePairingAccessories(ctx context.Context, id string) error
}

// KnownBridges reports whether a username belongs to a live child bridge.
// *childbridge.Table satisfies it.
type KnownBridges interface {
	Has(username string) bool
}

// RestartTarget is a child bridge that should be restarted after its
// accessories were reset.
type RestartTarget struct {
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

// Flow holds the state of one reset session.
type Flow struct {
	client   Client
	bridges  KnownBridges
	notifier notify.Notifier

	mu       sync.Mutex
	pairings []api.Pairing
	deleting string
	deleted  []string
	closed   bool
}

func NewFlow(client Client, bridges KnownBridges, notifier notify.Notifier) *Flow {
	return &Flow{client: client, bridges: bridges, notifier: notifier}
}

// Load fetches the pairings and keeps non-main bridge pairings of known
// child bridges. On failure it notifies and closes the flow.
func (f *Flow) Load(ctx context.Context) ([]api.Pairing, error) {
	all, err := f.client.Pairings(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load pairings")
		f.notifier.Error(notify.TitleError, "Failed to load bridge pairings")
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		return nil, fmt.Errorf("load pairings: %w", err)
	}

	filtered := make([]api.Pairing, 0, len(all))
	for _, p := range all {
		if p.Category != CategoryBridge || p.Main {
			continue
		}
		if f.bridges == nil || !f.bridges.Has(p.Username) {
			continue
		}
		filtered = append(filtered, p)
	}

	f.mu.Lock()
	f.pairings = filtered
	f.mu.Unlock()
	return slices.Clone(filtered), nil
}

// RemoveAccessories resets the accessories of one pairing, then reloads the
// list. On failure the deleting marker is rolled back and nothing is recorded.
func (f *Flow) RemoveAccessories(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fmt.Errorf("pairing flow is closed")
	}
	if f.deleting != "" {
		busy := f.deleting
		f.mu.Unlock()
		return fmt.Errorf("already resetting %s", busy)
	}
	f.deleting = id
	f.mu.Unlock()

	if err := f.client.RemovePairingAccessories(ctx, id); err != nil {
		f.mu.Lock()
		f.deleting = ""
		f.mu.Unlock()
		log.Error().Err(err).Str("pairing", id).Msg("failed to reset accessories")
		f.notifier.Error(notify.TitleError, "Failed to reset accessories")
		return fmt.Errorf("reset accessories %s: %w", id, err)
	}

	// A failed reload after a successful reset still counts as deleted.
	if _, err := f.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("pairing list reload failed after reset")
	}

	f.mu.Lock()
	f.deleting = ""
	if !slices.Contains(f.deleted, id) {
		f.deleted = append(f.deleted, id)
	}
	f.mu.Unlock()

	f.notifier.Success(notify.TitleSuccess, "")
	return nil
}

// Deleting returns the id being reset, or "".
func (f *Flow) Deleting() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleting
}

// Deleted returns the ids reset so far, in order.
func (f *Flow) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

// Closed reports whether loading failed and the flow gave up.
func (f *Flow) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// RestartTargets maps the reset pairings to child bridges to restart. Ids
// no longer present in the last loaded list are skipped.
func (f *Flow) RestartTargets() []RestartTarget {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RestartTarget
	for _, id := range f.deleted {
		i := slices.IndexFunc(f.pairings, func(p api.Pairing) bool { return p.ID == id })
		if i < 0 {
			log.Debug().Str("pairing", id).Msg("reset pairing no longer listed")
			continue
		}
		out = append(out, RestartTarget{DisplayName: f.pairings[i].DisplayName, Username: f.pairings[i].Username})
	}
	return out
}
