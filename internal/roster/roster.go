// ABOUTME: Loads, enriches and ranks the installed plugin roster.
// ABOUTME: Enrichment joins per-plugin config lookups with live child bridge rows.

package roster

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/childbridge"
	"github.com/2389/hbx/internal/notify"
)

const (
	// ManagementPlugin is never listed.
	ManagementPlugin = "homebridge-config-ui-x"
	// BridgeHost never gets a child bridge recommendation.
	BridgeHost = "homebridge"
)

// Plugin is a listed plugin plus the fields derived during enrichment.
type Plugin struct {
	api.Plugin

	IsConfigured                bool `json:"isConfigured"`
	IsConfiguredDynamicPlatform bool `json:"isConfiguredDynamicPlatform"`
	HasChildBridges             bool `json:"hasChildBridges"`
	HasChildBridgesUnpaired     bool `json:"hasChildBridgesUnpaired"`
	RecommendChildBridge        bool `json:"recommendChildBridge"`
}

// Settings are the server environment flags that affect enrichment and ranking.
type Settings struct {
	ServiceMode           bool
	RecommendChildBridges bool
}

// SettingsFrom picks the relevant flags out of the server settings.
func SettingsFrom(s *api.Settings) Settings {
	if s == nil {
		return Settings{}
	}
	return Settings{ServiceMode: s.Env.ServiceMode, RecommendChildBridges: s.Env.RecommendChildBridges}
}

// Client is the part of the API the roster needs. *api.Client satisfies it.
type Client interface {
	InstalledPlugins(ctx context.Context) ([]api.Plugin, error)
	SearchPlugins(ctx context.Context, query string) ([]api.Plugin, error)
	PluginConfig(ctx context.Context, name string) ([]api.ConfigBlock, error)
}

// BridgeSource answers which child bridges belong to a plugin.
// *childbridge.Table satisfies it.
type BridgeSource interface {
	ByPlugin(plugin string) []childbridge.Status
}

// Aggregator builds the plugin roster from the management API.
type Aggregator struct {
	client      Client
	bridges     BridgeSource
	settings    Settings
	notifier    notify.Notifier
	concurrency int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency caps the number of config lookups in flight. Zero or less
// means no cap.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		a.concurrency = max(n, 0)
	}
}

// New returns an Aggregator. By default every config lookup runs at once.
func New(client Client, bridges BridgeSource, settings Settings, notifier notify.Notifier, opts ...Option) *Aggregator {
	a := &Aggregator{
		client:   client,
		bridges:  bridges,
		settings: settings,
		notifier: notifier,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load returns the ranked installed roster without the management plugin.
func (a *Aggregator) Load(ctx context.Context) ([]Plugin, error) {
	return a.LoadRoster(ctx, ManagementPlugin)
}

// LoadRoster returns the ranked installed roster without excluded (and
// without the management plugin). On failure it notifies and returns an
// empty roster with the error.
func (a *Aggregator) LoadRoster(ctx context.Context, excluded string) ([]Plugin, error) {
	listed, err := a.client.InstalledPlugins(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load installed plugins")
		a.notifier.Error(notify.TitleError, "Failed to load plugins")
		return []Plugin{}, fmt.Errorf("load plugins: %w", err)
	}

	plugins := a.prepare(listed, excluded)
	a.enrich(ctx, plugins)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	Rank(plugins, a.settings.RecommendChildBridges)
	return plugins, nil
}

// Search returns the server's matches for query, enriched but kept in server
// order. On failure it notifies with the server message and falls back to
// the installed roster; the search error is still returned.
func (a *Aggregator) Search(ctx context.Context, query string) ([]Plugin, error) {
	listed, err := a.client.SearchPlugins(ctx, query)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("plugin search failed")
		a.notifier.Error(notify.TitleError, api.Message(err))
		installed, _ := a.Load(ctx)
		return installed, fmt.Errorf("search plugins %q: %w", query, err)
	}

	plugins := a.prepare(listed, ManagementPlugin)
	a.enrich(ctx, plugins)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return plugins, nil
}

// Submit handles the search form: an empty query reloads the roster.
func (a *Aggregator) Submit(ctx context.Context, query string) ([]Plugin, error) {
	if query == "" {
		return a.Load(ctx)
	}
	return a.Search(ctx, query)
}

// Find locates name in a roster and reports whether it still needs setup.
func Find(plugins []Plugin, name string) (Plugin, bool, bool) {
	for _, p := range plugins {
		if p.Name == name {
			return p, !p.IsConfigured, true
		}
	}
	return Plugin{}, false, false
}

// prepare drops excluded names and duplicates, keeping first occurrences.
func (a *Aggregator) prepare(listed []api.Plugin, excluded string) []Plugin {
	seen := make(map[string]bool, len(listed))
	out := make([]Plugin, 0, len(listed))
	for _, p := range listed {
		if p.Name == ManagementPlugin || p.Name == excluded || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, Plugin{Plugin: p})
	}
	return out
}

// enrich fills derived fields for installed plugins. It waits for every
// lookup; a failed lookup falls back to configured-with-child-bridges.
func (a *Aggregator) enrich(ctx context.Context, plugins []Plugin) {
	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i := range plugins {
		if plugins[i].InstalledVersion == "" {
			continue
		}
		p := &plugins[i]
		g.Go(func() error {
			blocks, err := a.client.PluginConfig(ctx, p.Name)
			if err != nil {
				log.Debug().Err(err).Str("plugin", p.Name).Msg("config lookup failed, assuming configured")
				p.IsConfigured = true
				p.HasChildBridges = true
				return nil
			}
			a.derive(p, blocks)
			return nil
		})
	}
	g.Wait()
}

func (a *Aggregator) derive(p *Plugin, blocks []api.ConfigBlock) {
	p.IsConfigured = len(blocks) > 0
	p.IsConfiguredDynamicPlatform = p.IsConfigured && blocks[0].HasPlatform()

	p.RecommendChildBridge = p.IsConfiguredDynamicPlatform &&
		a.settings.RecommendChildBridges &&
		a.settings.ServiceMode &&
		p.Name != BridgeHost && p.Name != ManagementPlugin

	p.HasChildBridges = p.IsConfigured && slices.ContainsFunc(blocks, func(b api.ConfigBlock) bool {
		return b.BridgeUsername() != ""
	})

	if a.bridges != nil {
		p.HasChildBridgesUnpaired = slices.ContainsFunc(a.bridges.ByPlugin(p.Name), func(s childbridge.Status) bool {
			return !s.Paired
		})
	}
}

// Rank sorts plugins in place: updates first, then enabled, unconfigured,
// unpaired child bridges, no child bridges (only when recommending them),
// then by name.
func Rank(plugins []Plugin, recommendChildBridges bool) {
	col := collate.New(language.English)
	slices.SortStableFunc(plugins, func(a, b Plugin) int {
		if c := trueFirst(a.UpdateAvailable, b.UpdateAvailable); c != 0 {
			return c
		}
		if c := trueFirst(b.Disabled, a.Disabled); c != 0 {
			return c
		}
		if c := trueFirst(b.IsConfigured, a.IsConfigured); c != 0 {
			return c
		}
		if c := trueFirst(a.HasChildBridgesUnpaired, b.HasChildBridgesUnpaired); c != 0 {
			return c
		}
		if recommendChildBridges {
			if c := trueFirst(b.HasChildBridges, a.HasChildBridges); c != 0 {
				return c
			}
		}
		return col.CompareString(a.Name, b.Name)
	})
}

func trueFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}
