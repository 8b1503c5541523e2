// ABOUTME: AI-powered catalog generator for realistic fake plugin data.
// ABOUTME: Uses OpenAI to invent plugins, falling back to a static catalog.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Generator creates fake data using OpenAI or falls back to static data.
type Generator struct {
	client *openai.Client
	useAI  bool
	model  string
}

// NewGenerator creates a generator, loading the API key from .env if available.
func NewGenerator() *Generator {
	g := &Generator{}

	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".env"))
	}

	g.model = os.Getenv("OPENAI_MODEL")
	if g.model == "" {
		g.model = "gpt-5-mini"
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		g.client = openai.NewClient(apiKey)
		g.useAI = true
		log.Info().Str("model", g.model).Msg("OpenAI API key found, using AI-generated plugins")
	} else {
		log.Info().Msg("no OPENAI_API_KEY found, using static plugin catalog")
	}
	return g
}

// Static returns a generator that never calls out.
func Static() *Generator {
	return &Generator{}
}

// Catalog is everything the fake server is seeded from.
type Catalog struct {
	Plugins      []PluginData `json:"plugins"`
	ChildBridges []BridgeData `json:"child_bridges"`
	Users        []UserData   `json:"users"`
	LogLines     []string     `json:"log_lines"`
}

// PluginData is one plugin known to the fake registry. Plugins without an
// InstalledVersion only show up in search results.
type PluginData struct {
	Name             string           `json:"name"`
	DisplayName      string           `json:"displayName"`
	Description      string           `json:"description"`
	Author           string           `json:"author"`
	InstalledVersion string           `json:"installedVersion"`
	LatestVersion    string           `json:"latestVersion"`
	Verified         bool             `json:"verified"`
	Disabled         bool             `json:"disabled"`
	Configs          []map[string]any `json:"configs"`
}

// BridgeData is a child bridge declared by a plugin config block.
type BridgeData struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Plugin   string `json:"plugin"`
	Pin      string `json:"pin"`
	Paired   bool   `json:"paired"`
	Stopped  bool   `json:"stopped"`
}

type UserData struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// pluginIdea is the compact shape asked from the model and used by the
// static table; buildCatalog turns it into config blocks and bridges.
type pluginIdea struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	Description      string `json:"description"`
	Author           string `json:"author"`
	InstalledVersion string `json:"installedVersion"`
	LatestVersion    string `json:"latestVersion"`
	Platform         string `json:"platform"`
	Accessory        string `json:"accessory"`
	ChildBridge      bool   `json:"childBridge"`
	Unpaired         bool   `json:"unpaired"`
	Disabled         bool   `json:"disabled"`
	Verified         bool   `json:"verified"`
}

// Generate builds a catalog with about numPlugins plugins.
func (g *Generator) Generate(ctx context.Context, numPlugins int) (*Catalog, error) {
	if !g.useAI {
		return buildCatalog(staticIdeas(numPlugins)), nil
	}

	log.Info().Int("plugins", numPlugins).Msg("generating plugin catalog via AI...")
	ideas, err := g.generateIdeas(ctx, numPlugins)
	if err != nil || len(ideas) == 0 {
		log.Warn().Err(err).Msg("AI generation incomplete, falling back to static data")
		return buildCatalog(staticIdeas(numPlugins)), nil
	}
	log.Info().Int("plugins", len(ideas)).Msg("AI generation complete")
	return buildCatalog(ideas), nil
}

func (g *Generator) generateIdeas(ctx context.Context, count int) ([]pluginIdea, error) {
	prompt := fmt.Sprintf(`Generate %d realistic fake Homebridge plugins for a smart home enthusiast. Include:
- Popular device integrations (lights, cameras, thermostats, locks, vacuums)
- A few niche community plugins
- About a third not installed (empty installedVersion), only discoverable by search

Return as JSON array with objects containing: name (npm package name starting with homebridge- or a @scope/homebridge-),
displayName, description, author, installedVersion (semver or empty), latestVersion (semver, sometimes newer than installed),
platform (platform identifier or empty), accessory (accessory identifier, only when platform is empty),
childBridge (bool), unpaired (bool, only meaningful with childBridge), disabled (bool, rarely true), verified (bool).`, count)

	return callOpenAI[[]pluginIdea](ctx, g.client, g.model, prompt)
}

func callOpenAI[T any](ctx context.Context, client *openai.Client, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return result, nil
}

// buildCatalog derives config blocks, child bridges, users and a log
// backlog from plugin ideas. Duplicate names keep the first idea.
func buildCatalog(ideas []pluginIdea) *Catalog {
	c := &Catalog{Users: staticUsers()}
	seen := map[string]bool{}

	for _, idea := range ideas {
		if idea.Name == "" || seen[idea.Name] {
			continue
		}
		seen[idea.Name] = true

		p := PluginData{
			Name:             idea.Name,
			DisplayName:      idea.DisplayName,
			Description:      idea.Description,
			Author:           idea.Author,
			InstalledVersion: idea.InstalledVersion,
			LatestVersion:    idea.LatestVersion,
			Verified:         idea.Verified,
			Disabled:         idea.Disabled,
		}
		if p.LatestVersion == "" {
			p.LatestVersion = p.InstalledVersion
		}

		if idea.InstalledVersion != "" {
			block := map[string]any{}
			switch {
			case idea.Platform != "":
				block["platform"] = idea.Platform
				block["name"] = idea.DisplayName
			case idea.Accessory != "":
				block["accessory"] = idea.Accessory
				block["name"] = idea.DisplayName
			}
			if len(block) > 0 {
				if idea.ChildBridge {
					b := BridgeData{
						Username: BridgeUsername(idea.Name),
						Name:     idea.DisplayName,
						Plugin:   idea.Name,
						Pin:      BridgePin(idea.Name),
						Paired:   !idea.Unpaired,
						Stopped:  idea.Disabled,
					}
					block["_bridge"] = map[string]any{"username": b.Username, "port": 0}
					c.ChildBridges = append(c.ChildBridges, b)
				}
				p.Configs = []map[string]any{block}
			}
		}
		c.Plugins = append(c.Plugins, p)
		c.LogLines = append(c.LogLines, startupLines(p)...)
	}
	return c
}

// BridgeUsername derives a stable MAC-style bridge username from a name.
func BridgeUsername(name string) string {
	h := fnv.New64a()
	h.Write([]byte(name))
	sum := h.Sum64()
	parts := []string{"0E"}
	for i := 0; i < 5; i++ {
		parts = append(parts, fmt.Sprintf("%02X", byte(sum>>(8*i))))
	}
	return strings.Join(parts, ":")
}

// BridgePin derives a stable HomeKit-style setup pin from a name.
func BridgePin(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	n := h.Sum32() % 100000000
	return fmt.Sprintf("%03d-%02d-%03d", n/100000, (n/1000)%100, n%1000)
}

func startupLines(p PluginData) []string {
	if p.InstalledVersion == "" {
		return nil
	}
	lines := []string{fmt.Sprintf("[homebridge] Loaded plugin: %s@%s", p.Name, p.InstalledVersion)}
	if p.Disabled {
		lines = append(lines, fmt.Sprintf("[homebridge] Disabled plugin: %s", p.Name))
		return lines
	}
	for _, block := range p.Configs {
		if platform, ok := block["platform"].(string); ok {
			lines = append(lines, fmt.Sprintf("[homebridge] Loading 1 platforms... %s", platform))
		}
		if _, ok := block["_bridge"]; ok {
			lines = append(lines, fmt.Sprintf("[%s] Launched child bridge with PID %d", p.DisplayName, 1000+len(p.Name)))
		}
	}
	return lines
}
