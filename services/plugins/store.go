// ABOUTME: Database layer for the plugins service.
// ABOUTME: Manages the plugins registry table and per-plugin config blocks.

package plugins

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/2389/hbx/internal/store"
)

// ErrNotFound is returned for unknown plugin names.
var ErrNotFound = errors.New("plugin not found")

type PluginStore struct {
	db *sql.DB
}

func NewPluginStore(db *sql.DB) (*PluginStore, error) {
	s := &PluginStore{db: db}
	if err := s.initTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PluginStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS plugins (
			name TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			installed_version TEXT NOT NULL DEFAULT '',
			latest_version TEXT NOT NULL DEFAULT '',
			verified INTEGER NOT NULL DEFAULT 0,
			disabled INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS plugin_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			block TEXT NOT NULL,
			FOREIGN KEY (plugin_name) REFERENCES plugins(name) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_plugin_configs_plugin ON plugin_configs(plugin_name, position)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

type Plugin struct {
	Name             string
	DisplayName      string
	Description      string
	Author           string
	InstalledVersion string
	LatestVersion    string
	Verified         bool
	Disabled         bool
	UpdatedAt        time.Time
}

// Installed reports whether the plugin has an installed version.
func (p *Plugin) Installed() bool {
	return p.InstalledVersion != ""
}

// UpdateAvailable reports whether LatestVersion is newer than the installed
// one. A prerelease is only offered to plugins already on a prerelease.
func (p *Plugin) UpdateAvailable() bool {
	if !p.Installed() || p.LatestVersion == "" {
		return false
	}
	installed, err := semver.NewVersion(p.InstalledVersion)
	if err != nil {
		return false
	}
	latest, err := semver.NewVersion(p.LatestVersion)
	if err != nil {
		return false
	}
	if latest.Prerelease() != "" && installed.Prerelease() == "" {
		return false
	}
	return latest.GreaterThan(installed)
}

const pluginColumns = `name, display_name, description, author, installed_version, latest_version, verified, disabled, updated_at`

func scanPlugin(row interface{ Scan(...any) error }) (*Plugin, error) {
	p := &Plugin{}
	if err := row.Scan(&p.Name, &p.DisplayName, &p.Description, &p.Author,
		&p.InstalledVersion, &p.LatestVersion, &p.Verified, &p.Disabled, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertPlugin inserts or replaces a registry entry, keeping its config.
func (s *PluginStore) UpsertPlugin(p *Plugin) error {
	_, err := s.db.Exec(`
		INSERT INTO plugins (name, display_name, description, author, installed_version, latest_version, verified, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			author = excluded.author,
			installed_version = excluded.installed_version,
			latest_version = excluded.latest_version,
			verified = excluded.verified,
			disabled = excluded.disabled,
			updated_at = CURRENT_TIMESTAMP`,
		p.Name, p.DisplayName, p.Description, p.Author, p.InstalledVersion, p.LatestVersion, p.Verified, p.Disabled)
	if err != nil {
		return fmt.Errorf("failed to upsert plugin %s: %w", p.Name, err)
	}
	return nil
}

func (s *PluginStore) GetPlugin(name string) (*Plugin, error) {
	p, err := scanPlugin(s.db.QueryRow(`SELECT `+pluginColumns+` FROM plugins WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListInstalled returns installed plugins ordered by name.
func (s *PluginStore) ListInstalled() ([]*Plugin, error) {
	return s.query(`SELECT ` + pluginColumns + ` FROM plugins WHERE installed_version != '' ORDER BY name`)
}

// ListAll returns every registry entry ordered by name.
func (s *PluginStore) ListAll(limit, offset int) ([]*Plugin, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(`SELECT `+pluginColumns+` FROM plugins ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
}

// Search matches query against name, display name and description. Exact
// name matches come first, then verified plugins, then by name.
func (s *PluginStore) Search(query string, limit int) ([]*Plugin, error) {
	if limit <= 0 {
		limit = 30
	}
	pattern := "%" + store.EscapeLike(strings.ToLower(query)) + "%"
	return s.query(`
		SELECT `+pluginColumns+` FROM plugins
		WHERE lower(name) LIKE ? ESCAPE '\'
			OR lower(display_name) LIKE ? ESCAPE '\'
			OR lower(description) LIKE ? ESCAPE '\'
		ORDER BY (lower(name) = ?) DESC, verified DESC, name
		LIMIT ?`,
		pattern, pattern, pattern, strings.ToLower(query), limit)
}

func (s *PluginStore) query(q string, args ...any) ([]*Plugin, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Plugin
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PluginStore) SetDisabled(name string, disabled bool) error {
	res, err := s.db.Exec(`UPDATE plugins SET disabled = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?`, disabled, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfigBlocks returns the plugin's config blocks in order. Unknown plugins
// return ErrNotFound; known but unconfigured plugins return an empty slice.
func (s *PluginStore) ConfigBlocks(name string) ([]map[string]any, error) {
	if _, err := s.GetPlugin(name); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT block FROM plugin_configs WHERE plugin_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := []map[string]any{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var block map[string]any
		if err := json.Unmarshal([]byte(raw), &block); err != nil {
			return nil, fmt.Errorf("corrupt config block for %s: %w", name, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// ReplaceConfig swaps all config blocks of a plugin in one transaction.
func (s *PluginStore) ReplaceConfig(name string, blocks []map[string]any) error {
	if _, err := s.GetPlugin(name); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM plugin_configs WHERE plugin_name = ?`, name); err != nil {
		return err
	}
	for i, block := range blocks {
		raw, err := json.Marshal(block)
		if err != nil {
			return fmt.Errorf("failed to encode config block %d: %w", i, err)
		}
		if _, err := tx.Exec(`INSERT INTO plugin_configs (plugin_name, position, block) VALUES (?, ?, ?)`, name, i, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PluginStore) Count() (installed, total int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(CASE WHEN installed_version != '' THEN 1 END), COUNT(*) FROM plugins`).Scan(&installed, &total)
	return installed, total, err
}
