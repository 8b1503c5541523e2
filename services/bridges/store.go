// ABOUTME: Database layer for the bridges service.
// ABOUTME: Stores child bridge status rows and controller pairings.

package bridges

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/childbridge"
)

var ErrNotFound = errors.New("not found")

type BridgeStore struct {
	db *sql.DB
}

func NewBridgeStore(db *sql.DB) (*BridgeStore, error) {
	s := &BridgeStore{db: db}
	if err := s.initTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BridgeStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS child_bridges (
			username TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			name TEXT NOT NULL,
			plugin TEXT NOT NULL,
			pid INTEGER NOT NULL DEFAULT 0,
			pin TEXT NOT NULL,
			setup_uri TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			paired INTEGER NOT NULL DEFAULT 0,
			manually_stopped INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS pairings (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			main INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL,
			display_name TEXT NOT NULL,
			setup_code TEXT NOT NULL DEFAULT '',
			is_paired INTEGER NOT NULL DEFAULT 0,
			accessories INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_child_bridges_plugin ON child_bridges(plugin)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// PairingID is the pairing id for a bridge username: the MAC without colons.
func PairingID(username string) string {
	return strings.ReplaceAll(username, ":", "")
}

// NewIdentity returns a fresh bridge identifier and the setup URI derived
// from it and the pin.
func NewIdentity(pin string) (identifier, setupURI string) {
	identifier = uuid.NewString()
	setupID := strings.ToUpper(strings.ReplaceAll(identifier, "-", "")[:4])
	return identifier, fmt.Sprintf("X-HM://%s%s", strings.ReplaceAll(pin, "-", ""), setupID)
}

const bridgeColumns = `username, identifier, name, plugin, pid, pin, setup_uri, status, paired, manually_stopped`

func scanBridge(row interface{ Scan(...any) error }) (*childbridge.Status, error) {
	b := &childbridge.Status{}
	var status string
	if err := row.Scan(&b.Username, &b.Identifier, &b.Name, &b.Plugin, &b.PID, &b.Pin,
		&b.SetupURI, &status, &b.Paired, &b.ManuallyStopped); err != nil {
		return nil, err
	}
	b.Status = childbridge.State(status)
	return b, nil
}

// UpsertBridge inserts or replaces a child bridge. New rows go last.
func (s *BridgeStore) UpsertBridge(b *childbridge.Status) error {
	_, err := s.db.Exec(`
		INSERT INTO child_bridges (`+bridgeColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM child_bridges))
		ON CONFLICT(username) DO UPDATE SET
			identifier = excluded.identifier,
			name = excluded.name,
			plugin = excluded.plugin,
			pid = excluded.pid,
			pin = excluded.pin,
			setup_uri = excluded.setup_uri,
			status = excluded.status,
			paired = excluded.paired,
			manually_stopped = excluded.manually_stopped,
			updated_at = CURRENT_TIMESTAMP`,
		b.Username, b.Identifier, b.Name, b.Plugin, b.PID, b.Pin, b.SetupURI, string(b.Status), b.Paired, b.ManuallyStopped)
	if err != nil {
		return fmt.Errorf("failed to upsert child bridge %s: %w", b.Username, err)
	}
	return nil
}

func (s *BridgeStore) GetBridge(username string) (*childbridge.Status, error) {
	b, err := scanBridge(s.db.QueryRow(`SELECT `+bridgeColumns+` FROM child_bridges WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListBridges returns every child bridge in insertion order.
func (s *BridgeStore) ListBridges() ([]childbridge.Status, error) {
	rows, err := s.db.Query(`SELECT ` + bridgeColumns + ` FROM child_bridges ORDER BY position, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []childbridge.Status{}
	for rows.Next() {
		b, err := scanBridge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateBridge applies fn to the stored row and writes it back.
func (s *BridgeStore) UpdateBridge(username string, fn func(*childbridge.Status)) (*childbridge.Status, error) {
	b, err := s.GetBridge(username)
	if err != nil {
		return nil, err
	}
	fn(b)
	b.Username = username
	if err := s.UpsertBridge(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BridgeStore) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM child_bridges GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *BridgeStore) UpsertPairing(p *api.Pairing) error {
	_, err := s.db.Exec(`
		INSERT INTO pairings (id, username, main, category, display_name, setup_code, is_paired, accessories)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			main = excluded.main,
			category = excluded.category,
			display_name = excluded.display_name,
			setup_code = excluded.setup_code,
			is_paired = excluded.is_paired,
			accessories = excluded.accessories`,
		p.ID, p.Username, p.Main, p.Category, p.DisplayName, p.SetupCode, p.IsPaired, p.Accessories)
	if err != nil {
		return fmt.Errorf("failed to upsert pairing %s: %w", p.ID, err)
	}
	return nil
}

// ListPairings returns the main pairing first, then the rest by name.
func (s *BridgeStore) ListPairings() ([]api.Pairing, error) {
	rows, err := s.db.Query(`
		SELECT id, username, main, category, display_name, setup_code, is_paired, accessories
		FROM pairings ORDER BY main DESC, display_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []api.Pairing{}
	for rows.Next() {
		var p api.Pairing
		if err := rows.Scan(&p.ID, &p.Username, &p.Main, &p.Category, &p.DisplayName,
			&p.SetupCode, &p.IsPaired, &p.Accessories); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemoveAccessories clears the cached accessories of a pairing. The
// pairing itself stays.
func (s *BridgeStore) RemoveAccessories(id string) error {
	res, err := s.db.Exec(`UPDATE pairings SET accessories = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
