// ABOUTME: Server log line storage backing the log namespace.
// ABOUTME: Services append lines; the platform service tails them to terminals.

package store

import "time"

// LogLine is one line of simulated bridge output.
type LogLine struct {
	ID        int64
	CreatedAt time.Time
	Source    string
	Line      string
}

// AppendLogLine stores a line and returns its id.
func (s *Store) AppendLogLine(source, line string) (int64, error) {
	if source == "" {
		source = "homebridge"
	}
	res, err := s.db.Exec(`INSERT INTO server_log_lines (source, line, created_at) VALUES (?, ?, ?)`, source, line, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// TailLogLines returns the last n lines in insertion order.
func (s *Store) TailLogLines(n int) ([]LogLine, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, source, line FROM (
			SELECT id, created_at, source, line FROM server_log_lines ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogLines(rows)
}

// LogLinesAfter returns every line with an id greater than afterID.
func (s *Store) LogLinesAfter(afterID int64) ([]LogLine, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, source, line FROM server_log_lines WHERE id > ? ORDER BY id ASC
	`, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogLines(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanLogLines(rows rowScanner) ([]LogLine, error) {
	var lines []LogLine
	for rows.Next() {
		var l LogLine
		if err := rows.Scan(&l.ID, &l.CreatedAt, &l.Source, &l.Line); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
