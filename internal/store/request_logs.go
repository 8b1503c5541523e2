// ABOUTME: Request log storage operations.
// ABOUTME: Inserts and queries the HTTP request log shown on the admin dashboard.

package store

import "time"

// RequestLog represents an HTTP request log entry
type RequestLog struct {
	ID           int64
	Timestamp    time.Time
	ServiceName  string
	Method       string
	Path         string
	StatusCode   int
	DurationMs   int
	UserID       string
	IPAddress    string
	UserAgent    string
	Error        string
	RequestBody  string
	ResponseBody string
}

// LogRequest inserts a request log entry
func (s *Store) LogRequest(entry *RequestLog) error {
	_, err := s.db.Exec(`
		INSERT INTO request_logs (service_name, method, path, status_code, duration_ms, user_id, ip_address, user_agent, error, request_body, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ServiceName, entry.Method, entry.Path, entry.StatusCode, entry.DurationMs, entry.UserID, entry.IPAddress, entry.UserAgent, entry.Error, entry.RequestBody, entry.ResponseBody)
	return err
}

// RequestLogQuery represents filters for request logs
type RequestLogQuery struct {
	Limit       int
	Offset      int
	ServiceName string
	Method      string
	PathPrefix  string
	StatusCode  int
}

// RequestLogStats represents aggregate statistics
type RequestLogStats struct {
	TotalRequests   int
	ErrorRequests   int
	AvgDurationMs   int
	UniqueEndpoints int
}

const requestLogColumns = `id, timestamp, COALESCE(service_name, ''), method, path, status_code, duration_ms,
	COALESCE(user_id, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(error, ''),
	COALESCE(request_body, ''), COALESCE(response_body, '')`

// GetRequestLogs retrieves request logs with filtering, newest first
func (s *Store) GetRequestLogs(q *RequestLogQuery) ([]*RequestLog, error) {
	query := `SELECT ` + requestLogColumns + ` FROM request_logs WHERE 1=1`
	args := []any{}

	if q.ServiceName != "" {
		query += " AND service_name = ?"
		args = append(args, q.ServiceName)
	}
	if q.Method != "" {
		query += " AND method = ?"
		args = append(args, q.Method)
	}
	if q.PathPrefix != "" {
		query += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, EscapeLike(q.PathPrefix)+"%")
	}
	if q.StatusCode > 0 {
		query += " AND status_code = ?"
		args = append(args, q.StatusCode)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*RequestLog
	for rows.Next() {
		entry := &RequestLog{}
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.ServiceName, &entry.Method, &entry.Path, &entry.StatusCode,
			&entry.DurationMs, &entry.UserID, &entry.IPAddress, &entry.UserAgent, &entry.Error,
			&entry.RequestBody, &entry.ResponseBody); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// GetRequestLogStats returns aggregate statistics
func (s *Store) GetRequestLogStats() (*RequestLogStats, error) {
	stats := &RequestLogStats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0),
		       CAST(COALESCE(AVG(duration_ms), 0) AS INTEGER),
		       COUNT(DISTINCT path)
		FROM request_logs
	`).Scan(&stats.TotalRequests, &stats.ErrorRequests, &stats.AvgDurationMs, &stats.UniqueEndpoints)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetServiceRequestCount returns the number of requests for a service since a given time
func (s *Store) GetServiceRequestCount(serviceName string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM request_logs
		WHERE service_name = ? AND timestamp >= ?
	`, serviceName, since).Scan(&count)
	return count, err
}

// GetServiceErrorRate returns the error percentage for a service since a given time
func (s *Store) GetServiceErrorRate(serviceName string, since time.Time) (float64, error) {
	var total, failed int
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0)
		FROM request_logs
		WHERE service_name = ? AND timestamp >= ?
	`, serviceName, since).Scan(&total, &failed)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(failed) / float64(total) * 100.0, nil
}
