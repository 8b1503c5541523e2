// ABOUTME: Database layer for the accounts service.
// ABOUTME: Users with bcrypt password hashes.

package accounts

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/hbx/internal/api"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) (*UserStore, error) {
	s := &UserStore{db: db}
	if err := s.initTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *UserStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			admin INTEGER NOT NULL DEFAULT 0,
			otp_active INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *UserStore) CreateUser(in api.UserInput) (*api.User, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec(`INSERT INTO users (username, name, password_hash, admin) VALUES (?, ?, ?, ?)`,
		in.Username, in.Name, hash, in.Admin)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateUsername
	}
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUser(int(id))
}

const userColumns = `id, username, name, admin, otp_active`

func (s *UserStore) GetUser(id int) (*api.User, error) {
	u := &api.User{}
	err := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Admin, &u.OTPActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) ListUsers() ([]api.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []api.User{}
	for rows.Next() {
		var u api.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Admin, &u.OTPActive); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser overwrites username, name and admin. The password changes only
// when in.Password is set.
func (s *UserStore) UpdateUser(id int, in api.UserInput) (*api.User, error) {
	var (
		res sql.Result
		err error
	)
	if in.Password != "" {
		hash, herr := hashPassword(in.Password)
		if herr != nil {
			return nil, herr
		}
		res, err = s.db.Exec(`UPDATE users SET username = ?, name = ?, admin = ?, password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Username, in.Name, in.Admin, hash, id)
	} else {
		res, err = s.db.Exec(`UPDATE users SET username = ?, name = ?, admin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Username, in.Name, in.Admin, id)
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicateUsername
	}
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(id)
}

func (s *UserStore) DeleteUser(id int) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) CountAdmins() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE admin = 1`).Scan(&n)
	return n, err
}

// Authenticate checks a username and password pair.
func (s *UserStore) Authenticate(username, password string) (*api.User, error) {
	u := &api.User{}
	var hash string
	err := s.db.QueryRow(`SELECT `+userColumns+`, password_hash FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Admin, &u.OTPActive, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
