// ABOUTME: User management actions on top of the API client.
// ABOUTME: Validates forms, reports outcomes and ends the session on self-rename.

package users

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/notify"
)

type Client interface {
	Users(ctx context.Context) ([]api.User, error)
	AddUser(ctx context.Context, in api.UserInput) (*api.User, error)
	UpdateUser(ctx context.Context, id int, in api.UserInput) (*api.User, error)
	DeleteUser(ctx context.Context, id int) error
}

// Session is the signed-in identity. *api.Client satisfies it.
type Session interface {
	Session() *api.Session
	Logout()
}

type Manager struct {
	client   Client
	session  Session
	notifier notify.Notifier
}

func NewManager(client Client, session Session, notifier notify.Notifier) *Manager {
	return &Manager{client: client, session: session, notifier: notifier}
}

func (m *Manager) currentUsername() string {
	if m.session == nil {
		return ""
	}
	if s := m.session.Session(); s != nil {
		return s.Username
	}
	return ""
}

func (m *Manager) List(ctx context.Context) ([]api.User, error) {
	list, err := m.client.Users(ctx)
	if err != nil {
		m.notifier.Error(notify.TitleError, failure(err, "Failed to load users"))
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

func (m *Manager) Add(ctx context.Context, form AddForm) (*api.User, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	u, err := m.client.AddUser(ctx, form.input())
	if err != nil {
		log.Error().Err(err).Str("username", form.Username).Msg("failed to add user")
		m.notifier.Error(notify.TitleError, failure(err, "Failed to add user"))
		return nil, fmt.Errorf("add user %s: %w", form.Username, err)
	}
	m.notifier.Success(notify.TitleSuccess, "Added user")
	return u, nil
}

// Update saves form over user. It returns loggedOut=true when the signed-in
// user renamed themselves, in which case the session has been ended.
func (m *Manager) Update(ctx context.Context, user api.User, form EditForm) (loggedOut bool, err error) {
	if err := form.Validate(); err != nil {
		return false, err
	}

	current := m.currentUsername()
	isCurrentUser := current != "" && current == user.Username

	if _, err := m.client.UpdateUser(ctx, user.ID, form.input()); err != nil {
		log.Error().Err(err).Int("id", user.ID).Msg("failed to update user")
		m.notifier.Error(notify.TitleError, failure(err, "Failed to update user"))
		return false, fmt.Errorf("update user %d: %w", user.ID, err)
	}
	m.notifier.Success(notify.TitleSuccess, "Updated user")

	if isCurrentUser && form.Username != current {
		log.Info().Str("from", current).Str("to", form.Username).Msg("current user renamed, logging out")
		m.session.Logout()
		return true, nil
	}
	return false, nil
}

func (m *Manager) Delete(ctx context.Context, user api.User) error {
	if err := m.client.DeleteUser(ctx, user.ID); err != nil {
		m.notifier.Error(notify.TitleError, failure(err, "Failed to delete user"))
		return fmt.Errorf("delete user %d: %w", user.ID, err)
	}
	m.notifier.Success(notify.TitleSuccess, "Deleted user")
	return nil
}

// failure prefers the server's own message.
func failure(err error, fallback string) string {
	if api.StatusOf(err) != 0 {
		if msg := api.Message(err); msg != "" {
			return msg
		}
	}
	return fallback
}
