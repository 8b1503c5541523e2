// ABOUTME: Tests for user forms and the user manager.
// ABOUTME: Uses a fake client and a fake session.

package users

import (
	"context"
	"errors"
	"testing"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/notify"
)

type fakeClient struct {
	updated   []api.UserInput
	updateErr error
	added     []api.UserInput
	deleted   []int
}

func (f *fakeClient) Users(ctx context.Context) ([]api.User, error) {
	return []api.User{{ID: 1, Username: "admin"}}, nil
}

func (f *fakeClient) AddUser(ctx context.Context, in api.UserInput) (*api.User, error) {
	f.added = append(f.added, in)
	return &api.User{ID: 2, Username: in.Username, Name: in.Name, Admin: in.Admin}, nil
}

func (f *fakeClient) UpdateUser(ctx context.Context, id int, in api.UserInput) (*api.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated = append(f.updated, in)
	return &api.User{ID: id, Username: in.Username}, nil
}

func (f *fakeClient) DeleteUser(ctx context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSession struct {
	username  string
	loggedOut bool
}

func (s *fakeSession) Session() *api.Session {
	if s.loggedOut {
		return nil
	}
	return &api.Session{Username: s.username}
}

func (s *fakeSession) Logout() { s.loggedOut = true }

func TestEditFormValidation(t *testing.T) {
	tests := []struct {
		name   string
		form   EditForm
		fields []string
	}{
		{"valid without password", EditForm{Username: "a", Name: "A"}, nil},
		{"valid with password", EditForm{Username: "a", Name: "A", Password: "x", PasswordConfirm: "x"}, nil},
		{"mismatch", EditForm{Username: "a", Name: "A", Password: "x", PasswordConfirm: "y"}, []string{"passwordConfirm"}},
		{"missing fields", EditForm{}, []string{"username", "name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs *ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			for _, f := range tt.fields {
				if !verrs.Has(f) {
					t.Errorf("missing error for %s in %v", f, verrs)
				}
			}
		})
	}
}

func TestAddFormRequiresPassword(t *testing.T) {
	err := AddForm{Username: "a", Name: "A"}.Validate()
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("password") {
		t.Errorf("expected password error, got %v", err)
	}
}

func TestUpdateCurrentUserRenameLogsOut(t *testing.T) {
	client := &fakeClient{}
	sess := &fakeSession{username: "admin"}
	rec := &notify.Recorder{}
	m := NewManager(client, sess, rec)
	user := api.User{ID: 1, Username: "admin", Name: "Admin"}

	form := EditFormFor(user)
	form.Username = "root"
	loggedOut, err := m.Update(context.Background(), user, form)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !loggedOut || !sess.loggedOut {
		t.Error("renaming the current user should log out")
	}
	if rec.Count(notify.KindSuccess) != 1 {
		t.Errorf("notifications = %v", rec.All())
	}
}

func TestUpdateOtherUserKeepsSession(t *testing.T) {
	sess := &fakeSession{username: "admin"}
	m := NewManager(&fakeClient{}, sess, &notify.Recorder{})
	user := api.User{ID: 3, Username: "bob", Name: "Bob"}
	form := EditFormFor(user)
	form.Username = "robert"

	loggedOut, err := m.Update(context.Background(), user, form)
	if err != nil || loggedOut || sess.loggedOut {
		t.Errorf("loggedOut=%v err=%v", loggedOut, err)
	}

	self := api.User{ID: 1, Username: "admin", Name: "Admin"}
	form = EditFormFor(self)
	form.Name = "New Name"
	if loggedOut, _ := m.Update(context.Background(), self, form); loggedOut {
		t.Error("editing own name without rename should not log out")
	}
}

func TestUpdateFailureUsesServerMessage(t *testing.T) {
	rec := &notify.Recorder{}
	client := &fakeClient{updateErr: &api.Error{Status: 409, Message: "Username already exists"}}
	m := NewManager(client, &fakeSession{username: "admin"}, rec)
	user := api.User{ID: 1, Username: "admin", Name: "Admin"}

	if _, err := m.Update(context.Background(), user, EditFormFor(user)); err == nil {
		t.Fatal("expected error")
	}
	all := rec.All()
	if len(all) != 1 || all[0].Message != "Username already exists" {
		t.Errorf("notifications = %+v", all)
	}

	client.updateErr = errors.New("connection refused")
	m.Update(context.Background(), user, EditFormFor(user))
	if got := rec.All()[1].Message; got != "Failed to update user" {
		t.Errorf("fallback message = %q", got)
	}
}

func TestInvalidFormDoesNotCallServer(t *testing.T) {
	client := &fakeClient{}
	m := NewManager(client, &fakeSession{}, &notify.Recorder{})
	_, err := m.Update(context.Background(), api.User{ID: 1}, EditForm{Username: "a", Name: "A", Password: "x"})
	if err == nil || len(client.updated) != 0 {
		t.Errorf("err=%v updated=%v", err, client.updated)
	}
}

func TestAddAndDelete(t *testing.T) {
	client := &fakeClient{}
	rec := &notify.Recorder{}
	m := NewManager(client, &fakeSession{}, rec)

	u, err := m.Add(context.Background(), AddForm{Username: "c", Name: "C", Password: "pw", PasswordConfirm: "pw"})
	if err != nil || u.Username != "c" {
		t.Fatalf("Add = %+v, %v", u, err)
	}
	if err := m.Delete(context.Background(), *u); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(client.deleted) != 1 || client.deleted[0] != 2 {
		t.Errorf("deleted = %v", client.deleted)
	}
	if rec.Count(notify.KindSuccess) != 2 {
		t.Errorf("successes = %d", rec.Count(notify.KindSuccess))
	}
}
