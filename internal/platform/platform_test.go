// ABOUTME: Tests for host platform tools.

package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/notify"
)

type fakeClient struct {
	err    error
	ramErr error
	calls  []string
}

func (f *fakeClient) ShutdownHost(ctx context.Context) error {
	f.calls = append(f.calls, "shutdown")
	return f.err
}

func (f *fakeClient) RestartHost(ctx context.Context) error {
	f.calls = append(f.calls, "restart")
	return f.err
}

func (f *fakeClient) CPU(ctx context.Context) (*api.CPUStatus, error) {
	return &api.CPUStatus{CurrentLoad: 12.5, Cores: 4}, nil
}

func (f *fakeClient) RAM(ctx context.Context) (*api.RAMStatus, error) {
	if f.ramErr != nil {
		return nil, f.ramErr
	}
	return &api.RAMStatus{Total: 1024, Used: 256}, nil
}

func TestShutdownAndRestart(t *testing.T) {
	client := &fakeClient{}
	rec := &notify.Recorder{}
	tools := New(client, rec)

	if err := tools.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := tools.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(client.calls) != 2 || len(rec.All()) != 0 {
		t.Errorf("calls=%v notifications=%v", client.calls, rec.All())
	}
}

func TestShutdownFailureNotifies(t *testing.T) {
	rec := &notify.Recorder{}
	tools := New(&fakeClient{err: errors.New("denied")}, rec)
	if err := tools.Shutdown(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if rec.Count(notify.KindError) != 1 {
		t.Errorf("notifications = %v", rec.All())
	}
}

func TestStatus(t *testing.T) {
	st, err := New(&fakeClient{}, &notify.Recorder{}).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CPU.Cores != 4 || st.RAM.Total != 1024 {
		t.Errorf("status = %+v", st)
	}

	if _, err := New(&fakeClient{ramErr: errors.New("x")}, &notify.Recorder{}).Status(context.Background()); err == nil {
		t.Error("expected ram error")
	}
}
