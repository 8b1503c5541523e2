// ABOUTME: Tests for the accessory reset flow.
// ABOUTME: Checks filtering, rollback on failure and restart target mapping.

package pairings

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/childbridge"
	"github.com/2389/hbx/internal/notify"
)

type fakeClient struct {
	pairings  []api.Pairing
	listErr   error
	removeErr error
	removed   []string
}

func (f *fakeClient) Pairings(ctx context.Context) ([]api.Pairing, error) {
	return f.pairings, f.listErr
}

func (f *fakeClient) RemovePairingAccessories(ctx context.Context, id string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, id)
	return nil
}

func knownTable(usernames ...string) *childbridge.Table {
	t := childbridge.NewTable()
	var rows []childbridge.Status
	for _, u := range usernames {
		rows = append(rows, childbridge.Status{Username: u})
	}
	t.Seed(rows)
	return t
}

func samplePairings() []api.Pairing {
	return []api.Pairing{
		{ID: "main", Username: "00", Category: "bridge", Main: true, DisplayName: "Homebridge"},
		{ID: "p1", Username: "AA", Category: "bridge", DisplayName: "Hue Bridge"},
		{ID: "p2", Username: "BB", Category: "bridge", DisplayName: "Ring Bridge"},
		{ID: "cam", Username: "CC", Category: "camera", DisplayName: "Camera"},
		{ID: "gone", Username: "ZZ", Category: "bridge", DisplayName: "Unknown"},
	}
}

func TestLoadFilters(t *testing.T) {
	flow := NewFlow(&fakeClient{pairings: samplePairings()}, knownTable("00", "AA", "BB", "CC"), &notify.Recorder{})
	got, err := flow.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	if want := []string{"p1", "p2"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestLoadFailureClosesFlow(t *testing.T) {
	rec := &notify.Recorder{}
	flow := NewFlow(&fakeClient{listErr: errors.New("down")}, knownTable(), rec)
	if _, err := flow.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !flow.Closed() || rec.Count(notify.KindError) != 1 {
		t.Errorf("closed=%v notifications=%v", flow.Closed(), rec.All())
	}
	if err := flow.RemoveAccessories(context.Background(), "p1"); err == nil {
		t.Error("closed flow should refuse resets")
	}
}

func TestRemoveAccessoriesTracksDeleted(t *testing.T) {
	client := &fakeClient{pairings: samplePairings()}
	rec := &notify.Recorder{}
	flow := NewFlow(client, knownTable("AA", "BB"), rec)
	ctx := context.Background()
	flow.Load(ctx)

	if err := flow.RemoveAccessories(ctx, "p2"); err != nil {
		t.Fatalf("RemoveAccessories: %v", err)
	}
	if err := flow.RemoveAccessories(ctx, "p1"); err != nil {
		t.Fatalf("RemoveAccessories: %v", err)
	}
	if flow.Deleting() != "" {
		t.Error("deleting should be cleared")
	}
	if !reflect.DeepEqual(flow.Deleted(), []string{"p2", "p1"}) {
		t.Errorf("deleted = %v", flow.Deleted())
	}
	if rec.Count(notify.KindSuccess) != 2 {
		t.Errorf("successes = %d", rec.Count(notify.KindSuccess))
	}

	want := []RestartTarget{
		{DisplayName: "Ring Bridge", Username: "BB"},
		{DisplayName: "Hue Bridge", Username: "AA"},
	}
	if got := flow.RestartTargets(); !reflect.DeepEqual(got, want) {
		t.Errorf("targets = %+v", got)
	}
}

func TestRemoveAccessoriesRollsBack(t *testing.T) {
	client := &fakeClient{pairings: samplePairings(), removeErr: &api.Error{Status: 500, Message: "boom"}}
	rec := &notify.Recorder{}
	flow := NewFlow(client, knownTable("AA"), rec)
	flow.Load(context.Background())

	if err := flow.RemoveAccessories(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}
	if flow.Deleting() != "" || len(flow.Deleted()) != 0 {
		t.Errorf("state not rolled back: deleting=%q deleted=%v", flow.Deleting(), flow.Deleted())
	}
	if rec.Count(notify.KindError) != 1 {
		t.Errorf("errors = %d", rec.Count(notify.KindError))
	}
	if len(flow.RestartTargets()) != 0 {
		t.Error("no restart targets expected")
	}
}

func TestRestartTargetsSkipsVanishedPairings(t *testing.T) {
	client := &fakeClient{pairings: samplePairings()}
	flow := NewFlow(client, knownTable("AA", "BB"), &notify.Recorder{})
	ctx := context.Background()
	flow.Load(ctx)

	client.pairings = samplePairings()[:2]
	flow.RemoveAccessories(ctx, "p2")

	if got := flow.RestartTargets(); len(got) != 0 {
		t.Errorf("targets = %+v, want none", got)
	}
}
