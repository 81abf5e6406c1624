package tileprocess

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/openeocore/internal/authuser"
	"github.com/MeKo-Tech/openeocore/internal/tilestore"
)

func openTestStore(t *testing.T) *tilestore.SQLStore {
	t.Helper()
	store, err := tilestore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunClaimThenSubmit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	claimed, err := Run(ctx, store, Request{
		Zoom: 4, XRange: [2]int{0, 1}, YRange: [2]int{0, 1},
		Stage: "claim", ServiceID: "svc", User: authuser.User{ID: "alice"},
	})
	if err != nil {
		t.Fatal(err)
	}

	submitted, err := Run(ctx, store, Request{
		Stage: "submit", ServiceID: "svc", User: authuser.User{ID: "alice"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if submitted.X != claimed.X || submitted.Y != claimed.Y {
		t.Fatalf("submit returned a different tile than was claimed: %+v vs %+v", submitted, claimed)
	}
	if submitted.Stage != "submitted" {
		t.Fatalf("got stage %q, want submitted", submitted.Stage)
	}
}

func TestRunForceReleaseRequiresExistingClaim(t *testing.T) {
	store := openTestStore(t)
	_, err := Run(context.Background(), store, Request{
		Stage: "force-release", ServiceID: "svc", User: authuser.User{ID: "alice"},
	})
	if err == nil {
		t.Fatal("expected an error when force-releasing without a claim")
	}
}

func TestRunControlUserBypassRequiresAdmin(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := Run(ctx, store, Request{
		Zoom: 4, XRange: [2]int{0, 0}, YRange: [2]int{0, 0},
		Stage: "claim", ServiceID: "svc", User: authuser.User{ID: "alice"},
	}); err != nil {
		t.Fatal(err)
	}

	// A non-admin's control_user request is ignored: it still acts as itself.
	assignment, err := Run(ctx, store, Request{
		Stage: "release", ServiceID: "svc",
		User: authuser.User{ID: "bob", Admin: false}, ControlUser: "alice",
	})
	if err == nil {
		t.Fatal("expected bob's release of alice's tile to fail since bob is not an admin")
	}
	_ = assignment
}

func TestRunInvalidStage(t *testing.T) {
	store := openTestStore(t)
	_, err := Run(context.Background(), store, Request{
		Stage: "bogus", ServiceID: "svc", User: authuser.User{ID: "alice"},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid stage")
	}
}
