// Package tileprocess implements the tile_assignment process, dispatching
// on its "stage" argument to the tilestore.Store operations, grounded on
// original_source/titiler/openeo/processes/implementations/tile_assignment.py.
package tileprocess

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/openeocore/internal/authuser"
	"github.com/MeKo-Tech/openeocore/internal/tilestore"
)

// Request is the tile_assignment process's arguments (spec §4.8).
type Request struct {
	Zoom      int
	XRange    [2]int
	YRange    [2]int
	Stage     string
	ServiceID string
	User      authuser.User
	// ControlUser, when set, lets an admin caller act on behalf of
	// another user's claim instead of their own (spec §4.8's
	// control_user admin bypass).
	ControlUser string
}

// userFor returns the user id the operation should act on: ControlUser
// when set and the caller is an admin, otherwise the caller's own id.
func userFor(req Request) string {
	if req.ControlUser != "" && req.User.Admin {
		return req.ControlUser
	}
	return req.User.ID
}

// Run executes the tile_assignment process against store.
func Run(ctx context.Context, store tilestore.Store, req Request) (tilestore.Assignment, error) {
	userID := userFor(req)

	switch req.Stage {
	case "claim":
		return store.ClaimTile(ctx, req.ServiceID, userID, req.Zoom, req.XRange, req.YRange)
	case "release":
		return store.ReleaseTile(ctx, req.ServiceID, userID)
	case "submit":
		return store.SubmitTile(ctx, req.ServiceID, userID)
	case "force-release":
		current, ok, err := store.GetUserTile(ctx, req.ServiceID, userID)
		if err != nil {
			return tilestore.Assignment{}, err
		}
		if !ok {
			return tilestore.Assignment{}, fmt.Errorf("tileprocess: force-release requires an existing claim")
		}
		return store.ForceReleaseTile(ctx, req.ServiceID, current.X, current.Y, current.Z)
	default:
		return tilestore.Assignment{}, fmt.Errorf("tileprocess: invalid stage %q", req.Stage)
	}
}
