// Package tilestore implements the tile-assignment persistence layer: a
// transactional (service_id, x, y, z) claim/release/submit store, grounded
// on original_source/titiler/openeo/services/sqlalchemy_tile.py and the
// sqlite/PRAGMA conventions of the teacher's internal/mbtiles/writer.go.
package tilestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/MeKo-Tech/openeocore/internal/oeerrors"
)

// Assignment is a single claimed/submitted tile row. Data carries the
// caller-opaque JSON payload merged in by UpdateTile (spec §4.8's
// update(service_id, user_id, json_data)).
type Assignment struct {
	ServiceID string
	UserID    string
	X, Y, Z   int
	Stage     string
	Data      map[string]any
}

// Store is the tile-assignment persistence contract (spec §4.8), grounded
// on services/base.py's TileAssignmentStore ABC.
type Store interface {
	ClaimTile(ctx context.Context, serviceID, userID string, zoom int, xRange, yRange [2]int) (Assignment, error)
	ReleaseTile(ctx context.Context, serviceID, userID string) (Assignment, error)
	SubmitTile(ctx context.Context, serviceID, userID string) (Assignment, error)
	ForceReleaseTile(ctx context.Context, serviceID string, x, y, z int) (Assignment, error)
	GetUserTile(ctx context.Context, serviceID, userID string) (Assignment, bool, error)
	UpdateTile(ctx context.Context, serviceID, userID string, jsonData map[string]any) (Assignment, error)
	GetAllTiles(ctx context.Context, serviceID string) ([]Assignment, error)
}

// SQLStore is the modernc.org/sqlite-backed Store implementation.
type SQLStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite-backed tile store at path,
// applying the same WAL/synchronous/cache PRAGMA tuning as the teacher's
// mbtiles writer.
func Open(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tilestore: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=50000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("tilestore: pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS tile_assignments (
	service_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	z          INTEGER NOT NULL,
	stage      TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	UNIQUE(service_id, x, y, z)
);
CREATE INDEX IF NOT EXISTS idx_tile_assignments_user ON tile_assignments(service_id, user_id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tilestore: schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// scanAssignment scans a (service_id, user_id, x, y, z, stage, data) row,
// decoding the data column's JSON text into Assignment.Data.
func scanAssignment(row interface {
	Scan(dest ...any) error
}) (Assignment, error) {
	var a Assignment
	var data string
	if err := row.Scan(&a.ServiceID, &a.UserID, &a.X, &a.Y, &a.Z, &a.Stage, &data); err != nil {
		return Assignment{}, err
	}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &a.Data); err != nil {
			return Assignment{}, fmt.Errorf("tilestore: decoding data column: %w", err)
		}
	}
	return a, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure, the
// error text both mattn/go-sqlite3 and modernc.org/sqlite report for a
// (service_id, x, y, z) collision.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const assignmentColumns = `service_id, user_id, x, y, z, stage, data`

// GetUserTile returns the caller's current claim for serviceID, if any.
func (s *SQLStore) GetUserTile(ctx context.Context, serviceID, userID string) (Assignment, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM tile_assignments WHERE service_id = ? AND user_id = ?`,
		serviceID, userID)
	a, err := scanAssignment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Assignment{}, false, nil
		}
		return Assignment{}, false, fmt.Errorf("tilestore: get_user_tile: %w", err)
	}
	return a, true, nil
}

// GetAllTiles returns every assigned tile for serviceID.
func (s *SQLStore) GetAllTiles(ctx context.Context, serviceID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM tile_assignments WHERE service_id = ?`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("tilestore: get_all_tiles: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("tilestore: get_all_tiles scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClaimTile claims a random unassigned tile within the grid for userID,
// idempotently returning the caller's existing claim if one already
// exists (sqlalchemy_tile.py's claim_tile). A losing race against a
// concurrent claimant on the same (x, y) re-selects from the remaining
// candidates until the range is exhausted (spec §4.8/§9).
func (s *SQLStore) ClaimTile(ctx context.Context, serviceID, userID string, zoom int, xRange, yRange [2]int) (Assignment, error) {
	if existing, ok, err := s.GetUserTile(ctx, serviceID, userID); err != nil {
		return Assignment{}, err
	} else if ok {
		return existing, nil
	}

	tried := map[[2]int]bool{}
	for {
		pick, err := s.claimOnce(ctx, serviceID, userID, zoom, xRange, yRange, tried)
		if err == errClaimConflict {
			continue
		}
		return pick, err
	}
}

var errClaimConflict = fmt.Errorf("tilestore: claim conflict, retry")

// claimOnce attempts a single claim transaction, excluding any (x, y)
// already recorded in tried (prior losing picks in this ClaimTile call).
// Returns errClaimConflict when the insert lost a race to a concurrent
// claimant, signalling the caller to re-select and retry.
func (s *SQLStore) claimOnce(ctx context.Context, serviceID, userID string, zoom int, xRange, yRange [2]int, tried map[[2]int]bool) (Assignment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, fmt.Errorf("tilestore: claim_tile begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT x, y FROM tile_assignments WHERE service_id = ? AND z = ?`, serviceID, zoom)
	if err != nil {
		return Assignment{}, fmt.Errorf("tilestore: claim_tile query assigned: %w", err)
	}
	assigned := map[[2]int]bool{}
	for rows.Next() {
		var x, y int
		if err := rows.Scan(&x, &y); err != nil {
			rows.Close()
			return Assignment{}, err
		}
		assigned[[2]int{x, y}] = true
	}
	rows.Close()

	var available [][2]int
	for x := xRange[0]; x <= xRange[1]; x++ {
		for y := yRange[0]; y <= yRange[1]; y++ {
			coord := [2]int{x, y}
			if !assigned[coord] && !tried[coord] {
				available = append(available, coord)
			}
		}
	}
	if len(available) == 0 {
		return Assignment{}, oeerrors.NewNoTileAvailable(serviceID, userID)
	}

	pick := available[rand.Intn(len(available))]
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tile_assignments (service_id, user_id, x, y, z, stage, data) VALUES (?, ?, ?, ?, ?, 'claimed', '{}')`,
		serviceID, userID, pick[0], pick[1], zoom)
	if err != nil {
		if isUniqueViolation(err) {
			tried[pick] = true
			return Assignment{}, errClaimConflict
		}
		return Assignment{}, fmt.Errorf("tilestore: claim_tile insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			tried[pick] = true
			return Assignment{}, errClaimConflict
		}
		return Assignment{}, fmt.Errorf("tilestore: claim_tile commit: %w", err)
	}

	return Assignment{ServiceID: serviceID, UserID: userID, X: pick[0], Y: pick[1], Z: zoom, Stage: "claimed", Data: map[string]any{}}, nil
}

// ReleaseTile releases the caller's current claim, refusing if it has
// already been submitted.
func (s *SQLStore) ReleaseTile(ctx context.Context, serviceID, userID string) (Assignment, error) {
	current, ok, err := s.GetUserTile(ctx, serviceID, userID)
	if err != nil {
		return Assignment{}, err
	}
	if !ok {
		return Assignment{}, oeerrors.NewTileNotAssigned(serviceID, userID)
	}
	if current.Stage == "submitted" {
		return Assignment{}, oeerrors.NewTileAlreadyLocked(current.X, current.Y, current.Z, serviceID, userID)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tile_assignments WHERE service_id = ? AND user_id = ?`, serviceID, userID); err != nil {
		return Assignment{}, fmt.Errorf("tilestore: release_tile: %w", err)
	}

	current.Stage = "released"
	return current, nil
}

// SubmitTile marks the caller's current claim as submitted.
func (s *SQLStore) SubmitTile(ctx context.Context, serviceID, userID string) (Assignment, error) {
	current, ok, err := s.GetUserTile(ctx, serviceID, userID)
	if err != nil {
		return Assignment{}, err
	}
	if !ok {
		return Assignment{}, oeerrors.NewTileNotAssigned(serviceID, userID)
	}
	if current.Stage == "submitted" {
		return Assignment{}, oeerrors.NewTileAlreadyLocked(current.X, current.Y, current.Z, serviceID, userID)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE tile_assignments SET stage = 'submitted' WHERE service_id = ? AND user_id = ?`, serviceID, userID); err != nil {
		return Assignment{}, fmt.Errorf("tilestore: submit_tile: %w", err)
	}

	current.Stage = "submitted"
	return current, nil
}

// ForceReleaseTile deletes the assignment at the exact (x, y, z) coordinate
// regardless of who holds it or its stage, matching sqlalchemy_tile.py's
// force_release_tile and the tile_assignment process's use of the
// caller's OWN current tile coordinates (never an arbitrary coordinate
// supplied by a non-admin caller; enforced one layer up in tileprocess).
func (s *SQLStore) ForceReleaseTile(ctx context.Context, serviceID string, x, y, z int) (Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM tile_assignments WHERE service_id = ? AND x = ? AND y = ? AND z = ?`,
		serviceID, x, y, z)
	a, err := scanAssignment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Assignment{}, oeerrors.NewTileNotAssigned(serviceID, "")
		}
		return Assignment{}, fmt.Errorf("tilestore: force_release_tile: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tile_assignments WHERE service_id = ? AND x = ? AND y = ? AND z = ?`, serviceID, x, y, z); err != nil {
		return Assignment{}, fmt.Errorf("tilestore: force_release_tile delete: %w", err)
	}

	a.Stage = "released"
	return a, nil
}

// UpdateTile merges jsonData into the caller's current claim's data column,
// matching sqlalchemy_tile.py's update(service_id, user_id, json_data):
// existing keys are kept unless jsonData overwrites them, it never touches
// stage, and the merged result is persisted back as a whole.
func (s *SQLStore) UpdateTile(ctx context.Context, serviceID, userID string, jsonData map[string]any) (Assignment, error) {
	current, ok, err := s.GetUserTile(ctx, serviceID, userID)
	if err != nil {
		return Assignment{}, err
	}
	if !ok {
		return Assignment{}, oeerrors.NewTileNotAssigned(serviceID, userID)
	}

	merged := make(map[string]any, len(current.Data)+len(jsonData))
	for k, v := range current.Data {
		merged[k] = v
	}
	for k, v := range jsonData {
		merged[k] = v
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return Assignment{}, fmt.Errorf("tilestore: update_tile encoding data: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE tile_assignments SET data = ? WHERE service_id = ? AND user_id = ?`, string(encoded), serviceID, userID); err != nil {
		return Assignment{}, fmt.Errorf("tilestore: update_tile: %w", err)
	}

	current.Data = merged
	return current, nil
}
