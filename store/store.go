// Package store persists grid state snapshots in a local SQLite database.
// Payloads are zstd-compressed canonical cell listings, keyed by session
// uuid and revision.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	session_uuid TEXT NOT NULL,
	revision INTEGER NOT NULL,
	state_hash TEXT NOT NULL,
	taken_at INTEGER NOT NULL,
	size INTEGER NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (session_uuid, revision)
);
`

// Store is a SQLite-backed snapshot store.
type Store struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens or creates the snapshot database at the given path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty snapshot database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New("creating snapshot database directory failed").Wrap(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New("opening snapshot database failed").Wrap(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL suits the append-style snapshot workload.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New("configuring snapshot database failed").Wrap(err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.New("initializing snapshot schema failed").Wrap(err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, errors.New("creating snapshot compressor failed").Wrap(err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, errors.New("creating snapshot decompressor failed").Wrap(err)
	}

	return &Store{
		db:      db,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// Save persists a state payload. Saving the same revision twice overwrites
// the stored snapshot.
func (s *Store) Save(ctx context.Context, sessionUUID string, revision uint64, stateHash string, payload []byte) (wire.SnapshotInfo, error) {
	compressed := s.encoder.EncodeAll(payload, nil)

	info := wire.SnapshotInfo{
		Revision:  revision,
		StateHash: stateHash,
		TakenAt:   wire.Now(),
		Size:      len(compressed),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots
			(session_uuid, revision, state_hash, taken_at, size, payload)
			VALUES (?, ?, ?, ?, ?, ?);`,
		sessionUUID,
		info.Revision,
		info.StateHash,
		info.TakenAt,
		info.Size,
		compressed,
	)
	if err != nil {
		return wire.SnapshotInfo{}, errors.New("storing snapshot failed").
			WithTag("session_uuid", sessionUUID).
			WithTag("revision", revision).
			Wrap(err)
	}
	return info, nil
}

// Load returns the payload stored for the given revision. Revision zero
// loads the latest snapshot.
func (s *Store) Load(ctx context.Context, sessionUUID string, revision uint64) ([]byte, wire.SnapshotInfo, error) {
	query := `SELECT revision, state_hash, taken_at, size, payload
		FROM snapshots WHERE session_uuid = ?`
	args := []any{sessionUUID}

	if revision != 0 {
		query += ` AND revision = ?`
		args = append(args, revision)
	}
	query += ` ORDER BY revision DESC LIMIT 1;`

	var info wire.SnapshotInfo
	var compressed []byte

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&info.Revision,
		&info.StateHash,
		&info.TakenAt,
		&info.Size,
		&compressed,
	)
	if err == sql.ErrNoRows {
		return nil, wire.SnapshotInfo{}, errors.New("snapshot not found").
			WithType(grid.ErrTypeNotFound).
			WithTag("session_uuid", sessionUUID).
			WithTag("revision", revision)
	}
	if err != nil {
		return nil, wire.SnapshotInfo{}, errors.New("loading snapshot failed").
			WithTag("session_uuid", sessionUUID).
			WithTag("revision", revision).
			Wrap(err)
	}

	payload, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, wire.SnapshotInfo{}, errors.New("decompressing snapshot failed").
			WithTag("session_uuid", sessionUUID).
			WithTag("revision", info.Revision).
			Wrap(err)
	}
	return payload, info, nil
}

// List returns the snapshots stored for a session, oldest first.
func (s *Store) List(ctx context.Context, sessionUUID string) ([]wire.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT revision, state_hash, taken_at, size
			FROM snapshots WHERE session_uuid = ?
			ORDER BY revision ASC;`,
		sessionUUID,
	)
	if err != nil {
		return nil, errors.New("listing snapshots failed").
			WithTag("session_uuid", sessionUUID).
			Wrap(err)
	}
	defer rows.Close()

	var infos []wire.SnapshotInfo
	for rows.Next() {
		var info wire.SnapshotInfo
		if err := rows.Scan(&info.Revision, &info.StateHash, &info.TakenAt, &info.Size); err != nil {
			return nil, errors.New("scanning snapshot row failed").Wrap(err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("reading snapshot rows failed").Wrap(err)
	}
	return infos, nil
}
