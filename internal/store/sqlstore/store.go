package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pliu/hush/internal/models"
	"github.com/pliu/hush/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

var _ store.Store = (*SQLStore)(nil)

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// One connection: an in-memory database exists per connection, and
		// sqlite serialises writers anyway.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		passcode_hash TEXT NOT NULL DEFAULT '',
		privileged BOOLEAN NOT NULL DEFAULT FALSE,
		owner_token TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		expires_at BIGINT
	);

	CREATE TABLE IF NOT EXISTS members (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		token TEXT NOT NULL,
		UNIQUE (room_id, token)
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		room_id TEXT NOT NULL,
		sender_token TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		iv TEXT NOT NULL,
		step BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		member_token TEXT NOT NULL DEFAULT '',
		expires_at BIGINT
	);

	CREATE INDEX IF NOT EXISTS idx_members_room ON members (room_id);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_id);
	`

	if s.driverName == "postgres" {
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
	}

	_, err := s.db.Exec(query)
	return err
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func millis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64)
	return &t
}

func (s *SQLStore) CreateRoom(ctx context.Context, room *models.Room) error {
	query := s.rebind("INSERT INTO rooms (id, mode, passcode_hash, privileged, owner_token, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query,
		room.ID, string(room.Mode()), room.PasscodeHash(), room.Privileged(), room.OwnerToken,
		room.CreatedAt.UnixMilli(), millis(room.ExpiresAt))
	return err
}

func (s *SQLStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var (
		mode, hash, owner string
		privileged        bool
		createdAt         int64
		expiresAt         sql.NullInt64
	)
	query := s.rebind(`
		SELECT mode, passcode_hash, privileged, owner_token, created_at, expires_at
		FROM rooms
		WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)
	`)
	err := s.db.QueryRowContext(ctx, query, roomID, time.Now().UnixMilli()).
		Scan(&mode, &hash, &privileged, &owner, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	kind, err := models.NewKind(models.Mode(mode), hash, privileged)
	if err != nil {
		return nil, fmt.Errorf("room %s: stored shape: %w", roomID, err)
	}

	connected, err := s.members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &models.Room{
		ID:         roomID,
		Kind:       kind,
		Connected:  connected,
		OwnerToken: owner,
		CreatedAt:  time.UnixMilli(createdAt),
		ExpiresAt:  fromMillis(expiresAt),
	}, nil
}

func (s *SQLStore) members(ctx context.Context, roomID string) ([]string, error) {
	query := s.rebind("SELECT token FROM members WHERE room_id = ? ORDER BY seq ASC")
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// lockRoomQuery serialises concurrent joins of one room. sqlite already runs
// a single writer, so it needs no lock.
func lockRoomQuery(driverName string) string {
	if driverName == "postgres" {
		return "SELECT id FROM rooms WHERE id = $1 FOR UPDATE"
	}
	return ""
}

func (s *SQLStore) AddMember(ctx context.Context, roomID, token string, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if limit > 0 {
		if q := lockRoomQuery(s.driverName); q != "" {
			if _, err := tx.ExecContext(ctx, q, roomID); err != nil {
				return fmt.Errorf("lock room: %w", err)
			}
		}
		query := s.rebind(`
			INSERT INTO members (room_id, token)
			SELECT ?, ?
			WHERE (SELECT COUNT(*) FROM members WHERE room_id = ?) < ?
		`)
		result, err := tx.ExecContext(ctx, query, roomID, token, roomID, limit)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrRoomFull
		}
	} else {
		query := s.rebind("INSERT INTO members (room_id, token) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, query, roomID, token); err != nil {
			return err
		}
	}

	// The first member to land owns the room.
	query := s.rebind("UPDATE rooms SET owner_token = ? WHERE id = ? AND owner_token = ''")
	if _, err := tx.ExecContext(ctx, query, token, roomID); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteRoom(ctx context.Context, roomID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM messages WHERE room_id = ?",
		"DELETE FROM members WHERE room_id = ?",
		"DELETE FROM rooms WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), roomID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) AppendMessage(ctx context.Context, m *models.Message, expiresAt *time.Time) error {
	query := s.rebind(`
		INSERT INTO messages (id, room_id, sender_token, ciphertext, iv, step, created_at, member_token, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.RoomID, m.SenderToken, m.Ciphertext, m.IV, int64(m.Step), m.Timestamp, m.MemberToken, millis(expiresAt))
	return err
}

func (s *SQLStore) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	query := s.rebind(`
		SELECT id, room_id, sender_token, ciphertext, iv, step, created_at, member_token
		FROM messages
		WHERE room_id = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY seq ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, roomID, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var (
			m    models.Message
			step int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderToken, &m.Ciphertext, &m.IV, &step, &m.Timestamp, &m.MemberToken); err != nil {
			return nil, err
		}
		m.Step = uint64(step)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLStore) SetLogExpiry(ctx context.Context, roomID string, expiresAt *time.Time) error {
	query := s.rebind("UPDATE messages SET expires_at = ? WHERE room_id = ?")
	_, err := s.db.ExecContext(ctx, query, millis(expiresAt), roomID)
	return err
}

func (s *SQLStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	expired := "SELECT id FROM rooms WHERE expires_at IS NOT NULL AND expires_at <= ?"
	for _, q := range []string{
		"DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at <= ?",
		"DELETE FROM messages WHERE room_id IN (" + expired + ")",
		"DELETE FROM members WHERE room_id IN (" + expired + ")",
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), cutoff); err != nil {
			return 0, err
		}
	}

	result, err := tx.ExecContext(ctx, s.rebind("DELETE FROM rooms WHERE expires_at IS NOT NULL AND expires_at <= ?"), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
