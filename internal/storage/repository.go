package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"milktrack/internal/auth"
	"milktrack/internal/core"
	"milktrack/internal/store"
)

// timeFormat is a fixed-width RFC 3339 variant so TEXT columns sort
// lexicographically in true chronological order. Always stored in UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository persists users and their entry collections.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ store.EntryStore = (*SQLiteRepository)(nil)
	_ auth.UserStore   = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// Create implements store.EntryCreator.
func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, ie core.InsertEntry) (string, error) {
	if err := ie.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := encodeTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (id, owner_id, bottles, amount, timestamp, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, ie.Bottles, ie.Amount, encodeTime(ie.Timestamp), string(ie.Status), now, now)
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", id,
		"owner_id", ownerID,
		"bottles", ie.Bottles,
		"amount", ie.Amount)
	return id, nil
}

// Update implements store.EntryUpdater. Nil fields keep their stored value;
// a bottle change always rewrites the amount alongside it.
func (r *SQLiteRepository) Update(ctx context.Context, ownerID, id string, u core.EntryUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Empty() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if u.Bottles != nil {
		sets = append(sets, "bottles = ?", "amount = ?")
		args = append(args, *u.Bottles, core.ComputeAmount(*u.Bottles))
	}
	if u.Timestamp != nil {
		sets = append(sets, "timestamp = ?")
		args = append(args, encodeTime(*u.Timestamp))
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, encodeTime(time.Now()), id, ownerID)

	res, err := r.db.ExecContext(ctx,
		"UPDATE entries SET "+strings.Join(sets, ", ")+" WHERE id = ? AND owner_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entry rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete implements store.EntryDeleter. Deletion is permanent.
func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM entries WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id, "owner_id", ownerID)
	return nil
}

// List implements store.EntryLister, newest timestamp first.
func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, bottles, amount, timestamp, status, created_at, updated_at
		FROM entries WHERE owner_id = ?
		ORDER BY timestamp DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var e core.Entry
		var status, ts, created, updated string
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Bottles, &e.Amount, &ts, &status, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Status = core.Status(status)
		if e.Timestamp, err = decodeTime(ts); err != nil {
			return nil, fmt.Errorf("decode entry timestamp: %w", err)
		}
		if e.CreatedAt, err = decodeTime(created); err != nil {
			return nil, fmt.Errorf("decode entry created_at: %w", err)
		}
		if e.UpdatedAt, err = decodeTime(updated); err != nil {
			return nil, fmt.Errorf("decode entry updated_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// CreateUser implements auth.UserStore.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash, displayName string) (auth.User, error) {
	now := time.Now()
	u := auth.User{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (uid, email, password_hash, display_name, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?)`,
		u.UID, u.Email, u.PasswordHash, u.DisplayName, encodeTime(now), encodeTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.User{}, auth.ErrUserExists
		}
		return auth.User{}, fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "uid", u.UID, "email", u.Email)
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT uid, email, password_hash, display_name, photo_url, created_at, updated_at
		FROM users WHERE email = ?`, email))
}

func (r *SQLiteRepository) UserByID(ctx context.Context, uid string) (auth.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT uid, email, password_hash, display_name, photo_url, created_at, updated_at
		FROM users WHERE uid = ?`, uid))
}

// UpdateProfile implements auth.UserStore. Nil fields are left untouched.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, uid string, u auth.ProfileUpdate) (auth.User, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if u.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *u.DisplayName)
	}
	if u.PhotoURL != nil {
		sets = append(sets, "photo_url = ?")
		args = append(args, *u.PhotoURL)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, encodeTime(time.Now()), uid)
		res, err := r.db.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE uid = ?", args...)
		if err != nil {
			return auth.User{}, fmt.Errorf("update profile: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return auth.User{}, auth.ErrUserNotFound
		}
	}
	return r.UserByID(ctx, uid)
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (auth.User, error) {
	var u auth.User
	var created, updated string
	err := row.Scan(&u.UID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.PhotoURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = decodeTime(created); err != nil {
		return auth.User{}, fmt.Errorf("decode user created_at: %w", err)
	}
	if u.UpdatedAt, err = decodeTime(updated); err != nil {
		return auth.User{}, fmt.Errorf("decode user updated_at: %w", err)
	}
	return u, nil
}
