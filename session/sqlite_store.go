package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver.
)

const SQLiteFileName = "sessions.db"

// SQLiteStore keeps the history in two tables. Save replaces the whole list
// in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			audio_source TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS wpm_data_points (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			timestamp TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wpm_data_points_session ON wpm_data_points(session_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, sessions []Session) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM wpm_data_points`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return err
	}

	sessStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sessions (id, position, start_time, end_time, audio_source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sessStmt.Close()
	pointStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO wpm_data_points (id, session_id, seq, wpm, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for i, sess := range sessions {
		var end any
		if sess.EndTime != nil {
			end = sess.EndTime.Format(time.RFC3339Nano)
		}
		if _, err = sessStmt.ExecContext(ctx,
			sess.ID.String(), i, sess.StartTime.Format(time.RFC3339Nano), end, string(sess.AudioSource),
		); err != nil {
			return fmt.Errorf("insert session %s: %w", sess.ID, err)
		}
		for j, p := range sess.DataPoints {
			if _, err = pointStmt.ExecContext(ctx,
				p.ID.String(), sess.ID.String(), j, p.WPM, p.Timestamp.Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert data point: %w", err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_time, end_time, audio_source FROM sessions ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	index := make(map[string]int)
	for rows.Next() {
		var id, start, source string
		var end sql.NullString
		if err := rows.Scan(&id, &start, &end, &source); err != nil {
			return nil, err
		}
		sess := Session{AudioSource: AudioSource(source), DataPoints: []WPMDataPoint{}}
		if sess.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("session id %q: %w", id, err)
		}
		if sess.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, err
		}
		if end.Valid {
			t, err := time.Parse(time.RFC3339Nano, end.String)
			if err != nil {
				return nil, err
			}
			sess.EndTime = &t
		}
		index[id] = len(sessions)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, wpm, timestamp FROM wpm_data_points ORDER BY session_id, seq`)
	if err != nil {
		return nil, err
	}
	defer points.Close()
	for points.Next() {
		var id, sessionID, ts string
		var p WPMDataPoint
		if err := points.Scan(&id, &sessionID, &p.WPM, &ts); err != nil {
			return nil, err
		}
		i, ok := index[sessionID]
		if !ok {
			continue
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("data point id %q: %w", id, err)
		}
		if p.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		sessions[i].DataPoints = append(sessions[i].DataPoints, p)
	}
	return sessions, points.Err()
}
