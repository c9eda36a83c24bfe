/*
 * Copyright 2025 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package store persists events that could not be delivered to the
// Vehicle Management API so they can be replayed later. The table is the
// single source of retry state; every row is owned by exactly one handler
// (by name) which knows how to decode and resend its payload.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS failed_event (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp    INTEGER NOT NULL,
	attempted_at INTEGER NOT NULL,
	imei         VARCHAR(16) NOT NULL,
	handler_name VARCHAR(64) NOT NULL,
	event_data   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failed_event_imei ON failed_event(imei);
CREATE INDEX IF NOT EXISTS idx_failed_event_attempted_at ON failed_event(attempted_at);
`

// FailedEvent is one undelivered event row.
type FailedEvent struct {
	ID          int64  `db:"id"`
	Timestamp   int64  `db:"timestamp"`
	AttemptedAt int64  `db:"attempted_at"`
	IMEI        string `db:"imei"`
	HandlerName string `db:"handler_name"`
	EventData   string `db:"event_data"`
}

// Store is the shared failed-event store. All methods are safe for
// concurrent use; isolation is delegated to the SQL engine.
type Store struct {
	db *sqlx.DB
}

// Open connects to the sqlite database at dsn (":memory:" works for
// tests) and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to failed-event db: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent workers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating failed_event schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Persist inserts an undelivered event with attempted_at set to now.
func (s *Store) Persist(ctx context.Context, imei, handlerName string, eventTime time.Time, eventData []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_event (timestamp, attempted_at, imei, handler_name, event_data)
		 VALUES (?, ?, ?, ?, ?)`,
		eventTime.Unix(), time.Now().Unix(), imei, handlerName, string(eventData))
	if err != nil {
		return 0, fmt.Errorf("persisting failed event: %w", err)
	}
	return res.LastInsertId()
}

// NextFailedIMEI returns the IMEI of the most recently attempted failed
// event, or "" when the store is empty.
func (s *Store) NextFailedIMEI(ctx context.Context) (string, error) {
	imeis, err := s.FailedIMEIs(ctx, 1)
	if err != nil || len(imeis) == 0 {
		return "", err
	}
	return imeis[0], nil
}

// FailedIMEIs returns up to limit distinct IMEIs with pending failed
// events, most recently attempted first.
func (s *Store) FailedIMEIs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	var imeis []string
	err := s.db.SelectContext(ctx, &imeis,
		`SELECT imei FROM failed_event GROUP BY imei ORDER BY MAX(attempted_at) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying failed imeis: %w", err)
	}
	return imeis, nil
}

// List returns up to limit failed events for an IMEI. A limit of 0 or
// less returns every row.
func (s *Store) List(ctx context.Context, imei string, limit int) ([]FailedEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	var events []FailedEvent
	err := s.db.SelectContext(ctx, &events,
		`SELECT id, timestamp, attempted_at, imei, handler_name, event_data
		 FROM failed_event WHERE imei = ? ORDER BY id LIMIT ?`, imei, limit)
	if err != nil {
		return nil, fmt.Errorf("listing failed events for %s: %w", imei, err)
	}
	return events, nil
}

// Backlog is the per-device summary shown on the admin page.
type Backlog struct {
	IMEI        string `db:"imei"`
	Pending     int    `db:"pending"`
	AttemptedAt int64  `db:"attempted_at"`
}

// BacklogSummary returns pending-row counts per IMEI, most recently
// attempted first.
func (s *Store) BacklogSummary(ctx context.Context, limit int) ([]Backlog, error) {
	if limit <= 0 {
		limit = -1
	}
	var backlogs []Backlog
	err := s.db.SelectContext(ctx, &backlogs,
		`SELECT imei, COUNT(*) AS pending, MAX(attempted_at) AS attempted_at
		 FROM failed_event GROUP BY imei ORDER BY attempted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("summarizing failed events: %w", err)
	}
	return backlogs, nil
}

// UpdateAttemptedAt advances the retry timestamp after a failed replay.
func (s *Store) UpdateAttemptedAt(ctx context.Context, id int64, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE failed_event SET attempted_at = ? WHERE id = ?`, t.Unix(), id)
	if err != nil {
		return fmt.Errorf("updating attempted_at for %d: %w", id, err)
	}
	return nil
}

// Delete removes a replayed event.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM failed_event WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting failed event %d: %w", id, err)
	}
	return nil
}

// Count returns the number of pending rows for an IMEI; an empty IMEI
// counts everything.
func (s *Store) Count(ctx context.Context, imei string) (int, error) {
	var n int
	var err error
	if imei == "" {
		err = s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM failed_event`)
	} else {
		err = s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM failed_event WHERE imei = ?`, imei)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("counting failed events: %w", err)
	}
	return n, nil
}
