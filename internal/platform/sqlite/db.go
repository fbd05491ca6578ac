// Package sqlite implements the persistence collaborators on an embedded
// sqlite database.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection.
type DB struct {
	*sqlx.DB
	path string
}

// DefaultDBPath returns the default database path under the user's home
// directory.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recite/cards.db"
	}
	return filepath.Join(home, ".recite", "cards.db")
}

// Open opens or creates the database and runs migrations.
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultDBPath()
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{DB: db, path: path}

	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// migrate runs database migrations.
func (d *DB) migrate() error {
	migrations := []string{
		migrationDecks,
		migrationNotes,
		migrationCards,
		migrationDeckSettings,
		migrationReviews,
		migrationIndexes,
	}

	for _, m := range migrations {
		if _, err := d.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationDecks = `
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationNotes = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    model_name TEXT NOT NULL DEFAULT 'basic',
    fields TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (deck_id) REFERENCES decks(id)
);
`

const migrationCards = `
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    note_id TEXT NOT NULL,
    card_type TEXT NOT NULL DEFAULT 'basic',
    due_at TIMESTAMP NOT NULL,
    fsrs_state INTEGER NOT NULL DEFAULT 0,
    fsrs_stability REAL NOT NULL DEFAULT 0,
    fsrs_difficulty REAL NOT NULL DEFAULT 0,
    fsrs_elapsed_days REAL NOT NULL DEFAULT 0,
    fsrs_scheduled_days REAL NOT NULL DEFAULT 0,
    fsrs_reps INTEGER NOT NULL DEFAULT 0,
    fsrs_lapses INTEGER NOT NULL DEFAULT 0,
    fsrs_last_review TIMESTAMP,
    fsrs_step INTEGER NOT NULL DEFAULT 0,
    suspended INTEGER NOT NULL DEFAULT 0,
    buried_until TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (deck_id) REFERENCES decks(id),
    FOREIGN KEY (note_id) REFERENCES notes(id)
);
`

const migrationDeckSettings = `
CREATE TABLE IF NOT EXISTS deck_settings (
    deck_id TEXT PRIMARY KEY,
    new_cards_per_day INTEGER NOT NULL DEFAULT 20,
    max_reviews_per_day INTEGER NOT NULL DEFAULT 200,
    desired_retention REAL NOT NULL DEFAULT 0.9,
    max_interval INTEGER NOT NULL DEFAULT 36500,
    leech_threshold INTEGER NOT NULL DEFAULT 8,
    learning_steps TEXT NOT NULL DEFAULT '1,10',
    relearning_steps TEXT NOT NULL DEFAULT '10',
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (deck_id) REFERENCES decks(id)
);
`

const migrationReviews = `
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    grade TEXT NOT NULL,
    duration_ms INTEGER,
    state_at_review INTEGER NOT NULL DEFAULT 0,
    prev_due_at TIMESTAMP,
    prev_fsrs_state INTEGER,
    prev_fsrs_stability REAL,
    prev_fsrs_difficulty REAL,
    prev_fsrs_elapsed_days REAL,
    prev_fsrs_scheduled_days REAL,
    prev_fsrs_reps INTEGER,
    prev_fsrs_lapses INTEGER,
    prev_fsrs_last_review TIMESTAMP,
    prev_fsrs_step INTEGER,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (card_id) REFERENCES cards(id),
    FOREIGN KEY (deck_id) REFERENCES decks(id)
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_cards_deck_due ON cards(deck_id, due_at);
CREATE INDEX IF NOT EXISTS idx_cards_note_id ON cards(note_id);
CREATE INDEX IF NOT EXISTS idx_notes_deck_id ON notes(deck_id);
CREATE INDEX IF NOT EXISTS idx_reviews_card_id ON reviews(card_id);
CREATE INDEX IF NOT EXISTS idx_reviews_deck_created ON reviews(deck_id, created_at);
`
