package engine

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

const fixtureDDL = `
CREATE TABLE "user" (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	name TEXT,
	role TEXT,
	password_hash TEXT
);
CREATE TABLE author (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE book (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	isbn TEXT UNIQUE,
	pages INTEGER,
	published BOOLEAN NOT NULL DEFAULT 0,
	author_id INTEGER REFERENCES author(id),
	user_id INTEGER REFERENCES "user"(id),
	updated_at TEXT
);
CREATE TABLE chapter (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	book_id INTEGER NOT NULL REFERENCES book(id)
);
CREATE TABLE genre (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE book_pivot_genre (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL REFERENCES book(id),
	genre_id INTEGER NOT NULL REFERENCES genre(id)
);
CREATE TABLE book_pivot_user (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL REFERENCES book(id),
	user_id INTEGER NOT NULL REFERENCES "user"(id),
	"create" BOOLEAN NOT NULL DEFAULT 0,
	"read" BOOLEAN NOT NULL DEFAULT 0,
	"update" BOOLEAN NOT NULL DEFAULT 0,
	"delete" BOOLEAN NOT NULL DEFAULT 0,
	"grant" BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE (book_id, user_id)
);
`

// Seed data: alice (2) owns "Dune" (1) and "Emma" (2); bob (3) owns "Ulysses" (3).
// Bob may read Dune through the pivot; carol (5) holds every flag on Ulysses.
const fixtureSeed = `
INSERT INTO "user" (id, email, name, role) VALUES
	(1, 'admin@example.com', 'Admin', 'admin'),
	(2, 'alice@example.com', 'Alice', 'user'),
	(3, 'bob@example.com', 'Bob', 'user'),
	(4, 'eve@example.com', 'Eve', 'editor'),
	(5, 'carol@example.com', 'Carol', 'user');
INSERT INTO author (id, name) VALUES (1, 'Herbert'), (2, 'Austen'), (3, 'Joyce');
INSERT INTO book (id, title, isbn, pages, published, author_id, user_id) VALUES
	(1, 'Dune', 'isbn-1', 412, 1, 1, 2),
	(2, 'Emma', 'isbn-2', 300, 0, 2, 2),
	(3, 'Ulysses', 'isbn-3', 730, 1, 3, 3);
INSERT INTO chapter (title, book_id) VALUES ('Book One', 1), ('Book Two', 1), ('Telemachus', 3);
INSERT INTO genre (id, name) VALUES (1, 'Science Fiction'), (2, 'Classic');
INSERT INTO book_pivot_genre (book_id, genre_id) VALUES (1, 1), (2, 2), (3, 2);
INSERT INTO book_pivot_user (book_id, user_id, "read") VALUES (1, 3, 1);
INSERT INTO book_pivot_user (book_id, user_id, "create", "read", "update", "delete", "grant") VALUES (3, 5, 1, 1, 1, 1, 1);
`

var (
	admin  = &metadata.Actor{ID: 1, Role: metadata.RoleAdmin}
	alice  = &metadata.Actor{ID: 2, Role: "user"}
	bob    = &metadata.Actor{ID: 3, Role: "user"}
	editor = &metadata.Actor{ID: 4, Role: "editor"}
	carol  = &metadata.Actor{ID: 5, Role: "user"}
)

func loadTestRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg, err := metadata.LoadFiles("testdata/openapi.yaml", "testdata/policy.yaml")
	require.NoError(t, err)
	return reg
}

// newTestEngine returns an engine over a seeded in-memory SQLite database.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(fixtureDDL)
	require.NoError(t, err)
	_, err = db.Exec(fixtureSeed)
	require.NoError(t, err)

	return New(store.Open(db, "sqlite"), loadTestRegistry(t))
}

func titles(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["title"].(string)
	}
	return out
}

func queryValue(t *testing.T, e *Engine, sqlStr string, args ...any) any {
	t.Helper()
	row, err := store.QueryRow(context.Background(), e.store.DB, sqlStr, args...)
	require.NoError(t, err)
	for _, v := range row {
		return v
	}
	return nil
}

func assertAppError(t *testing.T, err error, code string) *AppError {
	t.Helper()
	var appErr *AppError
	require.True(t, errors.As(err, &appErr), "expected AppError %s, got %v", code, err)
	require.Equal(t, code, appErr.Code)
	return appErr
}
