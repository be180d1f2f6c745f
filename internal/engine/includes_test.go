package engine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex1olnk/mang2/internal/store"
)

func TestResolve_BelongsTo(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.store.DB.Exec(`INSERT INTO book (id, title, user_id) VALUES (4, 'Orphan', 2)`)
	require.NoError(t, err)

	rows, err := e.Find(context.Background(), "Book", nil, Options{Actor: admin, With: []string{"author"}})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	author, ok := rows[0]["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Herbert", author["name"])
	assert.Equal(t, "Austen", rows[1]["author"].(map[string]any)["name"])
	assert.Contains(t, rows[3], "author")
	assert.Nil(t, rows[3]["author"])
}

func TestResolve_HasManyFollowsReadScope(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	rows, err := e.Find(ctx, "Author", nil, Options{Actor: alice, With: []string{"books", "books-count"}})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Dune"}, titles(rows[0]["books"].([]map[string]any)))
	assert.Equal(t, []string{"Emma"}, titles(rows[1]["books"].([]map[string]any)))
	assert.Equal(t, []map[string]any{}, rows[2]["books"])
	assert.Equal(t, []any{int64(1), int64(1), int64(0)},
		[]any{rows[0]["books-count"], rows[1]["books-count"], rows[2]["books-count"]})

	_, err = e.Find(ctx, "Author", nil, Options{With: []string{"books"}})
	assertAppError(t, err, "ACCESS_DENIED")
}

func TestResolve_HasManyCount(t *testing.T) {
	e := newTestEngine(t)

	rows, err := e.Find(context.Background(), "Book", nil, Options{Actor: admin, With: []string{"chapters-count"}})
	require.NoError(t, err)

	var counts []int64
	for _, r := range rows {
		counts = append(counts, r["chapters-count"].(int64))
	}
	assert.Equal(t, []int64{2, 0, 1}, counts)
	assert.NotContains(t, rows[0], "chapters")
}

func TestResolve_ManyToMany(t *testing.T) {
	e := newTestEngine(t)

	rows, err := e.Find(context.Background(), "Book", nil, Options{Actor: admin, With: []string{"genres", "genres-count"}})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for i, want := range []string{"Science Fiction", "Classic", "Classic"} {
		genres := rows[i]["genres"].([]map[string]any)
		require.Len(t, genres, 1)
		assert.Equal(t, want, genres[0]["name"])
		assert.NotContains(t, genres[0], pivotOwnerAlias)
		assert.Equal(t, int64(1), rows[i]["genres-count"])
	}
}

func TestResolve_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Find(ctx, "Book", nil, Options{Actor: admin, With: []string{"publisher"}})
	assertAppError(t, err, "UNKNOWN_REFERENCE")

	_, err = e.Find(ctx, "Book", nil, Options{Actor: admin, With: []string{"author-count"}})
	assertAppError(t, err, "UNKNOWN_PROPERTY")

	// Unknown relations fail even when nothing matched.
	_, err = e.Find(ctx, "Book", map[string]any{"id": int64(99)}, Options{Actor: admin, With: []string{"publisher"}})
	assertAppError(t, err, "UNKNOWN_REFERENCE")
}

func TestResolve_OneQueryPerRelation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	e := New(store.Open(db, "postgres"), loadTestRegistry(t))

	mock.ExpectQuery(`SELECT "author"\.\* FROM "author" ORDER BY "author"\."id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Herbert").
			AddRow(int64(2), "Austen").
			AddRow(int64(3), "Joyce"))
	mock.ExpectQuery(`SELECT "book"\.\* FROM "book" WHERE "book"\."author_id" IN \(\$1, \$2, \$3\)`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow(int64(1), "Dune", int64(1)).
			AddRow(int64(4), "Children of Dune", int64(1)).
			AddRow(int64(2), "Emma", int64(2)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS "count", "book"\."author_id" AS "_group" FROM "book" .*GROUP BY "book"\."author_id"`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "_group"}).
			AddRow(int64(2), int64(1)).
			AddRow(int64(1), int64(2)))

	rows, err := e.Find(context.Background(), "Author", nil, Options{Actor: admin, With: []string{"books", "books-count"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"Dune", "Children of Dune"}, titles(rows[0]["books"].([]map[string]any)))
	assert.Equal(t, int64(2), rows[0]["books-count"])
	assert.Equal(t, int64(0), rows[2]["books-count"])
	assert.Equal(t, []map[string]any{}, rows[2]["books"])
}
