package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex1olnk/mang2/internal/config"
	"github.com/lex1olnk/mang2/internal/engine"
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

const (
	testDocument = "../../schema/openapi.yaml"
	testPolicy   = "../../schema/policy.yaml"
)

func TestCheckCommand(t *testing.T) {
	cfg = &config.Config{Schema: config.SchemaConfig{Document: testDocument, Policy: testPolicy}}

	var out bytes.Buffer
	checkCmd.SetOut(&out)
	require.NoError(t, checkCmd.RunE(checkCmd, nil))

	assert.Contains(t, out.String(), "Book (table book, 8 properties) /api/books\n")
	assert.Contains(t, out.String(), "  genres: manyToMany Genre\n")
	assert.Contains(t, out.String(), "BookFull (table book, 8 properties)\n")
}

func TestNewApp(t *testing.T) {
	cfg = &config.Config{
		JWTSecret:  "test-secret",
		Auth:       config.AuthConfig{UserModel: "UserFull"},
		Pagination: config.PaginationConfig{PageSize: 25, MaxPageSize: 100},
	}

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE genre (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);
		INSERT INTO genre (name) VALUES ('Classic');`)
	require.NoError(t, err)

	reg, err := metadata.LoadFiles(testDocument, testPolicy)
	require.NoError(t, err)
	app := newApp(engine.New(store.Open(db, "sqlite"), reg))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/genres", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, []map[string]any{{"id": float64(1), "name": "Classic"}}, payload.Data)

	req := httptest.NewRequest(http.MethodGet, "/api/genres", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
