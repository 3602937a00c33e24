package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnjournal/journal/internal/entries"
	"github.com/learnjournal/journal/internal/platform/httpx"
)

func TestClientCreateSendsNoIdentity(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/add_reflection", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		httpx.JSON(w, http.StatusCreated, entries.CreateResponse{
			Success:          true,
			Reflection:       entries.Entry{ID: "srv-1", JournalName: "A"},
			TotalReflections: 7,
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api/", srv.Client())
	require.NoError(t, err)

	committed, total, err := client.Create(context.Background(), entries.Entry{
		ID:          "local-123",
		JournalName: "A",
		Pending:     true,
		Timestamp:   "2025-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", committed.ID)
	assert.Equal(t, 7, total)
	assert.NotContains(t, received, "id")
	assert.NotContains(t, received, "pending")
	assert.NotContains(t, received, "timestamp")
}

func TestClientCreateSendsLocalIDAsIdempotencyKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get(IdempotencyKeyHeader))
		httpx.JSON(w, http.StatusCreated, entries.CreateResponse{Success: true, Reflection: entries.Entry{ID: "srv-1"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()
	_, _, err = client.Create(ctx, entries.Entry{ID: "local-123", JournalName: "A"})
	require.NoError(t, err)
	_, _, err = client.Create(ctx, entries.Entry{ID: "srv-9", JournalName: "B"})
	require.NoError(t, err)
	_, _, err = client.Create(ctx, entries.Entry{JournalName: "C"})
	require.NoError(t, err)

	assert.Equal(t, []string{"local-123", "", ""}, keys)
}

func TestClientListAcceptsNumericIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"count":2,"reflections":[{"id":1,"journalName":"Old"},{"id":"abc","journalName":"New"}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "abc", list[1].ID)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusBadRequest, "weekOfJournal must be a positive integer")
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	_, _, err = client.Create(context.Background(), entries.Entry{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "weekOfJournal must be a positive integer", apiErr.Message)
	assert.False(t, IsTransient(err))
}

func TestClientUpdateDeleteList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /reflections", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, entries.ListResponse{Success: true, Reflections: []entries.Entry{{ID: "a"}, {ID: "b"}}, Count: 2})
	})
	mux.HandleFunc("PUT /reflection/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch entries.Patch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		httpx.JSON(w, http.StatusOK, entries.UpdateResponse{Success: true, Reflection: entries.Entry{ID: r.PathValue("id"), TaskName: *patch.TaskName}})
	})
	mux.HandleFunc("DELETE /reflection/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "a" {
			httpx.Fail(w, http.StatusNotFound, "Reflection not found")
			return
		}
		httpx.JSON(w, http.StatusOK, entries.DeleteResponse{Success: true, TotalReflections: 1})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	list, err := client.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	task := "Renamed"
	updated, err := client.Update(ctx, "b", entries.Patch{TaskName: &task})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.ID)
	assert.Equal(t, "Renamed", updated.TaskName)

	total, err := client.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = client.Delete(ctx, "zzz")
	assert.True(t, IsNotFound(err))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(&APIError{Status: http.StatusBadGateway}))
	assert.True(t, IsTransient(&APIError{Status: http.StatusTooManyRequests}))
	assert.True(t, IsTransient(&APIError{Status: http.StatusRequestTimeout}))
	assert.False(t, IsTransient(&APIError{Status: http.StatusConflict}))
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:5000", nil)
	assert.Error(t, err)
}
