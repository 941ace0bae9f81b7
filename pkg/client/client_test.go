package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/pools", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"pools": []PoolSummary{{ID: "pool-a", State: "running", Concurrency: 2}},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	pools, err := c.ListPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "pool-a", pools[0].ID)
	assert.Equal(t, "running", pools[0].State)
}

func TestGetPool_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(apiError{Error: "not_found", Message: "pool not found"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.GetPool(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool not found")
}

func TestPausePool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/pools/pool-a/pause", r.URL.Path)
		_ = json.NewEncoder(w).Encode(PoolSummary{ID: "pool-a", State: "paused"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	summary, err := c.PausePool(context.Background(), "pool-a")
	require.NoError(t, err)
	assert.Equal(t, "paused", summary.State)
}

func TestSubmitJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/pools/pool-a/jobs", r.URL.Path)
		var body SubmitJobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "echo", body.Type)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.SubmitJob(context.Background(), "pool-a", SubmitJobRequest{
		Type:    "echo",
		Payload: map[string]interface{}{"hello": "world"},
	})
	require.NoError(t, err)
}

func TestListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/pools/pool-a/tasks", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tasks": []TaskInfo{{ID: 1, Name: "worker-0", State: 2, Priority: 10}},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	tasks, err := c.ListTasks(context.Background(), "pool-a")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, uint64(1), tasks[0].ID)
	assert.Equal(t, "worker-0", tasks[0].Name)
}

func TestGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/pools/pool-a/tasks/3", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TaskInfo{ID: 3, Name: "worker-2"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	task, err := c.GetTask(context.Background(), "pool-a", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), task.ID)
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	health, err := c.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health["status"])
}

func TestClient_AppliesAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"pools": []PoolSummary{}})
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithAPIKey("secret"))
	require.NoError(t, err)

	_, err = c.ListPools(context.Background())
	require.NoError(t, err)
}

func TestEvents_WithoutConnect(t *testing.T) {
	c, err := New("http://example.invalid")
	require.NoError(t, err)

	ch := c.Events()
	_, ok := <-ch
	assert.False(t, ok, "expected closed channel when websocket was never connected")
}

func TestCloseWebSocket_NoConnection(t *testing.T) {
	c, err := New("http://example.invalid")
	require.NoError(t, err)
	assert.NoError(t, c.CloseWebSocket())
}
