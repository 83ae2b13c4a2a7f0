package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-queue-scheduling/internal/api"
)

func intPtr(v int) *int { return &v }

func TestRender(t *testing.T) {
	board := &api.QueueBoardResponse{
		Waiting: []api.QueueEntryResponse{
			{QueueNumber: 4, EstimatedWaitMinutes: intPtr(60)},
			{QueueNumber: 5, EstimatedWaitMinutes: intPtr(75)},
		},
		Called:  []api.QueueEntryResponse{{QueueNumber: 3}},
		Serving: []api.QueueEntryResponse{{QueueNumber: 1}, {QueueNumber: 2}},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, board))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"WAITING", "CALLED", "SERVING"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "#4 (~60 min)")
	assert.Contains(t, lines[1], "#3")
	assert.Contains(t, lines[1], "#1")
	assert.Contains(t, lines[2], "#5 (~75 min)")
	assert.Contains(t, lines[2], "#2")
}

func TestRender_EmptyBoard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &api.QueueBoardResponse{}))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestBoardClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/departments/dept-1/queue", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.QueueBoardResponse{
			Waiting:             []api.QueueEntryResponse{{QueueNumber: 7}},
			RefreshAfterSeconds: 12,
		})
	}))
	defer srv.Close()

	client := &BoardClient{BaseURL: srv.URL + "/", HTTP: srv.Client()}
	board, err := client.Fetch(context.Background(), "dept-1")
	require.NoError(t, err)
	assert.Equal(t, 12, board.RefreshAfterSeconds)
	require.Len(t, board.Waiting, 1)
	assert.Equal(t, 7, board.Waiting[0].QueueNumber)
}

func TestBoardClient_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "invalid_department_id"})
	}))
	defer srv.Close()

	client := &BoardClient{BaseURL: srv.URL, HTTP: srv.Client()}
	_, err := client.Fetch(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_department_id")
}

func TestPollOnce_Interval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.QueueBoardResponse{RefreshAfterSeconds: 12})
	}))
	defer srv.Close()

	client := &BoardClient{BaseURL: srv.URL, HTTP: srv.Client()}
	log := zerolog.Nop()

	got := pollOnce(context.Background(), client, options{department: "d"}, defaultPollInterval, log)
	assert.Equal(t, 12*time.Second, got, "server pace is used by default")

	got = pollOnce(context.Background(), client, options{department: "d", interval: 5 * time.Second}, 5*time.Second, log)
	assert.Equal(t, 5*time.Second, got, "flag overrides server pace")

	down := &BoardClient{BaseURL: "http://127.0.0.1:1", HTTP: &http.Client{Timeout: time.Second}}
	got = pollOnce(context.Background(), down, options{department: "d"}, 12*time.Second, log)
	assert.Equal(t, 12*time.Second, got, "failed poll keeps the previous pace")
}
