package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hackgods/hospital-queue-scheduling/internal/api"
)

const defaultPollInterval = 30 * time.Second

type BoardClient struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *BoardClient) Fetch(ctx context.Context, departmentID string) (*api.QueueBoardResponse, error) {
	url := strings.TrimRight(c.BaseURL, "/") + "/departments/" + departmentID + "/queue"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build board request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("fetch board: status %d: %s", resp.StatusCode, apiErr.Error)
	}

	var board api.QueueBoardResponse
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	return &board, nil
}

// Render prints the three board columns side by side, one queue number per row.
func Render(w io.Writer, board *api.QueueBoardResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)

	fmt.Fprintln(tw, "WAITING\tCALLED\tSERVING")

	rows := max(len(board.Waiting), len(board.Called), len(board.Serving))
	for i := 0; i < rows; i++ {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			cell(board.Waiting, i, true),
			cell(board.Called, i, false),
			cell(board.Serving, i, false),
		)
	}

	return tw.Flush()
}

func cell(entries []api.QueueEntryResponse, i int, withWait bool) string {
	if i >= len(entries) {
		return ""
	}
	e := entries[i]
	if withWait && e.EstimatedWaitMinutes != nil {
		return fmt.Sprintf("#%d (~%d min)", e.QueueNumber, *e.EstimatedWaitMinutes)
	}
	return fmt.Sprintf("#%d", e.QueueNumber)
}
