package runbooks_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runbook-hub/runbook-hub/internal/runbooks"
)

func TestWriteTasksCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runbooks.WriteTasksCSV(&buf, nil))

	got := strings.TrimRight(buf.String(), "\r\n")
	require.Equal(t, "Title,Owner,Start Date,End Date,Work Item ID,Completed,Status", got)
}

func TestWriteTasksCSVRows(t *testing.T) {
	tasks := []runbooks.Task{
		{
			ID:         "t1",
			Title:      `Scale down "blue", then wait`,
			Owner:      "O'Brien, Pat",
			StartDate:  "2026-09-01",
			EndDate:    "2026-09-02",
			WorkItemID: "4711",
			Completed:  true,
		},
		{
			ID:      "t2",
			Title:   "Notify stakeholders",
			Owner:   "Bob",
			Deleted: true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, runbooks.WriteTasksCSV(&buf, tasks))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per task")

	require.Equal(t, `Scale down "blue", then wait`, rows[1][0], "hostile title must survive round trip")
	require.Equal(t, "O'Brien, Pat", rows[1][1])
	require.Equal(t, "4711", rows[1][4])
	require.Equal(t, "Yes", rows[1][5])
	require.Equal(t, "Active", rows[1][6])

	require.Equal(t, "Notify stakeholders", rows[2][0])
	require.Equal(t, "No", rows[2][5])
	require.Equal(t, "Removed", rows[2][6], "soft-deleted tasks are exported with status Removed")
}
