package runbooks

import (
	"encoding/csv"
	"io"
)

// taskExportHeader is the fixed column layout of the task CSV export.
var taskExportHeader = []string{"Title", "Owner", "Start Date", "End Date", "Work Item ID", "Completed", "Status"}

// WriteTasksCSV serialises tasks to CSV, one row per task. Soft-deleted
// tasks are included with status Removed so the export is a complete
// snapshot of the runbook.
func WriteTasksCSV(w io.Writer, tasks []Task) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(taskExportHeader); err != nil {
		return err
	}
	for _, task := range tasks {
		completed := "No"
		if task.Completed {
			completed = "Yes"
		}
		status := "Active"
		if task.Deleted {
			status = "Removed"
		}
		record := []string{
			task.Title,
			task.Owner,
			task.StartDate,
			task.EndDate,
			task.WorkItemID,
			completed,
			status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
