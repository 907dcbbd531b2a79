package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
)

// exportHeader is the fixed column layout of the CSV export.
var exportHeader = []string{"Timestamp", "User", "Email", "Action", "Entity Type", "Entity Name", "Project", "Details"}

// WriteCSV serialises entries to CSV, one row per entry. Fields containing
// the delimiter, quotes or newlines are quoted per RFC 4180 so the output
// parses back losslessly.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		record := []string{
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.User.Name,
			entry.User.Email,
			string(entry.Action),
			string(entry.EntityType),
			entry.EntityName,
			entry.Project.Name,
			string(details),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
