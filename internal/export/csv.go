package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ozgurcan/studyr/internal/model"
)

// SessionsToCSV writes the profile's session log to path, newest first left
// to the caller; rows come out in ledger order.
func SessionsToCSV(data model.UserData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	return WriteSessionsCSV(data, f)
}

func WriteSessionsCSV(data model.UserData, out io.Writer) error {
	subjects := make(map[string]string, len(data.Subjects))
	for _, s := range data.Subjects {
		subjects[s.ID] = s.Name
	}
	tasks := make(map[string]string, len(data.Tasks))
	for _, t := range data.Tasks {
		tasks[t.ID] = t.Title
	}

	w := csv.NewWriter(out)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"ID", "Subject", "Tasks", "Start", "End", "Duration (s)", "Duration", "Status", "Rating", "Comment"}); err != nil {
		return err
	}

	for _, s := range data.Sessions {
		subjectName := ""
		if name, ok := subjects[s.SubjectID]; ok {
			subjectName = name
		}
		names := make([]string, 0, len(s.TaskIDs))
		for _, id := range s.TaskIDs {
			if title, ok := tasks[id]; ok {
				names = append(names, title)
			} else {
				names = append(names, id)
			}
		}
		endStr := ""
		if s.EndTime > 0 {
			endStr = time.UnixMilli(s.EndTime).Local().Format(time.RFC3339)
		}

		row := []string{
			s.ID,
			subjectName,
			strings.Join(names, "; "),
			time.UnixMilli(s.StartTime).Local().Format(time.RFC3339),
			endStr,
			fmt.Sprintf("%d", s.DurationSeconds),
			formatDuration(s.DurationSeconds),
			string(s.Status),
			string(s.ReflectionRating),
			s.ReflectionComment,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
