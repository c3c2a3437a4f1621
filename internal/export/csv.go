package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// CSVCollections lists the collections the CSV exporter knows.
var CSVCollections = []string{"updates", "reviews", "screenshots", "milestones", "weeks", "deployments"}

// CSV renders one collection as a CSV table with a header row.
func (s *Service) CSV(ctx context.Context, collection string) ([]byte, error) {
	var header []string
	var rows [][]string

	switch collection {
	case "updates":
		items, err := s.store.ListBuildUpdates(ctx)
		if err != nil {
			return nil, err
		}
		header = []string{"id", "title", "version", "status", "additions", "date"}
		for _, u := range items {
			rows = append(rows, []string{u.ID, u.Title, u.Version, u.Status, strconv.Itoa(u.Additions), day(u.Date)})
		}
	case "reviews":
		items, err := s.store.ListClientReviews(ctx)
		if err != nil {
			return nil, err
		}
		header = []string{"id", "client", "rating", "summary", "points", "resolved", "date"}
		for _, r := range items {
			resolved := 0
			for _, point := range r.Points {
				if point.IsResolved {
					resolved++
				}
			}
			rows = append(rows, []string{r.ID, r.ClientName, strconv.Itoa(r.Rating), r.Summary,
				strconv.Itoa(len(r.Points)), strconv.Itoa(resolved), day(r.Date)})
		}
	case "screenshots":
		items, err := s.store.ListScreenCaptures(ctx)
		if err != nil {
			return nil, err
		}
		header = []string{"id", "title", "folder", "url", "width", "height"}
		for _, c := range items {
			rows = append(rows, []string{c.ID, c.Title, c.Folder, c.URL, strconv.Itoa(c.Width), strconv.Itoa(c.Height)})
		}
	case "milestones":
		items, err := s.store.ListTechnicalMilestones(ctx)
		if err != nil {
			return nil, err
		}
		header = []string{"id", "title", "category", "completed", "success", "tokens", "date"}
		for _, m := range items {
			rows = append(rows, []string{m.ID, m.Title, m.Category, strconv.FormatBool(m.Completed),
				strconv.FormatBool(m.Success), strconv.Itoa(m.Tokens), day(m.Date)})
		}
	case "weeks":
		items, err := s.store.ListWeeks(ctx)
		if err != nil {
			return nil, err
		}
		header = []string{"id", "week", "title", "tasks", "done"}
		for _, w := range items {
			done := 0
			for _, task := range w.Tasks {
				if task.Done {
					done++
				}
			}
			rows = append(rows, []string{w.ID, strconv.Itoa(w.WeekNumber), w.Title,
				strconv.Itoa(len(w.Tasks)), strconv.Itoa(done)})
		}
	case "deployments":
		items, err := s.store.ListDeployments(ctx)
		if err != nil {
			return nil, err
		}
		header = []string{"id", "environment", "platform", "version", "status", "timestamp"}
		for _, d := range items {
			rows = append(rows, []string{d.ID, d.Environment, d.Platform, d.Version, d.Status, day(d.Timestamp)})
		}
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
