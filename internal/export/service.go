// Package export produces downloadable snapshots of the dashboard data:
// a JSON document with every collection, per-collection CSV, and an HTML
// summary report.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/stats"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

// DataStore is the read-only slice of the store the exporter needs.
type DataStore interface {
	ListBuildUpdates(ctx context.Context) ([]store.BuildUpdate, error)
	ListClientReviews(ctx context.Context) ([]store.ClientReview, error)
	ListScreenCaptures(ctx context.Context) ([]store.ScreenCapture, error)
	ListTechnicalMilestones(ctx context.Context) ([]store.TechnicalMilestone, error)
	ListWeeks(ctx context.Context) ([]store.Week, error)
	ListDeployments(ctx context.Context) ([]store.Deployment, error)
}

// Snapshot is the full dashboard state at one point in time.
type Snapshot struct {
	ExportedAt  time.Time                  `json:"exportedAt"`
	Updates     []store.BuildUpdate        `json:"updates"`
	Reviews     []store.ClientReview       `json:"reviews"`
	Screenshots []store.ScreenCapture      `json:"screenshots"`
	Milestones  []store.TechnicalMilestone `json:"milestones"`
	Weeks       []store.Week               `json:"weeks"`
	Deployments []store.Deployment         `json:"deployments"`
}

type Service struct {
	store DataStore
}

func New(store DataStore) *Service {
	return &Service{store: store}
}

// Collect loads every collection into one snapshot.
func (s *Service) Collect(ctx context.Context) (Snapshot, error) {
	snapshot := Snapshot{ExportedAt: time.Now().UTC()}
	var err error
	if snapshot.Updates, err = s.store.ListBuildUpdates(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("export updates: %w", err)
	}
	if snapshot.Reviews, err = s.store.ListClientReviews(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("export reviews: %w", err)
	}
	if snapshot.Screenshots, err = s.store.ListScreenCaptures(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("export screenshots: %w", err)
	}
	if snapshot.Milestones, err = s.store.ListTechnicalMilestones(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("export milestones: %w", err)
	}
	if snapshot.Weeks, err = s.store.ListWeeks(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("export weeks: %w", err)
	}
	if snapshot.Deployments, err = s.store.ListDeployments(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("export deployments: %w", err)
	}
	return snapshot, nil
}

// JSON renders the snapshot as an indented JSON document.
func (s *Service) JSON(ctx context.Context) ([]byte, error) {
	snapshot, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

// reportData feeds the HTML report template.
type reportData struct {
	ExportedAt      time.Time
	Snapshot        Snapshot
	CompletedCount  int
	TotalAdditions  int
	AverageRating   float64
	SuccessRate     string
	OverallProgress int
	DeployedCount   int
}

func (s *Service) reportData(ctx context.Context) (reportData, error) {
	snapshot, err := s.Collect(ctx)
	if err != nil {
		return reportData{}, err
	}
	return reportData{
		ExportedAt:      snapshot.ExportedAt,
		Snapshot:        snapshot,
		CompletedCount:  stats.CompletedUpdates(snapshot.Updates),
		TotalAdditions:  stats.TotalAdditions(snapshot.Updates),
		AverageRating:   stats.AverageRating(snapshot.Reviews),
		SuccessRate:     stats.MilestoneSuccessRate(snapshot.Milestones),
		OverallProgress: stats.OverallProgress(snapshot.Weeks),
		DeployedCount:   stats.DeployedCount(snapshot.Deployments),
	}, nil
}
