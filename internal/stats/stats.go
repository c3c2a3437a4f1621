// Package stats computes the dashboard summary figures. Everything here is a
// pure function over the current record lists, recomputed on every call; no
// derived value is ever stored, so none can drift from the data beneath it.
package stats

import (
	"fmt"
	"math"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

// Rate formats 100*part/total rounded to one decimal, "0.0" when total is 0.
func Rate(part, total int) string {
	if total == 0 {
		return "0.0"
	}
	rate := 100 * float64(part) / float64(total)
	return fmt.Sprintf("%.1f", math.Round(rate*10)/10)
}

// Percent is the integer percentage of part in total, 0 when total is 0.
func Percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

// Average is the arithmetic mean, 0 for an empty input.
func Average(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// MilestoneSuccessRate is the share of milestones marked successful.
func MilestoneSuccessRate(milestones []store.TechnicalMilestone) string {
	succeeded := 0
	for _, m := range milestones {
		if m.Success {
			succeeded++
		}
	}
	return Rate(succeeded, len(milestones))
}

// AvgTokens is the mean token count across milestones.
func AvgTokens(milestones []store.TechnicalMilestone) float64 {
	tokens := make([]int, len(milestones))
	for i, m := range milestones {
		tokens[i] = m.Tokens
	}
	return Average(tokens)
}

// TotalAdditions sums the line additions across build updates.
func TotalAdditions(updates []store.BuildUpdate) int {
	total := 0
	for _, u := range updates {
		total += u.Additions
	}
	return total
}

// CompletedUpdates counts build updates with completed status.
func CompletedUpdates(updates []store.BuildUpdate) int {
	completed := 0
	for _, u := range updates {
		if u.Status == "completed" {
			completed++
		}
	}
	return completed
}

// WeekProgress derives a week's completion percentage from its task list.
func WeekProgress(tasks []store.WeekTask) int {
	done := 0
	for _, task := range tasks {
		if task.Done {
			done++
		}
	}
	return Percent(done, len(tasks))
}

// OverallProgress is the completion percentage across every task of every
// week, not the mean of per-week percentages, so short weeks do not skew it.
func OverallProgress(weeks []store.Week) int {
	done, total := 0, 0
	for _, week := range weeks {
		total += len(week.Tasks)
		for _, task := range week.Tasks {
			if task.Done {
				done++
			}
		}
	}
	return Percent(done, total)
}

// ResolvedPointRate is the share of review points marked resolved, across
// all reviews.
func ResolvedPointRate(reviews []store.ClientReview) string {
	resolved, total := 0, 0
	for _, review := range reviews {
		total += len(review.Points)
		for _, point := range review.Points {
			if point.IsResolved {
				resolved++
			}
		}
	}
	return Rate(resolved, total)
}

// AverageRating is the mean client rating, 0 for no reviews.
func AverageRating(reviews []store.ClientReview) float64 {
	ratings := make([]int, len(reviews))
	for i, review := range reviews {
		ratings[i] = review.Rating
	}
	return Average(ratings)
}

// DeployedCount counts deployments that reached deployed status.
func DeployedCount(deployments []store.Deployment) int {
	deployed := 0
	for _, d := range deployments {
		if d.Status == "deployed" {
			deployed++
		}
	}
	return deployed
}
