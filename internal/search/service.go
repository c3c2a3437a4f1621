package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexUpdate indexes a build update (fire-and-forget to Meilisearch).
func (s *Service) IndexUpdate(u UpdateRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexUpdate(u); err != nil {
			log.Printf("search: index update %s: %v", u.ID, err)
		}
	}()
}

// IndexReview indexes a client review (fire-and-forget to Meilisearch).
func (s *Service) IndexReview(r ReviewRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexReview(r); err != nil {
			log.Printf("search: index review %s: %v", r.ID, err)
		}
	}()
}

// IndexMilestone indexes a milestone (fire-and-forget to Meilisearch).
func (s *Service) IndexMilestone(m MilestoneRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexMilestone(m); err != nil {
			log.Printf("search: index milestone %s: %v", m.ID, err)
		}
	}()
}

// DeleteUpdate removes a build update from the search index (fire-and-forget).
func (s *Service) DeleteUpdate(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteUpdate(id); err != nil {
			log.Printf("search: delete update %s: %v", id, err)
		}
	}()
}

// DeleteReview removes a client review from the search index (fire-and-forget).
func (s *Service) DeleteReview(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteReview(id); err != nil {
			log.Printf("search: delete review %s: %v", id, err)
		}
	}()
}

// DeleteMilestone removes a milestone from the search index (fire-and-forget).
func (s *Service) DeleteMilestone(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteMilestone(id); err != nil {
			log.Printf("search: delete milestone %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes already-loaded records to Meilisearch in bulk.
func (s *Service) ReindexAll(updates []UpdateRecord, reviews []ReviewRecord, milestones []MilestoneRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(updates) > 0 {
		if err := s.meili.IndexUpdates(updates); err != nil {
			log.Printf("search: reindex updates: %v", err)
		}
	}
	if len(reviews) > 0 {
		if err := s.meili.IndexReviews(reviews); err != nil {
			log.Printf("search: reindex reviews: %v", err)
		}
	}
	if len(milestones) > 0 {
		if err := s.meili.IndexMilestones(milestones); err != nil {
			log.Printf("search: reindex milestones: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	updates, reviews, milestones, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(updates, reviews, milestones)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
