package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxUpdates    = "glazeme_updates"
	idxReviews    = "glazeme_reviews"
	idxMilestones = "glazeme_milestones"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The client
// starts unhealthy if the initial connection fails; a background loop keeps
// probing so the fallback searcher takes over in the meantime.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		searchable []string
	}{
		{uid: idxUpdates, primaryKey: "id", searchable: []string{"title", "description"}},
		{uid: idxReviews, primaryKey: "id", searchable: []string{"clientName", "summary"}},
		{uid: idxMilestones, primaryKey: "id", searchable: []string{"title", "description", "category"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}
		if _, err := m.client.Index(idx.uid).UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxUpdates, ResultUpdate},
		{idxReviews, ResultReview},
		{idxMilestones, ResultMilestone},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxUpdates:
		return ResultUpdate
	case idxReviews:
		return ResultReview
	case idxMilestones:
		return ResultMilestone
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")

	switch rtyp {
	case ResultUpdate, ResultMilestone:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	case ResultReview:
		r.Title = firstNonBlank(decodeFormattedString(hit, "clientName"), decodeString(hit, "clientName"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "summary"), decodeString(hit, "summary"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexUpdate adds or updates a build update in the search index.
func (m *Meili) IndexUpdate(u UpdateRecord) error {
	_, err := m.client.Index(idxUpdates).AddDocuments([]UpdateRecord{u}, nil)
	return err
}

// IndexReview adds or updates a client review in the search index.
func (m *Meili) IndexReview(r ReviewRecord) error {
	_, err := m.client.Index(idxReviews).AddDocuments([]ReviewRecord{r}, nil)
	return err
}

// IndexMilestone adds or updates a milestone in the search index.
func (m *Meili) IndexMilestone(rec MilestoneRecord) error {
	_, err := m.client.Index(idxMilestones).AddDocuments([]MilestoneRecord{rec}, nil)
	return err
}

// IndexUpdates bulk-indexes build updates.
func (m *Meili) IndexUpdates(updates []UpdateRecord) error {
	_, err := m.client.Index(idxUpdates).AddDocuments(updates, nil)
	return err
}

// IndexReviews bulk-indexes client reviews.
func (m *Meili) IndexReviews(reviews []ReviewRecord) error {
	_, err := m.client.Index(idxReviews).AddDocuments(reviews, nil)
	return err
}

// IndexMilestones bulk-indexes milestones.
func (m *Meili) IndexMilestones(milestones []MilestoneRecord) error {
	_, err := m.client.Index(idxMilestones).AddDocuments(milestones, nil)
	return err
}

// DeleteUpdate removes a build update from the search index.
func (m *Meili) DeleteUpdate(id string) error {
	_, err := m.client.Index(idxUpdates).DeleteDocument(id, nil)
	return err
}

// DeleteReview removes a client review from the search index.
func (m *Meili) DeleteReview(id string) error {
	_, err := m.client.Index(idxReviews).DeleteDocument(id, nil)
	return err
}

// DeleteMilestone removes a milestone from the search index.
func (m *Meili) DeleteMilestone(id string) error {
	_, err := m.client.Index(idxMilestones).DeleteDocument(id, nil)
	return err
}
