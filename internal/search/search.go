package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultUpdate    ResultType = "update"
	ResultReview    ResultType = "review"
	ResultMilestone ResultType = "milestone"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// UpdateRecord is the data we index for a build update.
type UpdateRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// ReviewRecord is the data we index for a client review.
type ReviewRecord struct {
	ID         string `json:"id"`
	ClientName string `json:"clientName"`
	Summary    string `json:"summary"`
}

// MilestoneRecord is the data we index for a technical milestone.
type MilestoneRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
