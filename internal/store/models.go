package store

import "time"

// Every record shares the same envelope: a server-assigned ID, a revision
// counter used for conflict detection on update, and creation/update
// timestamps. Lists are ordered by each kind's primary ordering field with an
// ID tie-break so equal timestamps sort deterministically.

type BuildUpdate struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Additions   int       `json:"additions"`
	Revision    int       `json:"revision"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ReviewPoint lives embedded in a ClientReview. Points have no independent
// storage identity: they are replaced as a whole array on the parent record.
type ReviewPoint struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Type       string `json:"type"`
	IsResolved bool   `json:"isResolved"`
}

type ClientReview struct {
	ID         string        `json:"id"`
	ClientName string        `json:"clientName"`
	Summary    string        `json:"summary"`
	Rating     int           `json:"rating"`
	Date       time.Time     `json:"date"`
	Points     []ReviewPoint `json:"points"`
	Revision   int           `json:"revision"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

type ScreenCapture struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	Folder    string    `json:"folder"`
	URL       string    `json:"url"`
	BlobID    string    `json:"blobId"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	Revision  int       `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TechnicalMilestone struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Completed   bool      `json:"completed"`
	Success     bool      `json:"success"`
	Tokens      int       `json:"tokens"`
	Revision    int       `json:"revision"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WeekTask lives embedded in a Week, full-array replaced like review points.
type WeekTask struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Week carries no stored progress field. Progress is always derived from the
// task list so it can never drift from it.
type Week struct {
	ID         string     `json:"id"`
	WeekNumber int        `json:"weekNumber"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	StartDate  time.Time  `json:"startDate"`
	Tasks      []WeekTask `json:"tasks"`
	Revision   int        `json:"revision"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Deployment struct {
	ID          string    `json:"id"`
	Environment string    `json:"environment"`
	Platform    string    `json:"platform"`
	Version     string    `json:"version"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	Timestamp   time.Time `json:"timestamp"`
	Revision    int       `json:"revision"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch types carry partial updates. Nil fields are left untouched.

type BuildUpdatePatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Version     *string    `json:"version"`
	Date        *time.Time `json:"date"`
	Status      *string    `json:"status"`
	Additions   *int       `json:"additions"`
}

type ClientReviewPatch struct {
	ClientName *string        `json:"clientName"`
	Summary    *string        `json:"summary"`
	Rating     *int           `json:"rating"`
	Date       *time.Time     `json:"date"`
	Points     *[]ReviewPoint `json:"points"`
}

type ScreenCapturePatch struct {
	Title   *string `json:"title"`
	Caption *string `json:"caption"`
	Folder  *string `json:"folder"`
}

type TechnicalMilestonePatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Date        *time.Time `json:"date"`
	Completed   *bool      `json:"completed"`
	Success     *bool      `json:"success"`
	Tokens      *int       `json:"tokens"`
}

type WeekPatch struct {
	WeekNumber *int        `json:"weekNumber"`
	Title      *string     `json:"title"`
	Summary    *string     `json:"summary"`
	StartDate  *time.Time  `json:"startDate"`
	Tasks      *[]WeekTask `json:"tasks"`
}

type DeploymentPatch struct {
	Environment *string    `json:"environment"`
	Platform    *string    `json:"platform"`
	Version     *string    `json:"version"`
	Status      *string    `json:"status"`
	Notes       *string    `json:"notes"`
	Timestamp   *time.Time `json:"timestamp"`
}

// EntityID lets generic consumers address records uniformly without
// reflecting on struct fields.

func (u BuildUpdate) EntityID() string { return u.ID }
func (r ClientReview) EntityID() string { return r.ID }
func (c ScreenCapture) EntityID() string { return c.ID }
func (m TechnicalMilestone) EntityID() string { return m.ID }
func (w Week) EntityID() string { return w.ID }
func (d Deployment) EntityID() string { return d.ID }
