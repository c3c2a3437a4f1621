package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/auth"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/authpw"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/blob"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/config"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/editgate"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/email"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/export"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/rbac"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/search"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/session"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/stats"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/util"
)

// Session is the caller identity resolved from a bearer token. Role comes
// from the persisted record, not the token claims, so revocation wins.
type Session struct {
	Token     string
	SID       string
	Role      string
	CreatedAt time.Time
}

// Views that carry their own edit-mode gate. One gate per (session, view)
// pair: unlocking the updates view does not unlock reviews.
var allowedViews = map[string]struct{}{
	"updates":     {},
	"reviews":     {},
	"screenshots": {},
	"milestones":  {},
	"weeks":       {},
	"deployments": {},
}

var allowedUpdateStatus = map[string]struct{}{
	"planned":     {},
	"in-progress": {},
	"completed":   {},
}

var allowedDeploymentStatus = map[string]struct{}{
	"planned":     {},
	"in-progress": {},
	"deployed":    {},
	"failed":      {},
}

type dataStore interface {
	Ping(ctx context.Context) error

	ListBuildUpdates(context.Context) ([]store.BuildUpdate, error)
	CreateBuildUpdate(context.Context, store.BuildUpdate) (store.BuildUpdate, error)
	UpdateBuildUpdate(context.Context, string, int, store.BuildUpdatePatch) error
	DeleteBuildUpdate(context.Context, string) error

	ListClientReviews(context.Context) ([]store.ClientReview, error)
	GetClientReview(context.Context, string) (store.ClientReview, error)
	CreateClientReview(context.Context, store.ClientReview) (store.ClientReview, error)
	UpdateClientReview(context.Context, string, int, store.ClientReviewPatch) error
	DeleteClientReview(context.Context, string) error

	ListScreenCaptures(context.Context) ([]store.ScreenCapture, error)
	GetScreenCapture(context.Context, string) (store.ScreenCapture, error)
	CreateScreenCapture(context.Context, store.ScreenCapture) (store.ScreenCapture, error)
	UpdateScreenCapture(context.Context, string, int, store.ScreenCapturePatch) error
	DeleteScreenCapture(context.Context, string) error

	ListTechnicalMilestones(context.Context) ([]store.TechnicalMilestone, error)
	CreateTechnicalMilestone(context.Context, store.TechnicalMilestone) (store.TechnicalMilestone, error)
	UpdateTechnicalMilestone(context.Context, string, int, store.TechnicalMilestonePatch) error
	DeleteTechnicalMilestone(context.Context, string) error

	ListWeeks(context.Context) ([]store.Week, error)
	CreateWeek(context.Context, store.Week) (store.Week, error)
	UpdateWeek(context.Context, string, int, store.WeekPatch) error
	DeleteWeek(context.Context, string) error

	ListDeployments(context.Context) ([]store.Deployment, error)
	CreateDeployment(context.Context, store.Deployment) (store.Deployment, error)
	UpdateDeployment(context.Context, string, int, store.DeploymentPatch) error
	DeleteDeployment(context.Context, string) error
}

type sessionStore interface {
	Save(ctx context.Context, tokenHash string, record session.Record) error
	Lookup(ctx context.Context, tokenHash string) (session.Record, error)
	Revoke(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type blobStore interface {
	Put(ctx context.Context, reader io.Reader, size int64, folder, filename, contentType string, onProgress blob.ProgressFunc) (blob.Upload, error)
	Delete(ctx context.Context, blobID string) error
}

type gateRecord struct {
	gate     *editgate.Gate
	lastUsed time.Time
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service

	blobs  blobStore
	search *search.Service
	mailer *email.Service

	gateTTL time.Duration
	gateMu  sync.Mutex
	gates   map[string]gateRecord
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, passwords *authpw.Service) *Service {
	gateTTL := cfg.GateTTL
	if gateTTL <= 0 {
		gateTTL = 30 * time.Minute
	}
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		passwords: passwords,
		gateTTL:   gateTTL,
		gates:     make(map[string]gateRecord),
	}
}

// UseBlobs wires the screenshot blob store. Without it the upload endpoint
// reports unavailable.
func (s *Service) UseBlobs(blobs blobStore) {
	s.blobs = blobs
}

// UseSearch wires the search facade. Without it /api/search returns empty
// results and nothing is indexed.
func (s *Service) UseSearch(svc *search.Service) {
	s.search = svc
}

// UseMailer wires review and deployment notifications.
func (s *Service) UseMailer(mailer *email.Service) {
	s.mailer = mailer
}

// Exporter builds a snapshot exporter over the live store.
func (s *Service) Exporter() *export.Service {
	return export.New(s.store)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// Login exchanges a password for a session. The password alone decides the
// role; there are no usernames.
func (s *Service) Login(ctx context.Context, password string) (Session, error) {
	role, err := s.passwords.Login(password)
	if err != nil {
		return Session{}, err
	}

	now := time.Now()
	sid := util.NewPrefixedID("sid")
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		SID:  sid,
		Role: string(role),
		Iat:  now.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	record := session.Record{Role: string(role), CreatedAt: now}
	if err := s.sessions.Save(ctx, auth.HashToken(token), record); err != nil {
		return Session{}, err
	}

	return Session{Token: token, SID: sid, Role: string(role), CreatedAt: now}, nil
}

// SessionFromToken restores a session. The token signature proves the claims;
// the persisted record proves the session was not logged out.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	record, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		SID:       claims.SID,
		Role:      record.Role,
		CreatedAt: record.CreatedAt,
	}, nil
}

// Logout revokes the session record and drops its edit-mode gates. Idempotent.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	if sess.Token != "" {
		if err := s.sessions.Revoke(ctx, auth.HashToken(sess.Token)); err != nil {
			return err
		}
	}
	s.dropGates(sess.SID)
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Edit-mode gates. The registry mutex serializes all gate transitions;
// individual gates are not concurrency-safe.

func validView(view string) error {
	if _, ok := allowedViews[view]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown view", nil)
	}
	return nil
}

func (s *Service) withGate(sid, view string, fn func(*editgate.Gate) error) error {
	if err := validView(view); err != nil {
		return err
	}
	s.gateMu.Lock()
	defer s.gateMu.Unlock()

	now := time.Now()
	for key, rec := range s.gates {
		if now.Sub(rec.lastUsed) > s.gateTTL {
			delete(s.gates, key)
		}
	}

	key := sid + "/" + view
	rec, ok := s.gates[key]
	if !ok {
		rec = gateRecord{gate: editgate.New(s.passwords.VerifyEdit)}
	}
	rec.lastUsed = now
	s.gates[key] = rec
	return fn(rec.gate)
}

func (s *Service) dropGates(sid string) {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	for key := range s.gates {
		if strings.HasPrefix(key, sid+"/") {
			delete(s.gates, key)
		}
	}
}

// EditState reports the gate state without transitioning it.
func (s *Service) EditState(sid, view string) (editgate.State, error) {
	var state editgate.State
	err := s.withGate(sid, view, func(g *editgate.Gate) error {
		state = g.State()
		return nil
	})
	return state, err
}

// AttemptMutate is the gate check in front of every mutating route. A locked
// gate opens the challenge and withholds the action.
func (s *Service) AttemptMutate(sid, view string) error {
	return s.withGate(sid, view, func(g *editgate.Gate) error {
		return g.AttemptMutate()
	})
}

// UnlockEdit answers the step-up challenge. Success never replays the action
// that opened the challenge.
func (s *Service) UnlockEdit(sid, view, password string) error {
	return s.withGate(sid, view, func(g *editgate.Gate) error {
		return g.SubmitPassword(password)
	})
}

// CancelEdit abandons an open challenge.
func (s *Service) CancelEdit(sid, view string) error {
	return s.withGate(sid, view, func(g *editgate.Gate) error {
		g.Cancel()
		return nil
	})
}

// LockEdit leaves edit mode without confirmation.
func (s *Service) LockEdit(sid, view string) error {
	return s.withGate(sid, view, func(g *editgate.Gate) error {
		g.ToggleExit()
		return nil
	})
}

// Build updates

type BuildUpdateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Date        *time.Time `json:"date"`
	Status      string     `json:"status"`
	Additions   int        `json:"additions"`
}

func (s *Service) ListUpdates(ctx context.Context) ([]store.BuildUpdate, error) {
	return s.store.ListBuildUpdates(ctx)
}

func (s *Service) CreateUpdate(ctx context.Context, input BuildUpdateInput) (store.BuildUpdate, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.BuildUpdate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = "planned"
	}
	if _, ok := allowedUpdateStatus[status]; !ok {
		return store.BuildUpdate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be one of planned, in-progress, completed", nil)
	}
	if input.Additions < 0 {
		return store.BuildUpdate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "additions must not be negative", nil)
	}
	date := time.Now()
	if input.Date != nil {
		date = *input.Date
	}
	created, err := s.store.CreateBuildUpdate(ctx, store.BuildUpdate{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Version:     strings.TrimSpace(input.Version),
		Date:        date,
		Status:      status,
		Additions:   input.Additions,
	})
	if err != nil {
		return store.BuildUpdate{}, err
	}
	s.indexUpdate(created)
	return created, nil
}

func (s *Service) PatchUpdate(ctx context.Context, id string, revision int, patch store.BuildUpdatePatch) error {
	if patch.Status != nil {
		if _, ok := allowedUpdateStatus[*patch.Status]; !ok {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be one of planned, in-progress, completed", nil)
		}
	}
	if patch.Additions != nil && *patch.Additions < 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "additions must not be negative", nil)
	}
	if err := s.store.UpdateBuildUpdate(ctx, id, revision, patch); err != nil {
		return err
	}
	s.reindexUpdate(ctx, id)
	return nil
}

func (s *Service) DeleteUpdate(ctx context.Context, id string) error {
	if err := s.store.DeleteBuildUpdate(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteUpdate(id)
	}
	return nil
}

func (s *Service) indexUpdate(u store.BuildUpdate) {
	if s.search == nil {
		return
	}
	s.search.IndexUpdate(search.UpdateRecord{
		ID:          u.ID,
		Title:       u.Title,
		Description: u.Description,
		Status:      u.Status,
	})
}

func (s *Service) reindexUpdate(ctx context.Context, id string) {
	if s.search == nil {
		return
	}
	updates, err := s.store.ListBuildUpdates(ctx)
	if err != nil {
		log.Printf("app: reindex update %s: %v", id, err)
		return
	}
	for _, u := range updates {
		if u.ID == id {
			s.indexUpdate(u)
			return
		}
	}
}

// Client reviews

type ClientReviewInput struct {
	ClientName string              `json:"clientName"`
	Summary    string              `json:"summary"`
	Rating     int                 `json:"rating"`
	Date       *time.Time          `json:"date"`
	Points     []store.ReviewPoint `json:"points"`
}

func (s *Service) ListReviews(ctx context.Context) ([]store.ClientReview, error) {
	return s.store.ListClientReviews(ctx)
}

func (s *Service) CreateReview(ctx context.Context, input ClientReviewInput) (store.ClientReview, error) {
	clientName := strings.TrimSpace(input.ClientName)
	if clientName == "" {
		return store.ClientReview{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "clientName is required", nil)
	}
	if input.Rating < 1 || input.Rating > 5 {
		return store.ClientReview{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be between 1 and 5", nil)
	}
	date := time.Now()
	if input.Date != nil {
		date = *input.Date
	}
	points := input.Points
	if points == nil {
		points = []store.ReviewPoint{}
	}
	for i := range points {
		if points[i].ID == "" {
			points[i].ID = util.NewID()
		}
	}
	created, err := s.store.CreateClientReview(ctx, store.ClientReview{
		ClientName: clientName,
		Summary:    strings.TrimSpace(input.Summary),
		Rating:     input.Rating,
		Date:       date,
		Points:     points,
	})
	if err != nil {
		return store.ClientReview{}, err
	}
	s.indexReview(created)
	s.notifyReview(created)
	return created, nil
}

func (s *Service) PatchReview(ctx context.Context, id string, revision int, patch store.ClientReviewPatch) error {
	if patch.Rating != nil && (*patch.Rating < 1 || *patch.Rating > 5) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be between 1 and 5", nil)
	}
	if patch.Points != nil {
		for i := range *patch.Points {
			if (*patch.Points)[i].ID == "" {
				(*patch.Points)[i].ID = util.NewID()
			}
		}
	}
	if err := s.store.UpdateClientReview(ctx, id, revision, patch); err != nil {
		return err
	}
	s.reindexReview(ctx, id)
	return nil
}

// ReplacePoints swaps the full point array of a review. Points have no
// independent identity, so partial point edits always arrive as the whole
// array.
func (s *Service) ReplacePoints(ctx context.Context, id string, revision int, points []store.ReviewPoint) (store.ClientReview, error) {
	if points == nil {
		points = []store.ReviewPoint{}
	}
	for i := range points {
		if points[i].ID == "" {
			points[i].ID = util.NewID()
		}
	}
	patch := store.ClientReviewPatch{Points: &points}
	if err := s.store.UpdateClientReview(ctx, id, revision, patch); err != nil {
		return store.ClientReview{}, err
	}
	return s.store.GetClientReview(ctx, id)
}

func (s *Service) DeleteReview(ctx context.Context, id string) error {
	if err := s.store.DeleteClientReview(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteReview(id)
	}
	return nil
}

func (s *Service) indexReview(r store.ClientReview) {
	if s.search == nil {
		return
	}
	s.search.IndexReview(search.ReviewRecord{
		ID:         r.ID,
		ClientName: r.ClientName,
		Summary:    r.Summary,
	})
}

func (s *Service) reindexReview(ctx context.Context, id string) {
	if s.search == nil {
		return
	}
	review, err := s.store.GetClientReview(ctx, id)
	if err != nil {
		log.Printf("app: reindex review %s: %v", id, err)
		return
	}
	s.indexReview(review)
}

// notifyReview is best effort: failures are logged, never surfaced.
func (s *Service) notifyReview(r store.ClientReview) {
	if s.mailer == nil || !s.mailer.IsConfigured() || s.cfg.NotifyAddr == "" {
		return
	}
	go func() {
		if err := s.mailer.SendReviewNotification(s.cfg.NotifyAddr, r.ClientName, r.Rating, r.Summary); err != nil {
			log.Printf("app: review notification: %v", err)
		}
	}()
}

// Screenshots

type ScreenCaptureUploadInput struct {
	Title       string
	Caption     string
	Folder      string
	Width       int
	Height      int
	Filename    string
	ContentType string
	Size        int64
}

func (s *Service) ListScreenshots(ctx context.Context) ([]store.ScreenCapture, error) {
	return s.store.ListScreenCaptures(ctx)
}

// UploadScreenshot writes the blob first and inserts the record only after
// the blob is confirmed. A failed insert deletes the orphaned blob.
func (s *Service) UploadScreenshot(ctx context.Context, reader io.Reader, input ScreenCaptureUploadInput) (store.ScreenCapture, error) {
	if s.blobs == nil {
		return store.ScreenCapture{}, domainError(http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Blob storage not configured", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.ScreenCapture{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	upload, err := s.blobs.Put(ctx, reader, input.Size, input.Folder, input.Filename, input.ContentType, nil)
	if err != nil {
		return store.ScreenCapture{}, err
	}

	created, err := s.store.CreateScreenCapture(ctx, store.ScreenCapture{
		Title:     title,
		Caption:   strings.TrimSpace(input.Caption),
		Folder:    strings.TrimSpace(input.Folder),
		URL:       upload.URL,
		BlobID:    upload.BlobID,
		Width:     input.Width,
		Height:    input.Height,
		Timestamp: time.Now(),
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, upload.BlobID); delErr != nil {
			log.Printf("app: orphaned blob %s after failed insert: %v", upload.BlobID, delErr)
		}
		return store.ScreenCapture{}, err
	}
	return created, nil
}

func (s *Service) PatchScreenshot(ctx context.Context, id string, revision int, patch store.ScreenCapturePatch) error {
	return s.store.UpdateScreenCapture(ctx, id, revision, patch)
}

// DeleteScreenshot removes the record first, then the blob. A blob delete
// failure leaves an orphan in the object store, never a broken record.
func (s *Service) DeleteScreenshot(ctx context.Context, id string) error {
	capture, err := s.store.GetScreenCapture(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteScreenCapture(ctx, id); err != nil {
		return err
	}
	if s.blobs != nil && capture.BlobID != "" {
		if err := s.blobs.Delete(ctx, capture.BlobID); err != nil {
			log.Printf("app: delete blob %s: %v", capture.BlobID, err)
		}
	}
	return nil
}

// Milestones

type MilestoneInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Date        *time.Time `json:"date"`
	Completed   bool       `json:"completed"`
	Success     bool       `json:"success"`
	Tokens      int        `json:"tokens"`
}

func (s *Service) ListMilestones(ctx context.Context) ([]store.TechnicalMilestone, error) {
	return s.store.ListTechnicalMilestones(ctx)
}

func (s *Service) CreateMilestone(ctx context.Context, input MilestoneInput) (store.TechnicalMilestone, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.TechnicalMilestone{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.Tokens < 0 {
		return store.TechnicalMilestone{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tokens must not be negative", nil)
	}
	date := time.Now()
	if input.Date != nil {
		date = *input.Date
	}
	created, err := s.store.CreateTechnicalMilestone(ctx, store.TechnicalMilestone{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Date:        date,
		Completed:   input.Completed,
		Success:     input.Success,
		Tokens:      input.Tokens,
	})
	if err != nil {
		return store.TechnicalMilestone{}, err
	}
	s.indexMilestone(created)
	return created, nil
}

func (s *Service) PatchMilestone(ctx context.Context, id string, revision int, patch store.TechnicalMilestonePatch) error {
	if patch.Tokens != nil && *patch.Tokens < 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tokens must not be negative", nil)
	}
	if err := s.store.UpdateTechnicalMilestone(ctx, id, revision, patch); err != nil {
		return err
	}
	s.reindexMilestone(ctx, id)
	return nil
}

func (s *Service) DeleteMilestone(ctx context.Context, id string) error {
	if err := s.store.DeleteTechnicalMilestone(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteMilestone(id)
	}
	return nil
}

func (s *Service) indexMilestone(m store.TechnicalMilestone) {
	if s.search == nil {
		return
	}
	s.search.IndexMilestone(search.MilestoneRecord{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
	})
}

func (s *Service) reindexMilestone(ctx context.Context, id string) {
	if s.search == nil {
		return
	}
	milestones, err := s.store.ListTechnicalMilestones(ctx)
	if err != nil {
		log.Printf("app: reindex milestone %s: %v", id, err)
		return
	}
	for _, m := range milestones {
		if m.ID == id {
			s.indexMilestone(m)
			return
		}
	}
}

// Weeks

type WeekInput struct {
	WeekNumber int              `json:"weekNumber"`
	Title      string           `json:"title"`
	Summary    string           `json:"summary"`
	StartDate  *time.Time       `json:"startDate"`
	Tasks      []store.WeekTask `json:"tasks"`
}

func (s *Service) ListWeeks(ctx context.Context) ([]store.Week, error) {
	return s.store.ListWeeks(ctx)
}

func (s *Service) CreateWeek(ctx context.Context, input WeekInput) (store.Week, error) {
	if input.WeekNumber < 1 {
		return store.Week{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "weekNumber must be at least 1", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Week{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	startDate := time.Now()
	if input.StartDate != nil {
		startDate = *input.StartDate
	}
	tasks := input.Tasks
	if tasks == nil {
		tasks = []store.WeekTask{}
	}
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = util.NewID()
		}
	}
	return s.store.CreateWeek(ctx, store.Week{
		WeekNumber: input.WeekNumber,
		Title:      title,
		Summary:    strings.TrimSpace(input.Summary),
		StartDate:  startDate,
		Tasks:      tasks,
	})
}

func (s *Service) PatchWeek(ctx context.Context, id string, revision int, patch store.WeekPatch) error {
	if patch.WeekNumber != nil && *patch.WeekNumber < 1 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "weekNumber must be at least 1", nil)
	}
	if patch.Tasks != nil {
		for i := range *patch.Tasks {
			if (*patch.Tasks)[i].ID == "" {
				(*patch.Tasks)[i].ID = util.NewID()
			}
		}
	}
	return s.store.UpdateWeek(ctx, id, revision, patch)
}

func (s *Service) DeleteWeek(ctx context.Context, id string) error {
	return s.store.DeleteWeek(ctx, id)
}

// Deployments

type DeploymentInput struct {
	Environment string     `json:"environment"`
	Platform    string     `json:"platform"`
	Version     string     `json:"version"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes"`
	Timestamp   *time.Time `json:"timestamp"`
}

func (s *Service) ListDeployments(ctx context.Context) ([]store.Deployment, error) {
	return s.store.ListDeployments(ctx)
}

func (s *Service) CreateDeployment(ctx context.Context, input DeploymentInput) (store.Deployment, error) {
	environment := strings.TrimSpace(input.Environment)
	if environment == "" {
		return store.Deployment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "environment is required", nil)
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = "planned"
	}
	if _, ok := allowedDeploymentStatus[status]; !ok {
		return store.Deployment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be one of planned, in-progress, deployed, failed", nil)
	}
	timestamp := time.Now()
	if input.Timestamp != nil {
		timestamp = *input.Timestamp
	}
	created, err := s.store.CreateDeployment(ctx, store.Deployment{
		Environment: environment,
		Platform:    strings.TrimSpace(input.Platform),
		Version:     strings.TrimSpace(input.Version),
		Status:      status,
		Notes:       strings.TrimSpace(input.Notes),
		Timestamp:   timestamp,
	})
	if err != nil {
		return store.Deployment{}, err
	}
	s.notifyDeployment(created)
	return created, nil
}

func (s *Service) PatchDeployment(ctx context.Context, id string, revision int, patch store.DeploymentPatch) error {
	if patch.Status != nil {
		if _, ok := allowedDeploymentStatus[*patch.Status]; !ok {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be one of planned, in-progress, deployed, failed", nil)
		}
	}
	return s.store.UpdateDeployment(ctx, id, revision, patch)
}

func (s *Service) DeleteDeployment(ctx context.Context, id string) error {
	return s.store.DeleteDeployment(ctx, id)
}

func (s *Service) notifyDeployment(d store.Deployment) {
	if s.mailer == nil || !s.mailer.IsConfigured() || s.cfg.NotifyAddr == "" {
		return
	}
	go func() {
		if err := s.mailer.SendDeploymentNotification(s.cfg.NotifyAddr, d.Environment, d.Platform, d.Version, d.Status, d.Notes); err != nil {
			log.Printf("app: deployment notification: %v", err)
		}
	}()
}

// Stats aggregates the dashboard summary. Everything is recomputed from the
// live lists on each call.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	updates, err := s.store.ListBuildUpdates(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.ListClientReviews(ctx)
	if err != nil {
		return nil, err
	}
	screenshots, err := s.store.ListScreenCaptures(ctx)
	if err != nil {
		return nil, err
	}
	milestones, err := s.store.ListTechnicalMilestones(ctx)
	if err != nil {
		return nil, err
	}
	weeks, err := s.store.ListWeeks(ctx)
	if err != nil {
		return nil, err
	}
	deployments, err := s.store.ListDeployments(ctx)
	if err != nil {
		return nil, err
	}

	perWeek := make([]map[string]any, 0, len(weeks))
	for _, week := range weeks {
		perWeek = append(perWeek, map[string]any{
			"weekNumber": week.WeekNumber,
			"title":      week.Title,
			"progress":   stats.WeekProgress(week.Tasks),
		})
	}

	return map[string]any{
		"updates": map[string]any{
			"total":          len(updates),
			"completed":      stats.CompletedUpdates(updates),
			"totalAdditions": stats.TotalAdditions(updates),
		},
		"reviews": map[string]any{
			"total":             len(reviews),
			"averageRating":     stats.AverageRating(reviews),
			"resolvedPointRate": stats.ResolvedPointRate(reviews),
		},
		"screenshots": map[string]any{
			"total": len(screenshots),
		},
		"milestones": map[string]any{
			"total":       len(milestones),
			"successRate": stats.MilestoneSuccessRate(milestones),
			"avgTokens":   stats.AvgTokens(milestones),
		},
		"weeks": map[string]any{
			"total":           len(weeks),
			"overallProgress": stats.OverallProgress(weeks),
			"perWeek":         perWeek,
		},
		"deployments": map[string]any{
			"total":    len(deployments),
			"deployed": stats.DeployedCount(deployments),
		},
	}, nil
}

// Search runs a full-text query, or returns an empty response when neither
// search backend is wired.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Total: 0, Query: q.Text}
	}
	return s.search.Search(q)
}
