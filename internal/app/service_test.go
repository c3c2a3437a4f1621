package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/authpw"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/config"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/session"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

type fakeStore struct {
	pingFn func(context.Context) error

	listBuildUpdatesFn  func(context.Context) ([]store.BuildUpdate, error)
	createBuildUpdateFn func(context.Context, store.BuildUpdate) (store.BuildUpdate, error)
	updateBuildUpdateFn func(context.Context, string, int, store.BuildUpdatePatch) error
	deleteBuildUpdateFn func(context.Context, string) error

	listClientReviewsFn  func(context.Context) ([]store.ClientReview, error)
	getClientReviewFn    func(context.Context, string) (store.ClientReview, error)
	createClientReviewFn func(context.Context, store.ClientReview) (store.ClientReview, error)
	updateClientReviewFn func(context.Context, string, int, store.ClientReviewPatch) error
	deleteClientReviewFn func(context.Context, string) error

	listScreenCapturesFn  func(context.Context) ([]store.ScreenCapture, error)
	getScreenCaptureFn    func(context.Context, string) (store.ScreenCapture, error)
	createScreenCaptureFn func(context.Context, store.ScreenCapture) (store.ScreenCapture, error)
	updateScreenCaptureFn func(context.Context, string, int, store.ScreenCapturePatch) error
	deleteScreenCaptureFn func(context.Context, string) error

	listMilestonesFn  func(context.Context) ([]store.TechnicalMilestone, error)
	createMilestoneFn func(context.Context, store.TechnicalMilestone) (store.TechnicalMilestone, error)
	updateMilestoneFn func(context.Context, string, int, store.TechnicalMilestonePatch) error
	deleteMilestoneFn func(context.Context, string) error

	listWeeksFn  func(context.Context) ([]store.Week, error)
	createWeekFn func(context.Context, store.Week) (store.Week, error)
	updateWeekFn func(context.Context, string, int, store.WeekPatch) error
	deleteWeekFn func(context.Context, string) error

	listDeploymentsFn  func(context.Context) ([]store.Deployment, error)
	createDeploymentFn func(context.Context, store.Deployment) (store.Deployment, error)
	updateDeploymentFn func(context.Context, string, int, store.DeploymentPatch) error
	deleteDeploymentFn func(context.Context, string) error
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) ListBuildUpdates(ctx context.Context) ([]store.BuildUpdate, error) {
	if f.listBuildUpdatesFn != nil {
		return f.listBuildUpdatesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) CreateBuildUpdate(ctx context.Context, item store.BuildUpdate) (store.BuildUpdate, error) {
	if f.createBuildUpdateFn != nil {
		return f.createBuildUpdateFn(ctx, item)
	}
	item.ID = "bu-1"
	item.Revision = 1
	return item, nil
}
func (f *fakeStore) UpdateBuildUpdate(ctx context.Context, id string, revision int, patch store.BuildUpdatePatch) error {
	if f.updateBuildUpdateFn != nil {
		return f.updateBuildUpdateFn(ctx, id, revision, patch)
	}
	return nil
}
func (f *fakeStore) DeleteBuildUpdate(ctx context.Context, id string) error {
	if f.deleteBuildUpdateFn != nil {
		return f.deleteBuildUpdateFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListClientReviews(ctx context.Context) ([]store.ClientReview, error) {
	if f.listClientReviewsFn != nil {
		return f.listClientReviewsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetClientReview(ctx context.Context, id string) (store.ClientReview, error) {
	if f.getClientReviewFn != nil {
		return f.getClientReviewFn(ctx, id)
	}
	return store.ClientReview{}, sql.ErrNoRows
}
func (f *fakeStore) CreateClientReview(ctx context.Context, item store.ClientReview) (store.ClientReview, error) {
	if f.createClientReviewFn != nil {
		return f.createClientReviewFn(ctx, item)
	}
	item.ID = "cr-1"
	item.Revision = 1
	return item, nil
}
func (f *fakeStore) UpdateClientReview(ctx context.Context, id string, revision int, patch store.ClientReviewPatch) error {
	if f.updateClientReviewFn != nil {
		return f.updateClientReviewFn(ctx, id, revision, patch)
	}
	return nil
}
func (f *fakeStore) DeleteClientReview(ctx context.Context, id string) error {
	if f.deleteClientReviewFn != nil {
		return f.deleteClientReviewFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListScreenCaptures(ctx context.Context) ([]store.ScreenCapture, error) {
	if f.listScreenCapturesFn != nil {
		return f.listScreenCapturesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetScreenCapture(ctx context.Context, id string) (store.ScreenCapture, error) {
	if f.getScreenCaptureFn != nil {
		return f.getScreenCaptureFn(ctx, id)
	}
	return store.ScreenCapture{}, sql.ErrNoRows
}
func (f *fakeStore) CreateScreenCapture(ctx context.Context, item store.ScreenCapture) (store.ScreenCapture, error) {
	if f.createScreenCaptureFn != nil {
		return f.createScreenCaptureFn(ctx, item)
	}
	item.ID = "sc-1"
	item.Revision = 1
	return item, nil
}
func (f *fakeStore) UpdateScreenCapture(ctx context.Context, id string, revision int, patch store.ScreenCapturePatch) error {
	if f.updateScreenCaptureFn != nil {
		return f.updateScreenCaptureFn(ctx, id, revision, patch)
	}
	return nil
}
func (f *fakeStore) DeleteScreenCapture(ctx context.Context, id string) error {
	if f.deleteScreenCaptureFn != nil {
		return f.deleteScreenCaptureFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListTechnicalMilestones(ctx context.Context) ([]store.TechnicalMilestone, error) {
	if f.listMilestonesFn != nil {
		return f.listMilestonesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) CreateTechnicalMilestone(ctx context.Context, item store.TechnicalMilestone) (store.TechnicalMilestone, error) {
	if f.createMilestoneFn != nil {
		return f.createMilestoneFn(ctx, item)
	}
	item.ID = "tm-1"
	item.Revision = 1
	return item, nil
}
func (f *fakeStore) UpdateTechnicalMilestone(ctx context.Context, id string, revision int, patch store.TechnicalMilestonePatch) error {
	if f.updateMilestoneFn != nil {
		return f.updateMilestoneFn(ctx, id, revision, patch)
	}
	return nil
}
func (f *fakeStore) DeleteTechnicalMilestone(ctx context.Context, id string) error {
	if f.deleteMilestoneFn != nil {
		return f.deleteMilestoneFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListWeeks(ctx context.Context) ([]store.Week, error) {
	if f.listWeeksFn != nil {
		return f.listWeeksFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) CreateWeek(ctx context.Context, item store.Week) (store.Week, error) {
	if f.createWeekFn != nil {
		return f.createWeekFn(ctx, item)
	}
	item.ID = "wk-1"
	item.Revision = 1
	return item, nil
}
func (f *fakeStore) UpdateWeek(ctx context.Context, id string, revision int, patch store.WeekPatch) error {
	if f.updateWeekFn != nil {
		return f.updateWeekFn(ctx, id, revision, patch)
	}
	return nil
}
func (f *fakeStore) DeleteWeek(ctx context.Context, id string) error {
	if f.deleteWeekFn != nil {
		return f.deleteWeekFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListDeployments(ctx context.Context) ([]store.Deployment, error) {
	if f.listDeploymentsFn != nil {
		return f.listDeploymentsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) CreateDeployment(ctx context.Context, item store.Deployment) (store.Deployment, error) {
	if f.createDeploymentFn != nil {
		return f.createDeploymentFn(ctx, item)
	}
	item.ID = "dp-1"
	item.Revision = 1
	return item, nil
}
func (f *fakeStore) UpdateDeployment(ctx context.Context, id string, revision int, patch store.DeploymentPatch) error {
	if f.updateDeploymentFn != nil {
		return f.updateDeploymentFn(ctx, id, revision, patch)
	}
	return nil
}
func (f *fakeStore) DeleteDeployment(ctx context.Context, id string) error {
	if f.deleteDeploymentFn != nil {
		return f.deleteDeploymentFn(ctx, id)
	}
	return nil
}

type fakeSessions struct {
	mu      sync.Mutex
	records map[string]session.Record
	pingErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{records: make(map[string]session.Record)}
}

func (f *fakeSessions) Save(_ context.Context, tokenHash string, record session.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tokenHash] = record
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, tokenHash string) (session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[tokenHash]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return record, nil
}

func (f *fakeSessions) Revoke(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, tokenHash)
	return nil
}

func (f *fakeSessions) Ping(context.Context) error {
	return f.pingErr
}

const (
	testAdminPassword  = "admin-pass"
	testViewerPassword = "viewer-pass"
)

func newTestService(fs *fakeStore) *Service {
	cfg := config.Config{
		TokenSecret:    "test-secret",
		AdminPassword:  testAdminPassword,
		ViewerPassword: testViewerPassword,
		GateTTL:        time.Hour,
	}
	svc := New(cfg, nil, nil, authpw.NewService(testAdminPassword, testViewerPassword, ""))
	svc.store = fs
	svc.sessions = newFakeSessions()
	return svc
}

func loginAs(t *testing.T, handler http.Handler, password string) string {
	t.Helper()
	body := bytes.NewBufferString(`{"password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/session/login", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("login: parse response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("login: expected token")
	}
	return payload.Token
}

func doJSON(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func unlockView(t *testing.T, handler http.Handler, token, view string) {
	t.Helper()
	rr := doJSON(handler, http.MethodPost, "/api/editmode/"+view+"/unlock", token, `{"password":"`+testAdminPassword+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("unlock %s: expected status 200, got %d body=%s", view, rr.Code, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	code, _ := payload["code"].(string)
	return code
}
