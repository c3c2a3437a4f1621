package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

func TestMutationWhileLockedOpensChallengeWithoutStoreCall(t *testing.T) {
	storeCalls := 0
	fs := &fakeStore{
		createBuildUpdateFn: func(_ context.Context, item store.BuildUpdate) (store.BuildUpdate, error) {
			storeCalls++
			item.ID = "bu-1"
			return item, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	rr := doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"Sprint 4 drop","status":"completed"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "EDIT_LOCKED" {
		t.Fatalf("expected code EDIT_LOCKED, got %q", code)
	}
	var payload struct {
		Details struct {
			Challenge bool `json:"challenge"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !payload.Details.Challenge {
		t.Fatal("expected challenge:true in details")
	}
	if storeCalls != 0 {
		t.Fatalf("store must not be called while locked, got %d calls", storeCalls)
	}

	rr = doJSON(handler, http.MethodGet, "/api/editmode/updates", token, "")
	var state struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("parse state: %v", err)
	}
	if state.State != "unlocking" {
		t.Fatalf("expected gate in unlocking state after withheld mutation, got %q", state.State)
	}
}

func TestUnlockDoesNotReplayWithheldMutation(t *testing.T) {
	storeCalls := 0
	fs := &fakeStore{
		createBuildUpdateFn: func(_ context.Context, item store.BuildUpdate) (store.BuildUpdate, error) {
			storeCalls++
			item.ID = "bu-1"
			return item, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	// Withheld mutation opens the challenge.
	doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"First"}`)

	unlockView(t, handler, token, "updates")
	if storeCalls != 0 {
		t.Fatalf("unlock must not replay the withheld mutation, got %d store calls", storeCalls)
	}

	// The caller re-invokes explicitly.
	rr := doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"First"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 after unlock, got %d body=%s", rr.Code, rr.Body.String())
	}
	if storeCalls != 1 {
		t.Fatalf("expected exactly one store call after re-invoke, got %d", storeCalls)
	}
}

func TestUnlockWrongPasswordKeepsChallengeOpen(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"x"}`)

	rr := doJSON(handler, http.MethodPost, "/api/editmode/updates/unlock", token, `{"password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "INVALID_PASSWORD" {
		t.Fatalf("expected code INVALID_PASSWORD, got %q", code)
	}

	rr = doJSON(handler, http.MethodGet, "/api/editmode/updates", token, "")
	var state struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("parse state: %v", err)
	}
	if state.State != "unlocking" {
		t.Fatalf("expected challenge to stay open after wrong password, got %q", state.State)
	}
}

func TestCancelReturnsGateToLocked(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"x"}`)

	rr := doJSON(handler, http.MethodPost, "/api/editmode/updates/cancel", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected status 200, got %d", rr.Code)
	}

	rr = doJSON(handler, http.MethodGet, "/api/editmode/updates", token, "")
	var state struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("parse state: %v", err)
	}
	if state.State != "locked" {
		t.Fatalf("expected locked after cancel, got %q", state.State)
	}
}

func TestLockExitsEditModeWithoutConfirmation(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	unlockView(t, handler, token, "updates")

	rr := doJSON(handler, http.MethodPost, "/api/editmode/updates/lock", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("lock: expected status 200, got %d", rr.Code)
	}

	rr = doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"x"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected mutation withheld after lock, got %d", rr.Code)
	}
}

func TestGatesAreIsolatedPerView(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	unlockView(t, handler, token, "updates")

	rr := doJSON(handler, http.MethodPost, "/api/reviews", token, `{"clientName":"Acme","rating":5}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected reviews gate to stay locked, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"ok"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected updates gate to be unlocked, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGatesAreIsolatedPerSession(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	first := loginAs(t, handler, testAdminPassword)
	second := loginAs(t, handler, testAdminPassword)

	unlockView(t, handler, first, "updates")

	rr := doJSON(handler, http.MethodPost, "/api/updates", second, `{"title":"x"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected second session to be locked, got %d", rr.Code)
	}
}

func TestViewerCanUnlockWithEditSecret(t *testing.T) {
	// The edit secret defaults to the admin password. A viewer who knows it
	// passes the step-up check regardless of login role.
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testViewerPassword)

	unlockView(t, handler, token, "milestones")

	rr := doJSON(handler, http.MethodPost, "/api/milestones", token, `{"title":"WebSocket layer"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected unlocked viewer to create, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestDeleteRequiresConfirm(t *testing.T) {
	deleteCalls := 0
	fs := &fakeStore{
		deleteBuildUpdateFn: func(context.Context, string) error {
			deleteCalls++
			return nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)
	unlockView(t, handler, token, "updates")

	rr := doJSON(handler, http.MethodDelete, "/api/updates/bu-1", token, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without confirm, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "CONFIRM_REQUIRED" {
		t.Fatalf("expected code CONFIRM_REQUIRED, got %q", code)
	}
	if deleteCalls != 0 {
		t.Fatalf("store delete must not run without confirm, got %d calls", deleteCalls)
	}

	rr = doJSON(handler, http.MethodDelete, "/api/updates/bu-1?confirm=true", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 with confirm, got %d body=%s", rr.Code, rr.Body.String())
	}
	if deleteCalls != 1 {
		t.Fatalf("expected one store delete, got %d", deleteCalls)
	}
}

func TestRevisionConflictMapsTo409(t *testing.T) {
	fs := &fakeStore{
		updateBuildUpdateFn: func(context.Context, string, int, store.BuildUpdatePatch) error {
			return store.ErrConflict
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)
	unlockView(t, handler, token, "updates")

	rr := doJSON(handler, http.MethodPut, "/api/updates/bu-1", token, `{"revision":1,"title":"stale"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "CONFLICT" {
		t.Fatalf("expected code CONFLICT, got %q", code)
	}
}

func TestMalformedStoredDocumentMapsToDecodeError(t *testing.T) {
	fs := &fakeStore{
		listClientReviewsFn: func(context.Context) ([]store.ClientReview, error) {
			return nil, store.ErrDecode
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	rr := doJSON(handler, http.MethodGet, "/api/reviews", token, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "DECODE_ERROR" {
		t.Fatalf("expected code DECODE_ERROR, got %q", code)
	}
}

func TestCreateUpdateRejectsUnknownStatus(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)
	unlockView(t, handler, token, "updates")

	rr := doJSON(handler, http.MethodPost, "/api/updates", token, `{"title":"x","status":"shipped"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "VALIDATION_ERROR" {
		t.Fatalf("expected code VALIDATION_ERROR, got %q", code)
	}
}

func TestCreateReviewRejectsOutOfRangeRating(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)
	unlockView(t, handler, token, "reviews")

	rr := doJSON(handler, http.MethodPost, "/api/reviews", token, `{"clientName":"Acme","rating":6}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestEditModeRejectsUnknownView(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	handler := server.Handler()
	token := loginAs(t, handler, testAdminPassword)

	rr := doJSON(handler, http.MethodGet, "/api/editmode/bogus", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for unknown view, got %d body=%s", rr.Code, rr.Body.String())
	}
}
