package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/auth"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/authpw"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/editgate"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/export"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/rbac"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/search"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/session"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

const maxUploadBytes = 32 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.Login(r.Context(), body.Password)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": sess.Token,
			"role":  sess.Role,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "role": nil})
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "role": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "role": sess.Role})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		sess := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				sess = parsed
			}
		}
		_ = s.service.Logout(r.Context(), sess)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/stats" {
		if !s.service.Can(sess.Role, rbac.ActionRead) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		payload, err := s.service.Stats(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r, sess)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/export" {
		s.handleExport(w, r, sess)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "editmode" {
		s.handleEditMode(w, r, sess, parts)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" {
		switch parts[1] {
		case "updates":
			s.handleUpdates(w, r, sess, parts)
			return
		case "reviews":
			s.handleReviews(w, r, sess, parts)
			return
		case "screenshots":
			s.handleScreenshots(w, r, sess, parts)
			return
		case "milestones":
			s.handleMilestones(w, r, sess, parts)
			return
		case "weeks":
			s.handleWeeks(w, r, sess, parts)
			return
		case "deployments":
			s.handleDeployments(w, r, sess, parts)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
		"redis":    map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if err := s.service.PingSessions(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, sess Session) {
	if !s.service.Can(sess.Role, rbac.ActionRead) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	filterType := strings.TrimSpace(r.URL.Query().Get("type"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}
	payload := s.service.Search(search.Query{
		Text:       q,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})
	writeJSON(w, http.StatusOK, payload)
}

// handleExport streams a data snapshot. JSON by default; format=html renders
// the summary report, format=csv needs a collection parameter.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, sess Session) {
	if !s.requireRead(w, sess) {
		return
	}
	exporter := s.service.Exporter()
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		payload, err := exporter.JSON(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="glazeme-export.json"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	case "html":
		payload, err := exporter.HTMLReport(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	case "csv":
		collection := r.URL.Query().Get("collection")
		known := false
		for _, name := range export.CSVCollections {
			if name == collection {
				known = true
				break
			}
		}
		if !known {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown collection", nil)
			return
		}
		payload, err := exporter.CSV(r.Context(), collection)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="glazeme-`+collection+`.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	default:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be json, csv or html", nil)
	}
}

// handleEditMode serves the gate state and the explicit gate transitions:
// unlock (step-up challenge), lock (exit edit mode), cancel (abandon the
// challenge). The implicit transition, locked mutation -> challenge, happens
// inside requireUnlocked on the entity routes.
func (s *HTTPServer) handleEditMode(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	view := parts[2]

	if len(parts) == 3 && r.Method == http.MethodGet {
		state, err := s.service.EditState(sess.SID, view)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"view": view, "state": state})
		return
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		switch parts[3] {
		case "unlock":
			var body struct {
				Password string `json:"password"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UnlockEdit(sess.SID, view, body.Password); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"view": view, "state": editgate.Unlocked})
			return
		case "lock":
			if err := s.service.LockEdit(sess.SID, view); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"view": view, "state": editgate.Locked})
			return
		case "cancel":
			if err := s.service.CancelEdit(sess.SID, view); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"view": view, "state": editgate.Locked})
			return
		}
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

// requireUnlocked runs the gate check in front of a mutation. A locked gate
// answers 403 EDIT_LOCKED with challenge:true and the mutation never reaches
// the store.
func (s *HTTPServer) requireUnlocked(w http.ResponseWriter, sess Session, view string) bool {
	if err := s.service.AttemptMutate(sess.SID, view); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return false
	}
	return true
}

// requireConfirm enforces the blocking delete confirmation server side.
func requireConfirm(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "CONFIRM_REQUIRED", "Delete requires confirm=true", nil)
		return false
	}
	return true
}

func (s *HTTPServer) requireRead(w http.ResponseWriter, sess Session) bool {
	if !s.service.Can(sess.Role, rbac.ActionRead) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return false
	}
	return true
}

func (s *HTTPServer) handleUpdates(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.requireRead(w, sess) {
			return
		}
		items, err := s.service.ListUpdates(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updates": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		if !s.requireUnlocked(w, sess, "updates") {
			return
		}
		var body BuildUpdateInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateUpdate(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"update": created})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "updates") {
			return
		}
		var body struct {
			Revision int `json:"revision"`
			store.BuildUpdatePatch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PatchUpdate(r.Context(), parts[2], body.Revision, body.BuildUpdatePatch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[2]})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if !s.requireUnlocked(w, sess, "updates") {
			return
		}
		if !requireConfirm(w, r) {
			return
		}
		if err := s.service.DeleteUpdate(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleReviews(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.requireRead(w, sess) {
			return
		}
		items, err := s.service.ListReviews(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		if !s.requireUnlocked(w, sess, "reviews") {
			return
		}
		var body ClientReviewInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateReview(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"review": created})
		return
	}

	if len(parts) == 4 && parts[3] == "points" && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "reviews") {
			return
		}
		var body struct {
			Revision int                 `json:"revision"`
			Points   []store.ReviewPoint `json:"points"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		review, err := s.service.ReplacePoints(r.Context(), parts[2], body.Revision, body.Points)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"review": review})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "reviews") {
			return
		}
		var body struct {
			Revision int `json:"revision"`
			store.ClientReviewPatch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PatchReview(r.Context(), parts[2], body.Revision, body.ClientReviewPatch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[2]})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if !s.requireUnlocked(w, sess, "reviews") {
			return
		}
		if !requireConfirm(w, r) {
			return
		}
		if err := s.service.DeleteReview(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleScreenshots(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.requireRead(w, sess) {
			return
		}
		items, err := s.service.ListScreenshots(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"screenshots": items})
		return
	}

	if len(parts) == 3 && parts[2] == "upload" && r.Method == http.MethodPost {
		if !s.requireUnlocked(w, sess, "screenshots") {
			return
		}
		s.handleScreenshotUpload(w, r)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "screenshots") {
			return
		}
		var body struct {
			Revision int `json:"revision"`
			store.ScreenCapturePatch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PatchScreenshot(r.Context(), parts[2], body.Revision, body.ScreenCapturePatch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[2]})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if !s.requireUnlocked(w, sess, "screenshots") {
			return
		}
		if !requireConfirm(w, r) {
			return
		}
		if err := s.service.DeleteScreenshot(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleScreenshotUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	width, _ := strconv.Atoi(r.FormValue("width"))
	height, _ := strconv.Atoi(r.FormValue("height"))

	created, err := s.service.UploadScreenshot(r.Context(), file, ScreenCaptureUploadInput{
		Title:       r.FormValue("title"),
		Caption:     r.FormValue("caption"),
		Folder:      r.FormValue("folder"),
		Width:       width,
		Height:      height,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"screenshot": created})
}

func (s *HTTPServer) handleMilestones(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.requireRead(w, sess) {
			return
		}
		items, err := s.service.ListMilestones(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"milestones": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		if !s.requireUnlocked(w, sess, "milestones") {
			return
		}
		var body MilestoneInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateMilestone(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"milestone": created})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "milestones") {
			return
		}
		var body struct {
			Revision int `json:"revision"`
			store.TechnicalMilestonePatch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PatchMilestone(r.Context(), parts[2], body.Revision, body.TechnicalMilestonePatch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[2]})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if !s.requireUnlocked(w, sess, "milestones") {
			return
		}
		if !requireConfirm(w, r) {
			return
		}
		if err := s.service.DeleteMilestone(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleWeeks(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.requireRead(w, sess) {
			return
		}
		items, err := s.service.ListWeeks(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"weeks": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		if !s.requireUnlocked(w, sess, "weeks") {
			return
		}
		var body WeekInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateWeek(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"week": created})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "weeks") {
			return
		}
		var body struct {
			Revision int `json:"revision"`
			store.WeekPatch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PatchWeek(r.Context(), parts[2], body.Revision, body.WeekPatch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[2]})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if !s.requireUnlocked(w, sess, "weeks") {
			return
		}
		if !requireConfirm(w, r) {
			return
		}
		if err := s.service.DeleteWeek(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleDeployments(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.requireRead(w, sess) {
			return
		}
		items, err := s.service.ListDeployments(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deployments": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		if !s.requireUnlocked(w, sess, "deployments") {
			return
		}
		var body DeploymentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateDeployment(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"deployment": created})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		if !s.requireUnlocked(w, sess, "deployments") {
			return
		}
		var body struct {
			Revision int `json:"revision"`
			store.DeploymentPatch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PatchDeployment(r.Context(), parts[2], body.Revision, body.DeploymentPatch); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[2]})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if !s.requireUnlocked(w, sess, "deployments") {
			return
		}
		if !requireConfirm(w, r) {
			return
		}
		if err := s.service.DeleteDeployment(r.Context(), parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, editgate.ErrLocked) {
		return http.StatusForbidden, "EDIT_LOCKED", "Edit mode is locked", map[string]any{"challenge": true}
	}
	if errors.Is(err, editgate.ErrInvalidPassword) || errors.Is(err, authpw.ErrInvalidPassword) {
		return http.StatusUnauthorized, "INVALID_PASSWORD", "Invalid password", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Revision conflict", nil
	}
	if errors.Is(err, store.ErrDecode) {
		return http.StatusInternalServerError, "DECODE_ERROR", "Stored document is malformed", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, session.ErrNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
