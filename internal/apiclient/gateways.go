package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

// CollectionGateway implements the list-controller gateway for one entity
// collection. The server wraps responses in a keyed envelope ("updates" for
// the list, "update" for a single record), and confirms updates without
// echoing the record, so the bump closure reproduces the server's revision
// increment locally.
type CollectionGateway[T interface{ EntityID() string }] struct {
	c       *Client
	path    string
	listKey string
	itemKey string
	bump    func(T) T
}

func (g CollectionGateway[T]) List(ctx context.Context) ([]T, error) {
	var out map[string]json.RawMessage
	if err := g.c.do(ctx, http.MethodGet, g.path, nil, &out); err != nil {
		return nil, err
	}
	var items []T
	if raw, ok := out[g.listKey]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", g.listKey, err)
		}
	}
	return items, nil
}

func (g CollectionGateway[T]) Create(ctx context.Context, item T) (T, error) {
	var created T
	var out map[string]json.RawMessage
	if err := g.c.do(ctx, http.MethodPost, g.path, item, &out); err != nil {
		return created, err
	}
	raw, ok := out[g.itemKey]
	if !ok {
		return created, fmt.Errorf("response missing %s", g.itemKey)
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return created, fmt.Errorf("decode %s: %w", g.itemKey, err)
	}
	return created, nil
}

func (g CollectionGateway[T]) Update(ctx context.Context, item T) (T, error) {
	if err := g.c.do(ctx, http.MethodPut, g.path+"/"+item.EntityID(), item, nil); err != nil {
		var zero T
		return zero, err
	}
	return g.bump(item), nil
}

func (g CollectionGateway[T]) Delete(ctx context.Context, id string) error {
	return g.c.do(ctx, http.MethodDelete, g.path+"/"+id+"?confirm=true", nil, nil)
}

func (c *Client) Updates() CollectionGateway[store.BuildUpdate] {
	return CollectionGateway[store.BuildUpdate]{c, "/api/updates", "updates", "update",
		func(u store.BuildUpdate) store.BuildUpdate { u.Revision++; return u }}
}

func (c *Client) Reviews() CollectionGateway[store.ClientReview] {
	return CollectionGateway[store.ClientReview]{c, "/api/reviews", "reviews", "review",
		func(r store.ClientReview) store.ClientReview { r.Revision++; return r }}
}

func (c *Client) Screenshots() CollectionGateway[store.ScreenCapture] {
	return CollectionGateway[store.ScreenCapture]{c, "/api/screenshots", "screenshots", "screenshot",
		func(s store.ScreenCapture) store.ScreenCapture { s.Revision++; return s }}
}

func (c *Client) Milestones() CollectionGateway[store.TechnicalMilestone] {
	return CollectionGateway[store.TechnicalMilestone]{c, "/api/milestones", "milestones", "milestone",
		func(m store.TechnicalMilestone) store.TechnicalMilestone { m.Revision++; return m }}
}

func (c *Client) Weeks() CollectionGateway[store.Week] {
	return CollectionGateway[store.Week]{c, "/api/weeks", "weeks", "week",
		func(w store.Week) store.Week { w.Revision++; return w }}
}

func (c *Client) Deployments() CollectionGateway[store.Deployment] {
	return CollectionGateway[store.Deployment]{c, "/api/deployments", "deployments", "deployment",
		func(d store.Deployment) store.Deployment { d.Revision++; return d }}
}

// ReplaceReviewPoints swaps a review's full point list in one call and
// returns the confirmed review.
func (c *Client) ReplaceReviewPoints(ctx context.Context, id string, revision int, points []store.ReviewPoint) (store.ClientReview, error) {
	body := struct {
		Revision int                 `json:"revision"`
		Points   []store.ReviewPoint `json:"points"`
	}{Revision: revision, Points: points}
	var out struct {
		Review store.ClientReview `json:"review"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/reviews/"+id+"/points", body, &out); err != nil {
		return store.ClientReview{}, err
	}
	return out.Review, nil
}

// ScreenshotUpload carries one file plus its metadata.
type ScreenshotUpload struct {
	Title    string
	Caption  string
	Folder   string
	Width    int
	Height   int
	Filename string
	File     io.Reader
}

// UploadScreenshot sends the file as a multipart form.
func (c *Client) UploadScreenshot(ctx context.Context, in ScreenshotUpload) (store.ScreenCapture, error) {
	fields := map[string]string{
		"title":   in.Title,
		"caption": in.Caption,
		"folder":  in.Folder,
		"width":   strconv.Itoa(in.Width),
		"height":  strconv.Itoa(in.Height),
	}
	var out struct {
		Screenshot store.ScreenCapture `json:"screenshot"`
	}
	if err := c.doMultipart(ctx, "/api/screenshots/upload", fields, "file", in.Filename, in.File, &out); err != nil {
		return store.ScreenCapture{}, err
	}
	return out.Screenshot, nil
}
