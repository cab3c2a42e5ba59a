package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thongnm19089/share-fb/internal/models"
)

type fakeService struct {
	jobs      map[string]models.CrawlJob
	live      bool
	started   []string
	cancelled []string
}

func (f *fakeService) Credential(name string) (models.Credential, error) {
	if !f.live {
		return models.Credential{}, models.ErrNoLiveCredential
	}
	return models.Credential{Name: "main", Live: true}, nil
}

func (f *fakeService) StartCrawl(_ context.Context, targetID string, _ models.Credential) (string, error) {
	if targetID != "t1" && targetID != models.AllTargets {
		return "", models.ErrTargetNotFound
	}
	f.started = append(f.started, targetID)
	return "job-1", nil
}

func (f *fakeService) GetStatus(_ context.Context, id string) (models.CrawlJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return models.CrawlJob{}, models.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeService) Cancel(_ context.Context, id string) error {
	if _, ok := f.jobs[id]; !ok {
		return models.ErrJobNotFound
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestStartCrawl(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		live   bool
		status int
	}{
		{"启动单个目标", `{"target_id":"t1"}`, true, http.StatusAccepted},
		{"启动全部目标", `{"target_id":"all"}`, true, http.StatusAccepted},
		{"未知目标", `{"target_id":"zz"}`, true, http.StatusNotFound},
		{"缺少目标", `{}`, true, http.StatusBadRequest},
		{"无效JSON", `{`, true, http.StatusBadRequest},
		{"没有可用凭据", `{"target_id":"t1"}`, false, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{live: tt.live}
			rec, out := do(t, NewServer(svc).Handler(), http.MethodPost, "/api/crawl", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusAccepted {
				assert.Equal(t, "job-1", out["job_id"])
				assert.Equal(t, "running", out["status"])
			} else {
				assert.NotEmpty(t, out["error"])
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	posted := time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC)
	svc := &fakeService{jobs: map[string]models.CrawlJob{
		"done": {
			ID: "done", TargetID: "t1", Status: models.JobCompleted, Progress: 100,
			Results: []models.PostRecord{
				models.NewPostRecord("t1", "https://fb.test/p/2", models.PostFields{Caption: "x", PostedAt: posted, Likes: 5, Comments: 5, Shares: 5}),
			},
		},
		"failed": {ID: "failed", Status: models.JobError, Progress: 40, Error: "需要登录"},
	}}
	h := NewServer(svc).Handler()

	rec, out := do(t, h, http.MethodGet, "/api/crawl/done", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", out["status"])
	assert.EqualValues(t, 100, out["progress"])
	results := out["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "https://fb.test/p/2", first["source_url"])
	assert.Equal(t, "x", first["caption_snippet"])
	assert.Equal(t, "2024-05-10T13:00:00Z", first["posted_at"])
	assert.EqualValues(t, 15, first["total_engagement"])
	assert.NotContains(t, out, "error")

	rec, out = do(t, h, http.MethodGet, "/api/crawl/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "需要登录", out["error"])
	assert.Empty(t, out["results"])

	rec, _ = do(t, h, http.MethodGet, "/api/crawl/none", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancel(t *testing.T) {
	svc := &fakeService{jobs: map[string]models.CrawlJob{"j": {ID: "j", Status: models.JobRunning}}}
	h := NewServer(svc).Handler()

	rec, _ := do(t, h, http.MethodDelete, "/api/crawl/j", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"j"}, svc.cancelled)

	rec, _ = do(t, h, http.MethodDelete, "/api/crawl/x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouting(t *testing.T) {
	svc := &fakeService{jobs: map[string]models.CrawlJob{"j": {ID: "j", Status: models.JobRunning}}}
	h := NewServer(svc).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"不支持的方法", http.MethodPut, "/api/crawl/j", http.StatusMethodNotAllowed},
		{"未知路径", http.MethodGet, "/api/unknown", http.StatusNotFound},
		{"集合不支持GET", http.MethodGet, "/api/crawl", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, h, tt.method, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, out["error"])
		})
	}
	assert.Empty(t, svc.cancelled)
}
