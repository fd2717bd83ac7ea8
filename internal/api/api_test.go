package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/launchpad/internal/catalog"
	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/identity"
	"github.com/ashureev/launchpad/internal/learning"
	"github.com/ashureev/launchpad/internal/progress"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/ashureev/launchpad/internal/tools"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.NotFound("project", "p1"), http.StatusNotFound},
		{domain.Invalid("bad"), http.StatusBadRequest},
		{fmt.Errorf("save progress: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrFreezeAlreadyUsed, http.StatusConflict},
		{domain.ErrStreakNotAtRisk, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestNextLevelXP(t *testing.T) {
	levels := []domain.Level{{Level: 3, MinXP: 300}, {Level: 2, MinXP: 100}, {Level: 1, MinXP: 0}}
	next := nextLevelXP(levels, 150)
	require.NotNil(t, next)
	assert.Equal(t, 300, *next)
	assert.Nil(t, nextLevelXP(levels, 300))
}

type testServer struct {
	t      *testing.T
	router http.Handler
	repo   *store.SQLStore
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	repo, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	c, err := catalog.Default()
	require.NoError(t, err)
	require.NoError(t, repo.SeedCatalog(ctx, c))

	svc := gamification.New(repo, gamification.Options{})
	engine := progress.NewEngine(repo, svc.Orchestrator, progress.Options{})
	lessons := learning.New(repo, svc.Orchestrator, learning.Options{})
	dispatcher := tools.NewDispatcher(tools.NewDefaultRegistry(tools.Deps{Engine: engine, Learning: lessons}), nil, nil)

	h := NewHandler(Deps{
		Repo:         repo,
		Engine:       engine,
		Gamification: svc,
		Learning:     lessons,
		Tools:        dispatcher,
	})
	v := identity.NewVerifier("secret")
	r := chi.NewRouter()
	h.RegisterRoutes(r, identity.Middleware(v, repo, "UTC", nil))

	token, err := v.Issue("u1", "Ada", "", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, router: r, repo: repo, token: token}
}

func (s *testServer) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (s *testServer) createProject(stage string) string {
	s.t.Helper()
	rec, out := s.do(http.MethodPost, "/api/tools/create_project_with_stage",
		`{"name": "Launchpad", "stage": "`+stage+`"}`)
	require.Equal(s.t, http.StatusOK, rec.Code)
	require.Equal(s.t, true, out["success"], out)
	return out["project"].(map[string]any)["id"].(string)
}

func TestRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReady(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetMe(t *testing.T) {
	s := newTestServer(t)
	rec, out := s.do(http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", out["id"])
	assert.Equal(t, "Ada", out["display_name"])
	assert.EqualValues(t, 1, out["level"])
	assert.EqualValues(t, 100, out["next_level_xp"])
}

func TestProjectRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, out := s.do(http.MethodGet, "/api/projects/active", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, out["error"])

	id := s.createProject("idea")
	rec, out = s.do(http.MethodGet, "/api/projects/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, out["id"])

	rec, out = s.do(http.MethodGet, "/api/checklist/idea", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["items"], 3)

	base := "/api/projects/" + id + "/stages/idea"
	for _, key := range []string{"define_problem", "target_audience"} {
		rec, _ = s.do(http.MethodPost, base+"/items/"+key+"/complete", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, out = s.do(http.MethodPost, base+"/items/formulate_idea/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["checked"])
	assert.Equal(t, true, out["stageCompleted"])
	assert.Equal(t, "validation", out["newStage"])

	rec, out = s.do(http.MethodPost, base+"/reopen", "")
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := s.repo.GetProject(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsRevision, p.Progress(domain.StageIdea).Status)
	assert.Equal(t, domain.StageValidation, p.Stage)
}

func TestProjectRoutes_Errors(t *testing.T) {
	s := newTestServer(t)
	id := s.createProject("idea")

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown stage", "/api/projects/" + id + "/stages/launch/items/x/complete", http.StatusBadRequest},
		{"unknown item", "/api/projects/" + id + "/stages/idea/items/fly/complete", http.StatusBadRequest},
		{"missing project", "/api/projects/missing/stages/idea/items/define_problem/complete", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := s.do(http.MethodPost, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, out["error"])
		})
	}

	rec, _ := s.do(http.MethodGet, "/api/checklist/launch", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreakRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, out := s.do(http.MethodPost, "/api/streak", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["streakCount"])
	assert.Equal(t, true, out["isNewDay"])

	rec, out = s.do(http.MethodGet, "/api/streak/freeze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["canFreeze"])

	rec, out = s.do(http.MethodPost, "/api/streak/freeze", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrStreakNotAtRisk.Error(), out["error"])
}

func TestAchievementsAndHistory(t *testing.T) {
	s := newTestServer(t)
	s.createProject("idea")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/achievements", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.UserAchievement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.NotEmpty(t, list)
	for _, ua := range list {
		if ua.ID == "first_project" {
			assert.True(t, ua.Earned)
		}
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/xp/history?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []domain.XPTransaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)

	rec2, _ := s.do(http.MethodGet, "/api/xp/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestLearningRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, out := s.do(http.MethodGet, "/api/lessons/suggestion", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idea", out["stage"])

	rec, out = s.do(http.MethodPost, "/api/lessons/idea-audience/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["firstCompletion"])

	rec, out = s.do(http.MethodPost, "/api/lessons/idea-audience/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["firstCompletion"])

	rec, _ = s.do(http.MethodPost, "/api/lessons/no-such-lesson/complete", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/pitch-sessions", `{"score": 150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/pitch-sessions", `{"score": "high"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = s.do(http.MethodPost, "/api/pitch-sessions", `{"score": 80, "has_results": true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := out["session"].(map[string]any)
	assert.Equal(t, "u1", session["user_id"])
	assert.EqualValues(t, 80, session["score"])
}

func TestToolRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var schemas []tools.Schema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schemas))
	assert.Len(t, schemas, 7)

	recTool, out := s.do(http.MethodPost, "/api/tools/no_such_tool", `{}`)
	assert.Equal(t, http.StatusOK, recTool.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "unknown tool: no_such_tool", out["error"])

	recTool, _ = s.do(http.MethodPost, "/api/tools/save_idea", `{not json`)
	assert.Equal(t, http.StatusBadRequest, recTool.Code)
}
