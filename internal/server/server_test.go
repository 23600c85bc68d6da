package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"wishline/internal/config"
	"wishline/internal/db"
	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Sampler = engine.NewSampler(1)
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{JWTSecret: "test-secret", AllowActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{Timeout: 5 * time.Second},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func createUser(t *testing.T, srv *testServer, nickname, birthDate string, publicMode bool) UserResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/users", map[string]any{
		"nickname":              nickname,
		"birth_date":            birthDate,
		"is_public_mode_active": publicMode,
	}, asActor("admin"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user: %d %s", res.StatusCode, string(data))
	}
	var u UserResponse
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	return u
}

func createCategory(t *testing.T, srv *testServer, name string, adult bool, quota int) domain.Category {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/categories", map[string]any{
		"name":                  name,
		"is_adult":              adult,
		"max_wishes_per_period": quota,
		"min_days_to_complete":  1,
		"max_days_to_complete":  30,
	}, asActor("admin"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create category: %d %s", res.StatusCode, string(data))
	}
	var c domain.Category
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal category: %v", err)
	}
	return c
}

func TestHealthNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/users", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestDevLoginAndJWT(t *testing.T) {
	srv := newTestServer(t)
	u := createUser(t, srv, "ana", "1990-05-10", false)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"user_id": u.ID,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("token missing: %v %s", err, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var me UserResponse
	if err := json.Unmarshal(data, &me); err != nil || me.ID != u.ID {
		t.Fatalf("me mismatch: %v %s", err, string(data))
	}
}

func TestWishCreateAndMinorRule(t *testing.T) {
	srv := newTestServer(t)
	adult := createUser(t, srv, "adult", "1990-05-10", false)
	minor := createUser(t, srv, "minor", "2015-03-01", false)
	cat := createCategory(t, srv, "intimate", true, 2)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/wishes", map[string]any{
		"category_id": cat.ID,
		"title":       "grown-up things",
	}, asActor(adult.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("adult wish: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/wishes", map[string]any{
		"category_id": cat.ID,
		"title":       "not allowed",
	}, asActor(minor.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("minor wish: %d %s", res.StatusCode, string(data))
	}
}

func TestMatchAndAllocationFlow(t *testing.T) {
	srv := newTestServer(t)
	a := createUser(t, srv, "a", "1990-01-01", false)
	b := createUser(t, srv, "b", "1991-01-01", false)
	cat := createCategory(t, srv, "household", false, 2)

	for _, title := range []string{"dishes", "plants", "windows"} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/wishes", map[string]any{
			"category_id": cat.ID,
			"title":       title,
		}, asActor(a.ID))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("wish %s: %d %s", title, res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/matches", map[string]any{
		"user_id":              b.ID,
		"mode":                 "private",
		"private_category_ids": []string{cat.ID},
	}, asActor(a.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create match: %d %s", res.StatusCode, string(data))
	}
	var m domain.Match
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/matches/"+m.ID+"/accept", nil, asActor(b.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept match: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/periods/run", map[string]any{
		"days": 30,
	}, asActor("admin"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("run period: %d %s", res.StatusCode, string(data))
	}
	var summary engine.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.PrivateMatchesProcessed != 1 || summary.TotalAssignments != 2 {
		t.Fatalf("summary: %+v", summary)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/assignments?open=true", nil, asActor(b.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list assignments: %d %s", res.StatusCode, string(data))
	}
	var assignments struct {
		Items []domain.Assignment `json:"items"`
	}
	if err := json.Unmarshal(data, &assignments); err != nil {
		t.Fatalf("unmarshal assignments: %v", err)
	}
	if len(assignments.Items) != 2 {
		t.Fatalf("assignments toward b = %d", len(assignments.Items))
	}

	// private assignments cannot be rejected over HTTP either
	target := assignments.Items[0]
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/assignments/"+target.ID+"/reject", nil, asActor(b.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("reject private: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/assignments/"+target.ID+"/execution", map[string]any{
		"completed_date": "2025-02-01",
		"rating":         5,
	}, asActor(b.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("record execution: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/rankings/most-completed", nil, asActor(a.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rankings: %d %s", res.StatusCode, string(data))
	}
	var ranks struct {
		Items []domain.RankingEntry `json:"items"`
	}
	if err := json.Unmarshal(data, &ranks); err != nil {
		t.Fatalf("unmarshal rankings: %v", err)
	}
	if len(ranks.Items) != 1 || ranks.Items[0].UserID != b.ID {
		t.Fatalf("rankings: %+v", ranks.Items)
	}
}

func TestExecutionRatingValidation(t *testing.T) {
	srv := newTestServer(t)
	a := createUser(t, srv, "a", "1990-01-01", true)
	b := createUser(t, srv, "b", "1991-01-01", true)
	cat := createCategory(t, srv, "wellness", false, 1)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/wishes", map[string]any{
		"category_id": cat.ID,
		"title":       "walk",
	}, asActor(a.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("wish: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/matches", map[string]any{
		"user_id": b.ID,
		"mode":    "public",
	}, asActor(a.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("match: %d %s", res.StatusCode, string(data))
	}
	var m domain.Match
	_ = json.Unmarshal(data, &m)
	if res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/matches/"+m.ID+"/accept", nil, asActor(b.ID)); res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, string(data))
	}
	if res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/periods/run", map[string]any{}, asActor("admin")); res.StatusCode != http.StatusOK {
		t.Fatalf("run: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/assignments", nil, asActor(b.ID))
	var assignments struct {
		Items []domain.Assignment `json:"items"`
	}
	_ = json.Unmarshal(data, &assignments)
	if len(assignments.Items) == 0 {
		t.Fatalf("no assignment: %s", string(data))
	}
	id := assignments.Items[0].ID
	// schema rejects rating 9 before the engine sees it
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/assignments/"+id+"/execution", map[string]any{
		"completed_date": "2025-02-01",
		"rating":         9,
	}, asActor(b.ID))
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("rating 9: %d %s", res.StatusCode, string(data))
	}
}
