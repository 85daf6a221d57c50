package http_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"

	handler "github.com/samirrijal/superres/internal/adapters/http"
	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/core/usecases"
	"github.com/samirrijal/superres/internal/pkg/artifacts"
)

// ---- Mock repositories ----

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.Job

	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Job, error)
}

func (m *mockJobRepo) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobRepo) Update(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *mockJobRepo) List(ctx context.Context, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockJobRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Job, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

type mockResolver struct {
	runFn func(ctx context.Context, req domain.InferenceRequest) error
}

func (m *mockResolver) Run(ctx context.Context, req domain.InferenceRequest) error {
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

const sampleDate = "2025-07-01"

type testEnv struct {
	fs   afero.Fs
	repo *mockJobRepo
	res  *mockResolver
	deps *handler.Dependencies
	app  *fiber.App
}

// newEnv wires the real services over an in-memory filesystem. Jobs run
// synchronously, so a submitted job is finished when the response arrives.
func newEnv(opts ...func(*testEnv)) *testEnv {
	env := &testEnv{
		fs:   afero.NewMemMapFs(),
		repo: &mockJobRepo{jobs: make(map[string]domain.Job)},
	}
	env.res = &mockResolver{runFn: func(ctx context.Context, req domain.InferenceRequest) error {
		for _, name := range []string{"S2L2Ax10_MS.tif", "S2L2Ax10_TCI.png"} {
			if err := afero.WriteFile(env.fs, filepath.Join(req.WorkDir, name), bytes.Repeat([]byte{1}, 1024), 0o644); err != nil {
				return err
			}
		}
		return nil
	}}

	store := artifacts.NewStore(env.fs)
	processing := usecases.NewProcessingService(env.repo, store, env.res, nil, nil, "output")
	env.deps = &handler.Dependencies{
		Processing: processing,
		Artifacts:  usecases.NewArtifactService(processing, store),
		DB:         mockPinger{},
		Inference:  mockPinger{},
		Version:    "test",
	}
	for _, o := range opts {
		o(env)
	}

	env.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(env.app, env.deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, []byte, map[string]string) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	headers := make(map[string]string)
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, readBody(t, resp.Body), headers
}

func (e *testEnv) submit(t *testing.T) domain.Job {
	t.Helper()
	status, body, _ := e.do(t, "POST", "/v1/jobs", map[string]interface{}{
		"lat": 26.314625, "lon": 82.987361, "date": sampleDate,
	})
	if status != fiber.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d: %s", status, body)
	}
	var job domain.Job
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return job
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// ---- Coordinate handler tests ----

func TestConvertCoordinates_Decimal(t *testing.T) {
	env := newEnv()

	status, body, headers := env.do(t, "GET", "/v1/coordinates/convert?lat=26.314625&lon=82.987361", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var c handler.Coordinate
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.Valid {
		t.Error("expected valid coordinate")
	}
	if c.LatDMS.Degrees != 26 || c.LatDMS.Minutes != 18 || c.LatDMS.Direction != "N" {
		t.Errorf("unexpected latitude DMS %+v", c.LatDMS)
	}
	if c.LonDMS.Degrees != 82 || c.LonDMS.Minutes != 59 || c.LonDMS.Direction != "E" {
		t.Errorf("unexpected longitude DMS %+v", c.LonDMS)
	}
	if !strings.Contains(headers["Cache-Control"], "max-age=86400") {
		t.Errorf("expected long-lived Cache-Control, got %q", headers["Cache-Control"])
	}
}

func TestConvertCoordinates_FromDMS(t *testing.T) {
	env := newEnv()

	q := "lat_dms=" + url.QueryEscape(`33°51'35.9"S`) + "&lon_dms=" + url.QueryEscape(`151°12'40"E`)
	status, body, _ := env.do(t, "GET", "/v1/coordinates/convert?"+q, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var c handler.Coordinate
	_ = json.Unmarshal(body, &c)
	if c.Lat > -33.85 || c.Lat < -33.87 {
		t.Errorf("expected southern latitude near -33.86, got %f", c.Lat)
	}
	if c.Lon < 151.21 || c.Lon > 151.22 {
		t.Errorf("expected longitude near 151.21, got %f", c.Lon)
	}
}

func TestConvertCoordinates_OutOfRange(t *testing.T) {
	env := newEnv()

	status, body, _ := env.do(t, "GET", "/v1/coordinates/convert?lat=95&lon=10", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var c handler.Coordinate
	_ = json.Unmarshal(body, &c)
	if c.Valid {
		t.Error("expected valid=false for latitude 95")
	}
}

func TestConvertCoordinates_MissingParams(t *testing.T) {
	env := newEnv()

	tests := []string{
		"/v1/coordinates/convert",
		"/v1/coordinates/convert?lat=10",
		"/v1/coordinates/convert?lat=abc&lon=10",
		"/v1/coordinates/convert?lat_dms=garbage&lon_dms=garbage",
	}
	for _, path := range tests {
		status, _, _ := env.do(t, "GET", path, nil)
		if status != 400 {
			t.Errorf("%s: expected 400, got %d", path, status)
		}
	}
}

func TestPreview_Success(t *testing.T) {
	env := newEnv()

	status, body, _ := env.do(t, "GET", "/v1/coordinates/preview?lat=26.314625&lon=82.987361&radius=1000", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var p handler.PreviewResponse
	_ = json.Unmarshal(body, &p)
	if !p.Bounds.Contains(26.314625, 82.987361) {
		t.Errorf("bounds %+v do not contain the center", p.Bounds)
	}
	if !strings.HasPrefix(p.Message, "Selected location: ") {
		t.Errorf("unexpected message %q", p.Message)
	}
}

func TestPreview_BadInput(t *testing.T) {
	env := newEnv()

	for _, path := range []string{
		"/v1/coordinates/preview?lat=26&lon=82&radius=0",
		"/v1/coordinates/preview?lat=26&lon=82&radius=200000",
		"/v1/coordinates/preview?lat=-91&lon=82",
	} {
		status, _, _ := env.do(t, "GET", path, nil)
		if status != 400 {
			t.Errorf("%s: expected 400, got %d", path, status)
		}
	}
}

// ---- Job handler tests ----

func TestSubmitJob_Success(t *testing.T) {
	env := newEnv()

	status, body, headers := env.do(t, "POST", "/v1/jobs", map[string]interface{}{
		"lat": 26.314625, "lon": 82.987361, "date": sampleDate,
	})
	if status != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}

	var job domain.Job
	_ = json.Unmarshal(body, &job)
	if headers["Location"] != "/v1/jobs/"+job.ID {
		t.Errorf("unexpected Location %q", headers["Location"])
	}

	status, body, _ = env.do(t, "GET", "/v1/jobs/"+job.ID, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	_ = json.Unmarshal(body, &job)
	if job.Status != domain.JobSucceeded || job.Progress != 100 {
		t.Errorf("expected succeeded at 100%%, got %s at %d", job.Status, job.Progress)
	}
	if len(job.Artifacts) != 2 || job.TotalBytes != 2048 {
		t.Errorf("expected 2 artifacts totalling 2048 bytes, got %d / %d", len(job.Artifacts), job.TotalBytes)
	}
}

func TestSubmitJob_DMS(t *testing.T) {
	env := newEnv()

	status, body, _ := env.do(t, "POST", "/v1/jobs", map[string]interface{}{
		"lat_dms": `26°18'52.65"N`, "lon_dms": `82°59'14.5"E`, "date": sampleDate,
	})
	if status != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}
	var job domain.Job
	_ = json.Unmarshal(body, &job)
	if job.Location.Lat < 26.31 || job.Location.Lat > 26.32 {
		t.Errorf("unexpected latitude %f", job.Location.Lat)
	}
}

func TestSubmitJob_InvalidInput(t *testing.T) {
	env := newEnv()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"out of range", map[string]interface{}{"lat": 91.0, "lon": 10.0, "date": sampleDate}},
		{"missing lon", map[string]interface{}{"lat": 10.0, "date": sampleDate}},
		{"bad date", map[string]interface{}{"lat": 10.0, "lon": 10.0, "date": "01/07/2025"}},
		{"future date", map[string]interface{}{"lat": 10.0, "lon": 10.0, "date": "2999-01-01"}},
		{"bad dms", map[string]interface{}{"lat_dms": "north", "lon_dms": "east"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := env.do(t, "POST", "/v1/jobs", tt.body)
			if status != 400 {
				t.Errorf("expected 400, got %d: %s", status, body)
			}
		})
	}
	if len(env.repo.jobs) != 0 {
		t.Errorf("expected no jobs created, got %d", len(env.repo.jobs))
	}
}

func TestSubmitJob_CapabilityUnavailable(t *testing.T) {
	env := newEnv(func(e *testEnv) {
		e.res.runFn = func(ctx context.Context, req domain.InferenceRequest) error {
			return domain.ErrCapabilityUnavailable
		}
	})

	job := env.submit(t)
	_, body, _ := env.do(t, "GET", "/v1/jobs/"+job.ID, nil)
	_ = json.Unmarshal(body, &job)

	if job.Status != domain.JobFailed || job.ErrorKind != domain.ErrorKindCapabilityUnavailable {
		t.Errorf("expected capability_unavailable failure, got %s/%s", job.Status, job.ErrorKind)
	}
	if !strings.Contains(job.Error, "s2dr3") {
		t.Errorf("expected install hint in error, got %q", job.Error)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := newEnv()

	for _, id := range []string{"6f1c1c8e-3f5e-4b8a-9d57-0c6c2b8f9a11", "not-a-uuid"} {
		status, body, _ := env.do(t, "GET", "/v1/jobs/"+id, nil)
		if status != 404 {
			t.Errorf("%s: expected 404, got %d", id, status)
		}
		var apiErr handler.APIError
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Code != "not_found" {
			t.Errorf("%s: expected not_found code, got %q", id, apiErr.Code)
		}
	}
}

func TestListJobs_Pagination(t *testing.T) {
	env := newEnv()
	for i := 0; i < 5; i++ {
		env.submit(t)
	}

	status, body, headers := env.do(t, "GET", "/v1/jobs?offset=0&limit=2", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var resp struct {
		Data       []domain.Job       `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	_ = json.Unmarshal(body, &resp)
	if len(resp.Data) != 2 || resp.Pagination.Total != 5 {
		t.Errorf("expected 2 of 5 jobs, got %d of %d", len(resp.Data), resp.Pagination.Total)
	}

	link := headers["Link"]
	for _, rel := range []string{`rel="next"`, `rel="first"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
}

func TestNearbyJobs(t *testing.T) {
	dist := 120.0
	env := newEnv(func(e *testEnv) {
		e.repo.findNearbyFn = func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Job, error) {
			if radius != 2000 {
				t.Errorf("expected radius 2000, got %f", radius)
			}
			return []domain.Job{{ID: "j1", Distance: &dist}}, nil
		}
	})

	status, body, _ := env.do(t, "GET", "/v1/jobs/nearby?lat=26.3&lon=82.9&radius=2000", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var jobs []domain.Job
	_ = json.Unmarshal(body, &jobs)
	if len(jobs) != 1 || jobs[0].Distance == nil || *jobs[0].Distance != dist {
		t.Errorf("unexpected nearby result %+v", jobs)
	}

	status, _, _ = env.do(t, "GET", "/v1/jobs/nearby?lat=26.3", nil)
	if status != 400 {
		t.Errorf("expected 400 without lon, got %d", status)
	}
}

// ---- Artifact handler tests ----

func TestListArtifacts(t *testing.T) {
	env := newEnv()
	job := env.submit(t)

	status, body, _ := env.do(t, "GET", "/v1/jobs/"+job.ID+"/artifacts", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var list handler.ArtifactList
	_ = json.Unmarshal(body, &list)
	if list.Count != 2 || list.TotalBytes != 2048 || list.TotalHuman != "2.00 KB" {
		t.Errorf("unexpected listing %+v", list)
	}
	if list.Files[0].Name != "S2L2Ax10_MS.tif" || list.Files[0].SizeHuman != "1.00 KB" {
		t.Errorf("unexpected first file %+v", list.Files[0])
	}
}

func TestDownloadArtifact(t *testing.T) {
	env := newEnv()
	job := env.submit(t)

	status, body, headers := env.do(t, "GET", "/v1/jobs/"+job.ID+"/artifacts/S2L2Ax10_MS.tif", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(body) != 1024 {
		t.Errorf("expected 1024 bytes, got %d", len(body))
	}
	if headers["Content-Type"] != "image/tiff" {
		t.Errorf("expected image/tiff, got %q", headers["Content-Type"])
	}
	if !strings.Contains(headers["Content-Disposition"], "S2L2Ax10_MS.tif") {
		t.Errorf("unexpected Content-Disposition %q", headers["Content-Disposition"])
	}

	for _, name := range []string{"missing.tif", "..%2F..%2Fetc%2Fpasswd"} {
		status, _, _ = env.do(t, "GET", "/v1/jobs/"+job.ID+"/artifacts/"+name, nil)
		if status != 404 {
			t.Errorf("%s: expected 404, got %d", name, status)
		}
	}
}

func TestArchive(t *testing.T) {
	env := newEnv()
	job := env.submit(t)

	status, body, headers := env.do(t, "GET", "/v1/jobs/"+job.ID+"/archive", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if headers["Content-Type"] != "application/zip" {
		t.Errorf("expected application/zip, got %q", headers["Content-Type"])
	}
	want := fmt.Sprintf(`filename="sentinel2_superres_%s.zip"`, sampleDate)
	if !strings.Contains(headers["Content-Disposition"], want) {
		t.Errorf("expected %s in Content-Disposition, got %q", want, headers["Content-Disposition"])
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Errorf("expected 2 entries, got %d", len(zr.File))
	}
}

func TestClearArtifacts(t *testing.T) {
	env := newEnv()
	job := env.submit(t)

	status, _, _ := env.do(t, "DELETE", "/v1/jobs/"+job.ID+"/artifacts", nil)
	if status != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}

	_, body, _ := env.do(t, "GET", "/v1/jobs/"+job.ID+"/artifacts", nil)
	var list handler.ArtifactList
	_ = json.Unmarshal(body, &list)
	if list.Count != 0 {
		t.Errorf("expected empty listing after clear, got %d", list.Count)
	}
}

func TestClearArtifacts_RunningJob(t *testing.T) {
	env := newEnv()
	id := "6f1c1c8e-3f5e-4b8a-9d57-0c6c2b8f9a11"
	_ = env.repo.Create(context.Background(), &domain.Job{ID: id, Status: domain.JobRunning})

	status, _, _ := env.do(t, "DELETE", "/v1/jobs/"+id+"/artifacts", nil)
	if status != fiber.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
}

// ---- Health ----

func TestHealth_Returns200(t *testing.T) {
	env := newEnv()

	status, body, headers := env.do(t, "GET", "/v1/health", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"version":"test"`) {
		t.Errorf("expected version in body, got %s", body)
	}
	if headers["X-Api-Version"] != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", headers["X-Api-Version"])
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		opt  func(*testEnv)
		want int
	}{
		{"all required ok", func(e *testEnv) {}, 200},
		{"no database", func(e *testEnv) { e.deps.DB = nil }, 503},
		{"inference missing", func(e *testEnv) {
			e.deps.Inference = mockPinger{err: domain.ErrCapabilityUnavailable}
		}, 503},
		{"optional nats down", func(e *testEnv) {
			e.deps.NATS = mockPinger{err: errors.New("connection closed")}
		}, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(tt.opt)
			status, body, _ := env.do(t, "GET", "/v1/ready", nil)
			if status != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, status, body)
			}
		})
	}
}

// ---- GraphQL ----

func TestGraphQL_ConvertAndJob(t *testing.T) {
	env := newEnv()
	job := env.submit(t)

	query := fmt.Sprintf(`{ convert(lat: -12.5, lon: 45) { valid lat_dms { direction text } }
		job(id: %q) { status progress artifacts { name size_human } } }`, job.ID)
	status, body, _ := env.do(t, "POST", "/graphql", map[string]interface{}{"query": query})
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var resp struct {
		Data struct {
			Convert struct {
				Valid  bool `json:"valid"`
				LatDMS struct {
					Direction string `json:"direction"`
					Text      string `json:"text"`
				} `json:"lat_dms"`
			} `json:"convert"`
			Job struct {
				Status    string `json:"status"`
				Progress  int    `json:"progress"`
				Artifacts []struct {
					Name string `json:"name"`
				} `json:"artifacts"`
			} `json:"job"`
		} `json:"data"`
		Errors []map[string]interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Errors) > 0 {
		t.Fatalf("graphql errors: %v", resp.Errors)
	}
	if !resp.Data.Convert.Valid || resp.Data.Convert.LatDMS.Direction != "S" {
		t.Errorf("unexpected convert result %+v", resp.Data.Convert)
	}
	if resp.Data.Job.Status != "succeeded" || len(resp.Data.Job.Artifacts) != 2 {
		t.Errorf("unexpected job result %+v", resp.Data.Job)
	}
}

// ---- Middleware ----

func TestIndexPage(t *testing.T) {
	env := newEnv()

	status, body, headers := env.do(t, "GET", "/", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.HasPrefix(headers["Content-Type"], "text/html") {
		t.Errorf("expected HTML, got %q", headers["Content-Type"])
	}
	if !strings.Contains(string(body), "/v1/jobs") {
		t.Error("control panel does not reference the jobs API")
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	env := newEnv(func(e *testEnv) { e.deps.Events = &nopSubscriber{} })

	status, _, _ := env.do(t, "GET", "/ws", nil)
	if status != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", status)
	}
}

type nopSubscriber struct{}

func (nopSubscriber) SubscribeJob(ctx context.Context, jobID string, handler func([]byte)) (func(), error) {
	return func() {}, nil
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
