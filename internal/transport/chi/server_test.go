package chi

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	domusage "github.com/kailas-cloud/pictura/internal/domain/usage"
	"github.com/kailas-cloud/pictura/internal/extractor"
	catalogpkg "github.com/kailas-cloud/pictura/internal/usecase/catalog"
	describeuc "github.com/kailas-cloud/pictura/internal/usecase/describe"
	healthuc "github.com/kailas-cloud/pictura/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pictura/internal/usecase/ingest"
	recognitionuc "github.com/kailas-cloud/pictura/internal/usecase/recognition"
	usageuc "github.com/kailas-cloud/pictura/internal/usecase/usage"
)

// --- Fakes ---

type memRepo struct {
	mu     sync.Mutex
	items  map[int64]painting.Painting
	views  map[int64]int64
	descs  map[int64]string
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:  make(map[int64]painting.Painting),
		views:  make(map[int64]int64),
		descs:  make(map[int64]string),
		nextID: 1,
	}
}

func (m *memRepo) put(meta painting.Metadata, vec feature.Vector) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.items[id] = painting.Reconstruct(id, meta, vec, 0, 0, 0)
	return id
}

func (m *memRepo) sorted() []painting.Painting {
	ids := make([]int64, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]painting.Painting, len(ids))
	for i, id := range ids {
		out[i] = m.items[id]
	}
	return out
}

func (m *memRepo) Create(_ context.Context, p painting.Painting) (painting.Painting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = p.WithID(m.nextID)
	m.nextID++
	m.items[p.ID()] = p
	return p, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (painting.Painting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return painting.Painting{}, domain.ErrPaintingNotFound
	}
	return p, nil
}

func (m *memRepo) Update(_ context.Context, id int64, meta painting.Metadata) (painting.Painting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return painting.Painting{}, domain.ErrPaintingNotFound
	}
	updated := painting.Reconstruct(id, meta, p.Features(), p.ViewCount(), p.CreatedAt(), p.UpdatedAt())
	m.items[id] = updated
	return updated, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrPaintingNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]painting.Painting, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m *memRepo) Popular(_ context.Context, limit int) ([]painting.Painting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	return all[:min(limit, len(all))], nil
}

func (m *memRepo) ListWithFeatures(_ context.Context) ([]painting.Painting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []painting.Painting
	for _, p := range m.sorted() {
		if p.HasFeatures() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) IncrementViewCount(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[id]++
	return nil
}

func (m *memRepo) ListPendingFeatures(_ context.Context, limit int) ([]painting.Painting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []painting.Painting
	for _, p := range m.sorted() {
		if !p.HasFeatures() && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) StoreFeatures(_ context.Context, id int64, vec feature.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return domain.ErrPaintingNotFound
	}
	m.items[id] = painting.Reconstruct(id, p.Metadata(), vec, p.ViewCount(), p.CreatedAt(), p.UpdatedAt())
	return nil
}

func (m *memRepo) UpdateDescription(_ context.Context, id int64, desc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrPaintingNotFound
	}
	m.descs[id] = desc
	return nil
}

type mapFetcher map[string][]byte

func (f mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f[url]
	if !ok {
		return nil, domain.ErrInvalidImage
	}
	return data, nil
}

type notReadyExtractor struct{}

func (notReadyExtractor) Extract(context.Context, []byte) (feature.Vector, error) {
	return nil, domain.ErrExtractorNotReady
}

func (notReadyExtractor) Status() (domain.ExtractorState, error) {
	return domain.ExtractorLoading, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type readyStatus struct{}

func (readyStatus) Status() (domain.ExtractorState, error) { return domain.ExtractorReady, nil }

// --- Helpers ---

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type testEnv struct {
	repo        *memRepo
	recognition *recognitionuc.Service
	router      http.Handler
	extractor   *extractor.Local
	budget      *describeuc.BudgetTracker
}

func newTestEnv(t *testing.T, fetcher ingestuc.Fetcher) *testEnv {
	t.Helper()
	local, err := extractor.NewLocal(2)
	if err != nil {
		t.Fatalf("new local extractor: %v", err)
	}
	return newTestEnvWith(t, local, readyStatus{}, fetcher, local)
}

func newTestEnvWith(
	t *testing.T,
	ext domain.Extractor,
	status healthuc.ExtractorStatus,
	fetcher ingestuc.Fetcher,
	local *extractor.Local,
) *testEnv {
	t.Helper()
	repo := newMemRepo()
	log := zap.NewNop()
	budget := describeuc.NewBudgetTracker("test", "test-model", 1000, 0, describeuc.BudgetActionReject, log)

	rec := recognitionuc.New(ext, repo, 0.9, log)
	srv := NewServer(
		rec,
		catalogpkg.New(repo),
		ingestuc.New(ext, repo, fetcher, log),
		describeuc.New(repo, nil, log),
		usageuc.New(budget),
		healthuc.New(okPinger{}, nil, status),
		log,
	)

	r := chi.NewRouter()
	srv.Routes(r)
	return &testEnv{repo: repo, recognition: rec, router: r, extractor: local, budget: budget}
}

func (e *testEnv) vector(t *testing.T, img []byte) feature.Vector {
	t.Helper()
	vec, err := e.extractor.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return vec
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h greyscale
// image. No pixel data follows, so only header parsing can succeed.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 0, 17)
	ihdr = append(ihdr, "IHDR"...)
	ihdr = binary.BigEndian.AppendUint32(ihdr, w)
	ihdr = binary.BigEndian.AppendUint32(ihdr, h)
	ihdr = append(ihdr, 8, 0, 0, 0, 0) // 8-bit greyscale, no interlace

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(ihdr)-4)))
	buf.Write(ihdr)
	buf.Write(binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(ihdr)))
	return buf.Bytes()
}

func do(h http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rr.Body.String())
	}
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code ErrorCode) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status: got %d, want %d (body=%s)", rr.Code, status, rr.Body.String())
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != code {
		t.Errorf("code: got %q, want %q", resp.Code, code)
	}
}

var red = color.RGBA{R: 255, A: 255}

var blue = color.RGBA{B: 255, A: 255}

// --- Recognition ---

func TestRecognize_Match(t *testing.T) {
	env := newTestEnv(t, nil)
	img := solidPNG(t, red)
	id := env.repo.put(painting.Metadata{Title: "Red Square", Artist: "Kazimir Malevich", Year: 1915}, env.vector(t, img))
	env.repo.put(painting.Metadata{Title: "Blue", Artist: "Yves Klein"}, env.vector(t, solidPNG(t, blue)))

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", img, "image/png")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	resp := decode[RecognitionResponse](t, rr)
	if !resp.Success || resp.Painting == nil {
		t.Fatalf("expected success with painting, got %+v", resp)
	}
	if resp.Painting.ID != id || resp.Painting.Title != "Red Square" {
		t.Errorf("unexpected painting: %+v", resp.Painting)
	}
	if resp.Score < 0.999 {
		t.Errorf("expected score ~1, got %v", resp.Score)
	}
	if resp.Message != "" {
		t.Errorf("no message expected on match, got %q", resp.Message)
	}

	env.recognition.Wait()
	env.repo.mu.Lock()
	views := env.repo.views[id]
	env.repo.mu.Unlock()
	if views != 1 {
		t.Errorf("expected one view recorded, got %d", views)
	}
}

func TestRecognize_Multipart(t *testing.T) {
	env := newTestEnv(t, nil)
	img := solidPNG(t, red)
	env.repo.put(painting.Metadata{Title: "Red", Artist: "A"}, env.vector(t, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(img)
	_ = mw.Close()

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", body.Bytes(), mw.FormDataContentType())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if resp := decode[RecognitionResponse](t, rr); !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	env.recognition.Wait()
}

func TestRecognize_MultipartMissingField(t *testing.T) {
	env := newTestEnv(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", body.Bytes(), mw.FormDataContentType())
	assertError(t, rr, http.StatusBadRequest, ErrorCodeInvalidImage)
}

func TestRecognize_NotRecognized(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", solidPNG(t, red), "image/png")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decode[RecognitionResponse](t, rr)
	if resp.Success || resp.Painting != nil {
		t.Fatalf("expected failure payload, got %+v", resp)
	}
	if resp.Score != 0 || resp.Message != notRecognizedMessage {
		t.Errorf("unexpected payload: %+v", resp)
	}
}

func TestRecognize_InvalidImage(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", []byte("not an image"), "image/jpeg")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeInvalidImage)
}

func TestRecognize_EmptyBody(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", nil, "image/jpeg")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeInvalidImage)
}

func TestRecognize_TooLarge(t *testing.T) {
	local, _ := extractor.NewLocal(2)
	repo := newMemRepo()
	log := zap.NewNop()
	srv := NewServer(
		recognitionuc.New(local, repo, 0.9, log),
		catalogpkg.New(repo),
		ingestuc.New(local, repo, nil, log),
		describeuc.New(repo, nil, log),
		usageuc.New(nil),
		healthuc.New(okPinger{}, nil, readyStatus{}),
		log,
	).WithMaxUploadBytes(16)
	r := chi.NewRouter()
	srv.Routes(r)

	rr := do(r, http.MethodPost, "/api/v1/recognize", solidPNG(t, red), "image/png")
	assertError(t, rr, http.StatusRequestEntityTooLarge, ErrorCodeImageTooLarge)
}

func TestRecognize_TooManyPixels(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", pngHeader(60000, 60000), "image/png")
	assertError(t, rr, http.StatusRequestEntityTooLarge, ErrorCodeImageTooLarge)
}

func TestRecognize_ExtractorNotReady(t *testing.T) {
	env := newTestEnvWith(t, notReadyExtractor{}, notReadyExtractor{}, nil, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/recognize", solidPNG(t, red), "image/png")
	assertError(t, rr, http.StatusServiceUnavailable, ErrorCodeExtractorNotReady)
}

// --- Catalog ---

func TestCreateAndGetPainting(t *testing.T) {
	env := newTestEnv(t, nil)

	body := []byte(`{"title":"The Night Watch","artist":"Rembrandt","year":1642,"museum":"Rijksmuseum"}`)
	rr := do(env.router, http.MethodPost, "/api/v1/admin/paintings", body, "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	created := decode[Painting](t, rr)
	if created.ID == 0 || created.Year == nil || *created.Year != 1642 || created.HasFeatures {
		t.Fatalf("unexpected created painting: %+v", created)
	}

	rr = do(env.router, http.MethodGet, "/api/v1/paintings/1", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status: got %d", rr.Code)
	}
	got := decode[Painting](t, rr)
	if got.Title != "The Night Watch" || got.Museum != "Rijksmuseum" {
		t.Errorf("unexpected painting: %+v", got)
	}
}

func TestCreatePainting_ValidationFailed(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/admin/paintings", []byte(`{"artist":"Nobody"}`), "application/json")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestCreatePainting_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/admin/paintings", []byte(`{`), "application/json")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestGetPainting_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodGet, "/api/v1/paintings/42", nil, "")
	assertError(t, rr, http.StatusNotFound, ErrorCodePaintingNotFound)
}

func TestGetPainting_InvalidID(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodGet, "/api/v1/paintings/abc", nil, "")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)
}

func TestUpdatePainting(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.repo.put(painting.Metadata{Title: "Old", Artist: "A"}, feature.Vector{1, 0})

	rr := do(env.router, http.MethodPut, "/api/v1/admin/paintings/1", []byte(`{"title":"New","artist":"B"}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	got := decode[Painting](t, rr)
	if got.ID != id || got.Title != "New" || got.Artist != "B" {
		t.Errorf("unexpected painting: %+v", got)
	}
	if !got.HasFeatures || got.Dimensions == nil || *got.Dimensions != 2 {
		t.Errorf("features must survive metadata update: %+v", got)
	}
}

func TestDeletePainting(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.put(painting.Metadata{Title: "T", Artist: "A"}, nil)

	rr := do(env.router, http.MethodDelete, "/api/v1/admin/paintings/1", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d", rr.Code)
	}

	rr = do(env.router, http.MethodDelete, "/api/v1/admin/paintings/1", nil, "")
	assertError(t, rr, http.StatusNotFound, ErrorCodePaintingNotFound)
}

func TestListPaintings(t *testing.T) {
	env := newTestEnv(t, nil)
	for range 3 {
		env.repo.put(painting.Metadata{Title: "T", Artist: "A"}, nil)
	}

	rr := do(env.router, http.MethodGet, "/api/v1/paintings?limit=2&offset=1", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	resp := decode[PaintingListResponse](t, rr)
	if resp.Total != 3 || resp.Limit != 2 || resp.Offset != 1 || len(resp.Items) != 2 {
		t.Fatalf("unexpected page: %+v", resp)
	}
	if resp.Items[0].ID != 2 {
		t.Errorf("expected first item id 2, got %d", resp.Items[0].ID)
	}
}

func TestListPaintings_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodGet, "/api/v1/paintings?limit=many", nil, "")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)

	rr = do(env.router, http.MethodGet, "/api/v1/paintings?limit=-1", nil, "")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestPopularPaintings(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.put(painting.Metadata{Title: "T", Artist: "A"}, nil)

	rr := do(env.router, http.MethodGet, "/api/v1/paintings/popular", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if resp := decode[PopularResponse](t, rr); len(resp.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(resp.Items))
	}
}

// --- Ingestion ---

func TestStoreFeatures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.put(painting.Metadata{Title: "T", Artist: "A"}, nil)

	rr := do(env.router, http.MethodPut, "/api/v1/admin/paintings/1/features", solidPNG(t, red), "image/png")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	got := decode[Painting](t, rr)
	if !got.HasFeatures || got.Dimensions == nil || *got.Dimensions != 12 {
		t.Errorf("expected 12-dim features, got %+v", got)
	}
}

func TestStoreFeatures_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodPut, "/api/v1/admin/paintings/9/features", solidPNG(t, red), "image/png")
	assertError(t, rr, http.StatusNotFound, ErrorCodePaintingNotFound)
}

func TestProcessPending(t *testing.T) {
	env := newTestEnv(t, mapFetcher{"https://img.example/red.png": solidPNG(t, red)})

	env.repo.put(painting.Metadata{Title: "T", Artist: "A", ImageURL: "https://img.example/red.png"}, nil)
	env.repo.put(painting.Metadata{Title: "T", Artist: "A"}, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/admin/features/process?limit=10", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	resp := decode[BatchResponse](t, rr)
	if resp.Succeeded != 1 || resp.Failed != 1 || len(resp.Items) != 2 {
		t.Fatalf("unexpected batch response: %+v", resp)
	}
	if resp.Items[0].ID != 1 || resp.Items[0].Status != "ok" {
		t.Errorf("item 0: %+v", resp.Items[0])
	}
	second := resp.Items[1]
	if second.Status != "error" || second.Error == nil || second.Error.Code != ErrorCodeNoImageSource {
		t.Errorf("item 1: %+v", second)
	}
}

func TestProcessPending_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, mapFetcher{})

	rr := do(env.router, http.MethodPost, "/api/v1/admin/features/process?limit=-5", nil, "")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)
}

// --- Description ---

func TestGenerateDescription_TemplateFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.put(painting.Metadata{Title: "The Night Watch", Artist: "Rembrandt", Year: 1642, Museum: "Rijksmuseum"}, nil)

	rr := do(env.router, http.MethodPost, "/api/v1/admin/paintings/1/description", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	resp := decode[DescriptionResponse](t, rr)
	if resp.PaintingID != 1 || resp.Source != "template" || resp.Description == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if env.repo.descs[1] != resp.Description {
		t.Errorf("description not stored: %q", env.repo.descs[1])
	}
}

// --- Usage ---

func TestGetUsage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.budget.Record(domusage.Tokens{Prompt: 200, Completion: 50})

	rr := do(env.router, http.MethodGet, "/api/v1/admin/usage?period=day", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (body=%s)", rr.Code, rr.Body.String())
	}
	resp := decode[UsageResponse](t, rr)
	if resp.Period != "day" || resp.TokensUsed != 250 || resp.TokensLimit != 1000 || resp.TokensRemaining != 750 {
		t.Errorf("unexpected usage: %+v", resp)
	}
	if resp.PromptTokens != 200 || resp.CompletionTokens != 50 {
		t.Errorf("unexpected token split: %+v", resp)
	}
	if resp.Exhausted || !resp.PeriodEnd.After(resp.PeriodStart) {
		t.Errorf("unexpected usage window: %+v", resp)
	}
}

func TestGetUsage_InvalidPeriod(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodGet, "/api/v1/admin/usage?period=year", nil, "")
	assertError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" || resp.Checks["extractor"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHealthCheck_ExtractorLoading(t *testing.T) {
	env := newTestEnvWith(t, notReadyExtractor{}, notReadyExtractor{}, nil, nil)

	rr := do(env.router, http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "degraded" || resp.Checks["extractor"] != "loading" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.router, http.MethodGet, "/metrics", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
}
