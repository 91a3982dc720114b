package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/metadata"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/service"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct {
	lastKeyword string
	lastLimit   int
}

func (f *fakeCorpus) Search(_ context.Context, keyword string, limit int) ([]subshare.TitleMatch, error) {
	f.lastKeyword, f.lastLimit = keyword, limit
	return []subshare.TitleMatch{{Key: "1", TitleChs: "葬送的芙莉莲"}}, nil
}

func (f *fakeCorpus) FindBestMatch(_ context.Context, title string) (*subshare.TitleMatch, error) {
	if title == "none" {
		return nil, nil
	}
	return &subshare.TitleMatch{Key: "1", TitleJp: title}, nil
}

func (f *fakeCorpus) Diagnostics(context.Context) (subshare.Diagnostics, error) {
	return subshare.Diagnostics{RecordCount: 3}, nil
}

type fakeStore struct {
	updateOK bool
}

func (f *fakeStore) Status() subshare.DBStatus {
	return subshare.DBStatus{Exists: true, Size: 42}
}

func (f *fakeStore) UpdateFromRemote(context.Context) subshare.UpdateResult {
	if !f.updateOK {
		return subshare.UpdateResult{Error: "both sources failed"}
	}
	return subshare.UpdateResult{Success: true, Size: 42, Source: "primary"}
}

func (f *fakeStore) ImportFromFile(_ context.Context, src string) subshare.UpdateResult {
	if src != "/tmp/db.xml" {
		return subshare.UpdateResult{Error: "source file not found"}
	}
	return subshare.UpdateResult{Success: true, Size: 7, Source: src}
}

type fakeScanner struct{}

func (fakeScanner) Scan(_ context.Context, root string) (*service.ScanResult, error) {
	if root == "/missing" {
		return nil, assert.AnError
	}
	f := model.NewAnimeFolder(root+"/a", "a")
	f.IsIdentified = true
	return &service.ScanResult{Root: root, Total: 1, Identified: 1, Folders: []*model.AnimeFolder{f}}, nil
}

type fakeRenamer struct {
	template string
	folders  []*model.AnimeFolder
}

// Apply 和真实实现一样，成功后更新文件夹路径
func (f *fakeRenamer) Apply(_ context.Context, folders []*model.AnimeFolder, template string) (service.RenameSummary, error) {
	f.template, f.folders = template, folders
	for _, folder := range folders {
		folder.Path += " renamed"
	}
	return service.RenameSummary{Success: len(folders), Outcomes: []service.RenameOutcome{}}, nil
}

func (f *fakeRenamer) Restore(_ context.Context, id uint) (service.RenameOutcome, error) {
	if id != 1 {
		return service.RenameOutcome{}, service.ErrHistoryNotFound
	}
	return service.RenameOutcome{HistoryID: 2, Status: model.HistoryRestoreSuccess}, nil
}

type fakeHistory struct{ limit int }

func (f *fakeHistory) Recent(_ context.Context, n int) ([]model.RenameHistory, error) {
	f.limit = n
	return []model.RenameHistory{{ID: 1, Status: model.HistorySuccess}}, nil
}

type failingCatalog struct{ err error }

func (f failingCatalog) ListModels(context.Context) ([]string, error) { return nil, f.err }

func setupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	InitRoutes(r, NewHandlers(deps))
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	r := setupRouter(Deps{APIToken: "secret"})
	w := doJSON(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuth(t *testing.T) {
	r := setupRouter(Deps{APIToken: "secret", Catalog: metadata.StaticCatalog{"mock"}})

	w := doJSON(r, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/models?token=secret", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/models?token=wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubShareHandlers(t *testing.T) {
	corpus := &fakeCorpus{}
	store := &fakeStore{}
	r := setupRouter(Deps{Corpus: corpus, Store: store})

	w := doJSON(r, http.MethodGet, "/api/subshare/search?q=%E8%91%AC%E9%80%81", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "葬送", corpus.lastKeyword)
	assert.Equal(t, defaultSearchLimit, corpus.lastLimit)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	doJSON(r, http.MethodGet, "/api/subshare/search?q=a&limit=9999", nil)
	assert.Equal(t, maxSearchLimit, corpus.lastLimit)

	w = doJSON(r, http.MethodGet, "/api/subshare/search?q=a&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/subshare/best?title=none", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["match"])

	w = doJSON(r, http.MethodGet, "/api/subshare/best", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/subshare/diagnostics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode(t, w)["record_count"])

	w = doJSON(r, http.MethodGet, "/api/subshare/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["exists"])

	w = doJSON(r, http.MethodPost, "/api/subshare/update", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	store.updateOK = true
	w = doJSON(r, http.MethodPost, "/api/subshare/update", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/subshare/import", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportCorpusHandler_RestrictedToDBDir(t *testing.T) {
	dir := filepath.FromSlash("/tmp")
	store := &fakeStore{}
	r := setupRouter(Deps{Store: store, ImportDir: dir})

	w := doJSON(r, http.MethodPost, "/api/subshare/import", map[string]string{"path": filepath.Join(dir, "db.xml")})
	assert.Equal(t, http.StatusOK, w.Code)

	// 相对路径按 db.xml 目录解析
	w = doJSON(r, http.MethodPost, "/api/subshare/import", map[string]string{"path": "db.xml"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/subshare/import", map[string]string{"path": filepath.Join(dir, "missing.xml")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, p := range []string{"/etc/passwd", "../etc/passwd", filepath.Join(dir, "..", "etc", "passwd"), dir, "/tmpfoo/db.xml"} {
		w = doJSON(r, http.MethodPost, "/api/subshare/import", map[string]string{"path": p})
		assert.Equal(t, http.StatusForbidden, w.Code, p)
	}

	// 未配置目录时不允许导入
	r = setupRouter(Deps{Store: store})
	w = doJSON(r, http.MethodPost, "/api/subshare/import", map[string]string{"path": "/tmp/db.xml"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnconfiguredServices(t *testing.T) {
	r := setupRouter(Deps{})
	for _, path := range []string{"/api/subshare/search?q=a", "/api/subshare/status", "/api/history"} {
		w := doJSON(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	w := doJSON(r, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScanHandler(t *testing.T) {
	r := setupRouter(Deps{Scanner: fakeScanner{}})

	w := doJSON(r, http.MethodPost, "/api/scan", map[string]string{"root": "/anime"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "/anime", body["root"])
	assert.Len(t, body["folders"], 1)
	assert.NotEmpty(t, body["scan_id"])
	assert.NotContains(t, body, "error")

	w = doJSON(r, http.MethodPost, "/api/scan", map[string]string{"root": "/missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/scan", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func scanID(t *testing.T, r http.Handler, root string) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/scan", map[string]string{"root": root})
	require.Equal(t, http.StatusOK, w.Code)
	id, _ := decode(t, w)["scan_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestRenameAndHistoryHandlers(t *testing.T) {
	ren := &fakeRenamer{}
	hist := &fakeHistory{}
	r := setupRouter(Deps{Scanner: fakeScanner{}, Renamer: ren, History: hist, Template: "{TitleJP} [{Year}]"})

	id := scanID(t, r, "/anime")
	w := doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"scan_id": id,
		"folders": []map[string]string{{"path": "/anime/a", "selected_title": "Frieren"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "{TitleJP} [{Year}]", ren.template)
	require.Len(t, ren.folders, 1)
	assert.Equal(t, "Frieren", ren.folders[0].SelectedTitle)
	assert.True(t, ren.folders[0].IsIdentified)

	// 改名后旧路径不再属于这次扫描
	w = doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"scan_id": id,
		"folders": []map[string]string{{"path": "/anime/a"}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"scan_id":  id,
		"folders":  []map[string]string{{"path": "/anime/a renamed"}},
		"template": "{Title}",
	})
	assert.Equal(t, "{Title}", ren.template)

	w = doJSON(r, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultHistoryLimit, hist.limit)
	doJSON(r, http.MethodGet, "/api/history?limit=5", nil)
	assert.Equal(t, 5, hist.limit)

	w = doJSON(r, http.MethodPost, "/api/history/1/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.HistoryRestoreSuccess, decode(t, w)["status"])

	w = doJSON(r, http.MethodPost, "/api/history/7/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(r, http.MethodPost, "/api/history/abc/restore", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameHandler_RejectsFoldersOutsideScan(t *testing.T) {
	ren := &fakeRenamer{}
	r := setupRouter(Deps{Scanner: fakeScanner{}, Renamer: ren})
	id := scanID(t, r, "/anime")

	// 伪造的路径和识别状态都不被接受
	w := doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"scan_id": id,
		"folders": []map[string]interface{}{{"path": "/etc/ssh", "is_identified": true, "selected_title": "x"}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 一个非法路径让整批失败
	w = doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"scan_id": id,
		"folders": []map[string]string{{"path": "/anime/a"}, {"path": "/anime/../home"}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, ren.folders)

	w = doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"scan_id": "00000000-0000-0000-0000-000000000000",
		"folders": []map[string]string{{"path": "/anime/a"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/rename", map[string]interface{}{
		"folders": []map[string]string{{"path": "/anime/a"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, ren.folders)
}

func TestScanCache_Eviction(t *testing.T) {
	c := newScanCache()
	first := c.put(&service.ScanResult{Folders: []*model.AnimeFolder{model.NewAnimeFolder("/a/x", "x")}})
	for i := 0; i < maxKeptScans; i++ {
		c.put(&service.ScanResult{})
	}
	_, known, _ := c.folder(first, "/a/x")
	assert.False(t, known)
	assert.Len(t, c.items, maxKeptScans)
}

func TestPreviewNameHandler(t *testing.T) {
	r := setupRouter(Deps{})
	year := 2023
	w := doJSON(r, http.MethodPost, "/api/naming/preview", map[string]interface{}{
		"fields": map[string]interface{}{"title": "葬送的芙莉蓮", "year": year, "original": "[Sub] Frieren"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "葬送的芙莉蓮 (2023)", body["name"])
	assert.Equal(t, "{Title} ({Year})", body["template"])
	assert.Equal(t, true, body["organized"])
}

func TestModelsHandler_Errors(t *testing.T) {
	r := setupRouter(Deps{Catalog: failingCatalog{err: &metadata.ProviderError{Kind: metadata.KindNoKey}}})
	w := doJSON(r, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "no_key", decode(t, w)["kind"])

	r = setupRouter(Deps{Catalog: failingCatalog{err: assert.AnError}})
	w = doJSON(r, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSSEHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := event.NewInMemoryBus()
	r := gin.New()
	InitRoutes(r, NewHandlers(Deps{Bus: bus}))
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readUntil := func(prefix string) string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(line)
			}
		}
	}

	assert.Equal(t, "data:connected", readUntil("data:"))

	bus.Publish(event.EventScanProgress, event.Progress{Processed: 1, Total: 2, Current: "a"})
	assert.Equal(t, "event:scan_progress", readUntil("event:"))
	assert.Equal(t, `data:{"processed":1,"total":2,"current":"a"}`, readUntil("data:"))
}
