package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animeFolderOrganizer/internal/api"
	"github.com/pokerjest/animeFolderOrganizer/internal/config"
	"github.com/pokerjest/animeFolderOrganizer/internal/db"
	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/verify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		SubShare: config.SubShareConfig{
			DBPath:          filepath.Join(dir, "sub_share", "db.xml"),
			RefreshInterval: time.Hour,
		},
		Provider: config.ProviderConfig{Kind: "mock"},
		Naming:   config.NamingConfig{Template: "{Title} [{Year}]", Language: "CN"},
		Scan:     config.ScanConfig{BatchSize: 5},
	}
}

func openDB(t *testing.T) *gorm.DB {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, afero.NewOsFs(), openDB(t), event.NewInMemoryBus())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, verify.TrustVerifier{}, a.Verifier)
	opts := a.Scanner.Options()
	assert.Equal(t, 5, opts.BatchSize)
	assert.Equal(t, "{Title} [{Year}]", opts.Template)
	assert.EqualValues(t, "cn", opts.Language)

	models, err := a.Catalog.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mock"}, models)

	cfg.Verify.Enabled = true
	b, err := New(cfg, afero.NewOsFs(), openDB(t), nil)
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &verify.AnimeDBVerifier{}, b.Verifier)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Kind = "bogus"
	_, err := New(cfg, afero.NewOsFs(), openDB(t), nil)
	assert.Error(t, err)
}

func TestStoreReplacementPublishesEvent(t *testing.T) {
	cfg := testConfig(t)
	bus := event.NewInMemoryBus()
	a, err := New(cfg, afero.NewOsFs(), openDB(t), bus)
	require.NoError(t, err)
	defer a.Close()

	got := make(chan event.Event, 1)
	bus.Subscribe(event.EventCorpusUpdated, func(e event.Event) { got <- e })

	src := filepath.Join(t.TempDir(), "import.xml")
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), src, []byte("<subs_list></subs_list>"), 0o644))

	res := a.Store.ImportFromFile(context.Background(), src)
	require.True(t, res.Success, res.Error)

	select {
	case e := <-got:
		assert.Equal(t, cfg.SubShare.DBPath, e.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("corpus_updated not published")
	}
}

func TestHandlersServeRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIToken = "secret"
	a, err := New(cfg, afero.NewOsFs(), openDB(t), nil)
	require.NoError(t, err)
	defer a.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	api.InitRoutes(r, a.Handlers())

	req := httptest.NewRequest(http.MethodGet, "/api/subshare/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"exists":false`)
}
