package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pokerjest/animeFolderOrganizer/internal/anilist"
	"github.com/pokerjest/animeFolderOrganizer/internal/bangumi"
	"github.com/pokerjest/animeFolderOrganizer/internal/tmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSources struct {
	bangumiSearch string
	anilistBody   string
	anilistCalls  atomic.Int32
}

func (f *fakeSources) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/3/search/multi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tmdb-token", r.Header.Get("Authorization"))
		assert.Equal(t, "ja-JP", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(`{"results":[{"id":7,"media_type":"person"},{"id":209867,"media_type":"tv","name":"葬送のフリーレン"}]}`))
	})
	mux.HandleFunc("/3/tv/209867/translations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translations":[
			{"iso_639_1":"zh","iso_3166_1":"CN","data":{"name":"葬送的芙莉莲"}},
			{"iso_639_1":"zh","iso_3166_1":"HK","data":{"name":"葬送的芙莉蓮 HK"}},
			{"iso_639_1":"en","iso_3166_1":"US","data":{"name":"Frieren: Beyond Journey's End"}},
			{"iso_639_1":"ja","iso_3166_1":"JP","data":{"name":""}}
		]}`))
	})
	mux.HandleFunc("/bgm/search/subject/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AnimeFolderOrganizer/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "2", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(f.bangumiSearch))
	})
	mux.HandleFunc("/bgm/v0/subjects/400602", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":400602,"type":2,"name":"葬送のフリーレン","name_cn":"葬送的芙莉莲"}`))
	})
	mux.HandleFunc("/bgm/v0/subjects/1", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/bgm/subject/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"type":2,"name":"ぼっち・ざ・ろっく！","name_cn":"孤独摇滚！"}`))
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		f.anilistCalls.Add(1)
		_, _ = w.Write([]byte(f.anilistBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, f *fakeSources, withTMDB bool) *Service {
	srv := f.server(t)

	var tc *tmdb.Client
	if withTMDB {
		tc = tmdb.NewClient("tmdb-token", "")
		tc.SetBaseURL(srv.URL + "/3")
	}
	bc := bangumi.NewClient()
	bc.SetBaseURL(srv.URL + "/bgm")
	ac := anilist.NewClient("")
	ac.SetEndpoint(srv.URL + "/graphql")

	return NewService(tc, bc, ac, nil)
}

func TestLookup_TMDBThenBangumi(t *testing.T) {
	f := &fakeSources{
		bangumiSearch: `{"list":[{"id":99,"name":"葬送のフリーレン 特別編"},{"id":400602,"name":"葬送のフリーレン"}]}`,
	}
	svc := newTestService(t, f, true)

	res, err := svc.Lookup(context.Background(), " 葬送のフリーレン ")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "葬送のフリーレン", res.TitleJP)
	assert.Equal(t, "葬送的芙莉莲", res.TitleCN)
	// 没有 zh-TW 译名，由简体转换
	assert.Equal(t, "葬送的芙莉蓮", res.TitleTW)
	assert.Equal(t, "Frieren: Beyond Journey's End", res.TitleEN)
	assert.Equal(t, int32(0), f.anilistCalls.Load())
}

func TestLookup_BangumiLegacyAndAniList(t *testing.T) {
	f := &fakeSources{
		bangumiSearch: `{"list":[{"id":1,"name":"ぼっち・ざ・ろっく!"}]}`,
		anilistBody:   `{"data":{"Page":{"media":[{"id":130003,"title":{"native":"ぼっち・ざ・ろっく！","english":"BOCCHI THE ROCK!"}}]}}}`,
	}
	svc := newTestService(t, f, false)

	res, err := svc.Lookup(context.Background(), "ぼっち・ざ・ろっく！")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "孤独摇滚！", res.TitleCN)
	assert.Equal(t, "BOCCHI THE ROCK!", res.TitleEN)
	assert.Equal(t, "ぼっち・ざ・ろっく！", res.TitleJP)
	assert.Equal(t, int32(1), f.anilistCalls.Load())
}

func TestLookup_NothingFound(t *testing.T) {
	f := &fakeSources{
		bangumiSearch: `{"code":404,"error":"Not Found"}`,
		anilistBody:   `{"data":{"Page":{"media":[]}}}`,
	}
	svc := newTestService(t, f, false)

	res, err := svc.Lookup(context.Background(), "存在しない作品")
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = svc.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestLookup_AniListOnlyEnglish(t *testing.T) {
	f := &fakeSources{
		bangumiSearch: `{"list":[]}`,
		anilistBody:   `{"data":{"Page":{"media":[{"id":5,"title":{"native":"","english":"Some Show"}}]}}}`,
	}
	svc := newTestService(t, f, false)

	res, err := svc.Lookup(context.Background(), "何かのアニメ")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "何かのアニメ", res.TitleJP)
	assert.Equal(t, "Some Show", res.TitleEN)
	assert.Empty(t, res.TitleTW)
}

func TestLookup_Canceled(t *testing.T) {
	svc := newTestService(t, &fakeSources{}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Lookup(ctx, "葬送のフリーレン")
	assert.ErrorIs(t, err, context.Canceled)
}
