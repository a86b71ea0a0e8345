package geo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-travel-planner/config"
)

func setupGeoClientTest(t *testing.T, handler http.HandlerFunc) *BaiduClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBaiduClient(config.MapsConfig{BaseURL: srv.URL, AccessKey: "test-ak"}, srv.Client(), logger)
}

func TestBaiduClient_SearchPlace(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/place/v2/search", r.URL.Path)
			assert.Equal(t, "西湖", r.URL.Query().Get("query"))
			assert.Equal(t, "全国", r.URL.Query().Get("region"))
			assert.Equal(t, "json", r.URL.Query().Get("output"))
			assert.Equal(t, "test-ak", r.URL.Query().Get("ak"))
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`{"status":0,"results":[{"name":"西湖风景区","location":{"lat":30.25,"lng":120.15}}]}`))
		})

		loc, ok := client.SearchPlace(ctx, "西湖")
		require.True(t, ok)
		assert.Equal(t, "西湖风景区", loc.Name)
		assert.Equal(t, 30.25, loc.Lat)
		assert.Equal(t, 120.15, loc.Lng)
	})

	t.Run("missing name falls back to query", func(t *testing.T) {
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":0,"results":[{"location":{"lat":1,"lng":2}}]}`))
		})
		loc, ok := client.SearchPlace(ctx, "somewhere")
		require.True(t, ok)
		assert.Equal(t, "somewhere", loc.Name)
	})

	absent := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"non-json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		},
		"provider status": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":240,"message":"APP 服务被禁用"}`))
		},
		"empty results": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":0,"results":[]}`))
		},
		"string coordinates": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":0,"results":[{"name":"x","location":{"lat":"30.1","lng":120}}]}`))
		},
	}
	for name, handler := range absent {
		t.Run(name, func(t *testing.T) {
			client := setupGeoClientTest(t, handler)
			loc, ok := client.SearchPlace(ctx, "anywhere")
			assert.False(t, ok)
			assert.Nil(t, loc)
		})
	}

	t.Run("missing access key", func(t *testing.T) {
		var calls atomic.Int32
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
		client.accessKey = ""
		_, ok := client.SearchPlace(ctx, "anywhere")
		assert.False(t, ok)
		assert.Zero(t, calls.Load())
	})

	t.Run("successful lookups are cached", func(t *testing.T) {
		var calls atomic.Int32
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"status":0,"results":[{"name":"a","location":{"lat":1,"lng":2}}]}`))
		})
		_, ok := client.SearchPlace(ctx, "a")
		require.True(t, ok)
		_, ok = client.SearchPlace(ctx, "a")
		require.True(t, ok)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		var calls atomic.Int32
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"status":1}`))
		})
		client.SearchPlace(ctx, "b")
		client.SearchPlace(ctx, "b")
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestBaiduClient_GetRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("steps are cleaned and empty ones dropped", func(t *testing.T) {
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/direction/v2/driving", r.URL.Path)
			assert.Equal(t, "30.25,120.15", r.URL.Query().Get("origin"))
			assert.Equal(t, "31.23,121.47", r.URL.Query().Get("destination"))
			assert.Equal(t, "11", r.URL.Query().Get("tactics"))
			_, _ = w.Write([]byte(`{"status":0,"result":{"routes":[{"distance":175000,"duration":7200,"steps":[
				{"instruction":"从<b>起点</b>向东出发","distance":100,"duration":30},
				{"instructions":"  沿  G60 行驶  "},
				{"path":{"instruction":"进入<span>匝道</span>"}},
				{"turnInstruction":"左转"},
				"直行",
				{"instruction":"<br/>","distance":5},
				{"distance":9}
			]}]}}`))
		})

		route, ok := client.GetRoute(ctx, 30.25, 120.15, 31.23, 121.47, TacticsAvoidHighways)
		require.True(t, ok)
		assert.Equal(t, 175000.0, route.Distance)
		assert.Equal(t, 7200.0, route.Duration)
		require.Len(t, route.Steps, 5)
		assert.Equal(t, "从起点向东出发", route.Steps[0].Instruction)
		assert.Equal(t, 100.0, route.Steps[0].Distance)
		assert.Equal(t, 30.0, route.Steps[0].Duration)
		assert.Equal(t, "沿 G60 行驶", route.Steps[1].Instruction)
		assert.Equal(t, "进入匝道", route.Steps[2].Instruction)
		assert.Equal(t, "左转", route.Steps[3].Instruction)
		assert.Equal(t, "直行", route.Steps[4].Instruction)
		assert.Zero(t, route.Steps[4].Distance)
	})

	t.Run("missing totals default to zero", func(t *testing.T) {
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":0,"result":{"routes":[{}]}}`))
		})
		route, ok := client.GetRoute(ctx, 1, 2, 3, 4, 13)
		require.True(t, ok)
		assert.Zero(t, route.Distance)
		assert.Zero(t, route.Duration)
		assert.Empty(t, route.Steps)
	})

	t.Run("no routes is absence", func(t *testing.T) {
		client := setupGeoClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":0,"result":{"routes":[]}}`))
		})
		route, ok := client.GetRoute(ctx, 1, 2, 3, 4, 11)
		assert.False(t, ok)
		assert.Nil(t, route)
	})
}

func TestCleanInstruction(t *testing.T) {
	assert.Equal(t, "a b", CleanInstruction("<p>a</p>\n\t <i>b</i> "))
	assert.Equal(t, "", CleanInstruction("<br/>  "))
}
