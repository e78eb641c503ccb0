package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/config"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/services"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/logger"
)

type shortened struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	QRSVG    string `json:"qr_svg"`
}

func setup(t *testing.T, dbName string) (*httptest.Server, *sqlite.SQLiteRepository) {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository("file:" + dbName + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		BaseURL:         "http://localhost:3000",
		Timezone:        "America/Cancun",
		JWTSecret:       "e2e",
		RateLimitBurst:  1000,
		RateLimitPeriod: time.Millisecond,
	}
	service := services.NewLinkService(repo,
		services.WithBaseURL(cfg.BaseURL),
		services.WithLocation(cfg.Location()),
	)
	mux := handler.NewRouter(cfg, handler.Deps{
		Service: service,
		Store:   repo,
		Metrics: handler.NewMetrics(prometheus.NewRegistry()),
		Logger:  logger.New("error", ""),
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo
}

func noRedirectClient(server *httptest.Server) *http.Client {
	client := server.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

func shorten(t *testing.T, client *http.Client, server *httptest.Server, url string) (*http.Response, shortened) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"url": url})
	require.NoError(t, err)

	resp, err := client.Post(server.URL+"/api/shorten", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out shortened
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestShortenResolveAndInspect(t *testing.T) {
	server, _ := setup(t, "e2e_flow")
	client := noRedirectClient(server)

	resp, created := shorten(t, client, server, "https://example.com")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, created.ID, 8)
	assert.True(t, strings.HasSuffix(created.ShortURL, "/r/"+created.ID))
	assert.True(t, strings.HasPrefix(created.QRSVG, "<svg"))

	resp, err := client.Get(server.URL + "/r/" + created.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/", resp.Header.Get("Location"))

	resp, err = client.Get(server.URL + "/api/qr/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var qr struct {
		ID          string    `json:"id"`
		OriginalURL string    `json:"original_url"`
		Scans       int64     `json:"scans"`
		CreatedAt   time.Time `json:"created_at"`
		QRSVG       string    `json:"qr_svg"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&qr))
	assert.Equal(t, created.ID, qr.ID)
	assert.Equal(t, "https://example.com/", qr.OriginalURL)
	assert.EqualValues(t, 1, qr.Scans)
	assert.True(t, strings.HasPrefix(qr.QRSVG, "<svg"))

	_, offset := qr.CreatedAt.Zone()
	assert.Equal(t, -5*3600, offset, "timestamps are recorded in the configured zone")
}

func TestResolveKeepsPathAndNormalizesHost(t *testing.T) {
	server, repo := setup(t, "e2e_path")
	client := noRedirectClient(server)

	tests := []struct {
		in       string
		location string
	}{
		{"https://example.com/path", "https://example.com/path"},
		{"https://Example.com:443/path?q=1", "https://example.com/path?q=1"},
		{"http://bücher.example/", "http://xn--bcher-kva.example/"},
	}
	for _, tt := range tests {
		resp, created := shorten(t, client, server, tt.in)
		require.Equal(t, http.StatusCreated, resp.StatusCode, tt.in)

		resp, err := client.Get(server.URL + "/r/" + created.ID)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, tt.location, resp.Header.Get("Location"))

		link, err := repo.GetLink(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.location, link.OriginalURL)
		assert.EqualValues(t, 1, link.Scans)
	}
}

func TestRejectsInvalidURL(t *testing.T) {
	server, repo := setup(t, "e2e_invalid")
	client := noRedirectClient(server)

	resp, _ := shorten(t, client, server, "not a url")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	count, err := repo.CountLinks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUnknownIDRecordsNoScan(t *testing.T) {
	server, repo := setup(t, "e2e_unknown")
	client := noRedirectClient(server)

	resp, err := client.Get(server.URL + "/r/zzzzzzzz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	totals, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, totals.Scans)
}

func TestConcurrentResolutions(t *testing.T) {
	server, repo := setup(t, "e2e_concurrent")
	client := noRedirectClient(server)

	resp, created := shorten(t, client, server, "https://example.com/concurrent")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	const n = 30
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(server.URL + "/r/" + created.ID)
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusFound, code)
	}

	scans, err := repo.ListScans(context.Background(), created.ID, 500)
	require.NoError(t, err)
	assert.Len(t, scans, n)

	link, err := repo.GetLink(context.Background(), created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, link.Scans)
}

func TestLocationRegistration(t *testing.T) {
	server, repo := setup(t, "e2e_location")
	client := noRedirectClient(server)

	_, created := shorten(t, client, server, "https://example.com")

	resp, err := client.Post(server.URL+"/api/locations/"+created.ID, "application/json",
		strings.NewReader(`{"lat":21.1619,"lon":-86.8515,"description":"Cancun"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = client.Post(server.URL+"/api/locations/missing0", "application/json",
		strings.NewReader(`{"lat":1,"lon":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	locations, err := repo.ListLocations(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.InDelta(t, 21.1619, locations[0].Lat, 1e-9)
}
