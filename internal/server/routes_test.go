package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/savid/xumo/internal/config"
	"github.com/savid/xumo/internal/data"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testRoutes(store *data.Store) http.Handler {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return NewRoutes(log, config.DefaultConfig(), store).Handler()
}

func TestHandlePlaylist(t *testing.T) {
	store := data.NewStore()
	store.Set(&data.Artifacts{
		Playlist: []byte("#EXTM3U\n"),
	})

	rec := httptest.NewRecorder()
	testRoutes(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playlist.m3u", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-mpegurl", rec.Header().Get("Content-Type"))
	require.Equal(t, "#EXTM3U\n", rec.Body.String())
}

func TestHandlePlaylist_NoData(t *testing.T) {
	rec := httptest.NewRecorder()
	testRoutes(data.NewStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playlist.m3u", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGuide(t *testing.T) {
	store := data.NewStore()
	store.Set(&data.Artifacts{
		Guide: []byte{0x1f, 0x8b, 0x08},
	})

	rec := httptest.NewRecorder()
	testRoutes(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/epg.xml.gz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	require.Equal(t, []byte{0x1f, 0x8b, 0x08}, rec.Body.Bytes())
}

func TestHandleHealth(t *testing.T) {
	store := data.NewStore()
	store.Set(&data.Artifacts{
		ChannelCount: 5,
		ProgramCount: 120,
		GeneratedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	rec := httptest.NewRecorder()
	testRoutes(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status   string `json:"status"`
		HasData  bool   `json:"hasData"`
		Channels int    `json:"channels"`
		Programs int    `json:"programs"`
		LastRun  string `json:"lastRun"`
	}

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "ok", status.Status)
	require.True(t, status.HasData)
	require.Equal(t, 5, status.Channels)
	require.Equal(t, 120, status.Programs)
	require.Equal(t, "2024-01-01T00:00:00Z", status.LastRun)
}

func TestHandleHealth_NoData(t *testing.T) {
	rec := httptest.NewRecorder()
	testRoutes(data.NewStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"hasData":false`)
}
