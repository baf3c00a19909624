package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/savid/xumo/internal/config"
	"github.com/savid/xumo/internal/xmltv"
	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	channels    []xumo.Channel
	channelsErr error
	fallback    []xumo.Channel
	fallbackErr error
	assetIDs    map[string]string // channel ID → current asset ID
	streamURIs  map[string]string // asset ID → raw templated URI
	pages       map[string][]*xumo.EPGPage
}

func (f *fakeAPI) ChannelList(context.Context) ([]xumo.Channel, error) {
	return f.channels, f.channelsErr
}

func (f *fakeAPI) FallbackChannelList(context.Context) ([]xumo.Channel, error) {
	return f.fallback, f.fallbackErr
}

func (f *fakeAPI) CurrentAssetID(_ context.Context, channelID string, _ time.Time) (string, error) {
	if id, ok := f.assetIDs[channelID]; ok {
		return id, nil
	}

	return "", xumo.ErrNoStream
}

func (f *fakeAPI) AssetStreamURI(_ context.Context, assetID string) (string, error) {
	if uri, ok := f.streamURIs[assetID]; ok {
		return uri, nil
	}

	return "", xumo.ErrNoStream
}

func (f *fakeAPI) EPGPage(_ context.Context, date string, page int) (*xumo.EPGPage, error) {
	if pages, ok := f.pages[date]; ok && page < len(pages) {
		return pages[page], nil
	}

	return &xumo.EPGPage{}, nil
}

func (f *fakeAPI) MaxPages() int { return 8 }

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	return cfg
}

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func readGuide(t *testing.T, cfg *config.Config) *xmltv.TV {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, cfg.GuideFilename))
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	raw, err := io.ReadAll(r)
	require.NoError(t, err)

	var tv xmltv.TV

	require.NoError(t, xml.Unmarshal(raw, &tv))

	return &tv
}

func readPlaylist(t *testing.T, cfg *config.Config) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, cfg.PlaylistFilename))
	require.NoError(t, err)

	return string(data)
}

func guidePage(channelID string) *xumo.EPGPage {
	return &xumo.EPGPage{
		Assets: map[string]xumo.Asset{
			"X1": {Title: "Morning Show"},
		},
		Channels: []xumo.ChannelSchedule{
			{
				ChannelID: channelID,
				Schedule: []xumo.ScheduleEntry{
					{Start: "2024-01-01T00:00:00Z", End: "2024-01-01T01:00:00Z", AssetID: "X1"},
				},
			},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		channels: []xumo.Channel{
			{ID: "7", Name: "Seven", Number: "7", Genre: "News", StreamURL: "https://cdn.example.com/7.m3u8?sid=[SESSION_ID]"},
		},
		pages: map[string][]*xumo.EPGPage{
			"20240101": {guidePage("7")},
			"20240102": {},
		},
	}

	p := New(testLog(), cfg, api)
	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.ChannelCount)
	require.Equal(t, 1, result.ProgramCount)

	m3u := readPlaylist(t, cfg)
	require.Contains(t, m3u, "#EXTM3U url-tvg=")
	require.Contains(t, m3u, "https://cdn.example.com/7.m3u8?sid=")
	require.NotContains(t, m3u, "[SESSION_ID]")

	tv := readGuide(t, cfg)
	require.Len(t, tv.Channels, 1)
	require.Len(t, tv.Programmes, 1)
	require.Equal(t, "Morning Show", tv.Programmes[0].Title.Value)
	require.Equal(t, "20240101000000 +0000", tv.Programmes[0].Start)
	require.Equal(t, "20240101010000 +0000", tv.Programmes[0].Stop)
}

func TestRun_NoChannelData_WritesEmptyArtifacts(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		channelsErr: errors.New("primary down"),
		fallbackErr: errors.New("fallback down"),
	}

	result, err := New(testLog(), cfg, api).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.ChannelCount)

	m3u := readPlaylist(t, cfg)
	lines := strings.Split(strings.TrimSpace(m3u), "\n")
	require.Len(t, lines, 1)
	require.True(t, strings.HasPrefix(lines[0], "#EXTM3U"))

	tv := readGuide(t, cfg)
	require.Empty(t, tv.Channels)
	require.Empty(t, tv.Programmes)
}

func TestRun_FallbackWithAssetLookup(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		channelsErr: errors.New("primary down"),
		fallback: []xumo.Channel{
			{ID: "7", Name: "Seven"},
		},
		assetIDs:   map[string]string{"7": "X1"},
		streamURIs: map[string]string{"X1": "https://cdn.example.com/7.m3u8?did=[DEVICE_ID]"},
		pages: map[string][]*xumo.EPGPage{
			"20240101": {guidePage("7")},
		},
	}

	p := New(testLog(), cfg, api)
	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.ChannelCount)

	m3u := readPlaylist(t, cfg)
	require.Contains(t, m3u, "https://cdn.example.com/7.m3u8?did=")
	require.NotContains(t, m3u, "[DEVICE_ID]")
}

func TestRun_UnresolvableStreamExcluded(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		channels: []xumo.Channel{
			{ID: "1", Name: "Good", StreamURL: "https://cdn.example.com/1.m3u8"},
			{ID: "2", Name: "Mystery", StreamURL: "https://cdn.example.com/2.m3u8?x=[UNKNOWN_THING]"},
			{ID: "3", Name: "NoStreamAnywhere"},
		},
	}

	result, err := New(testLog(), cfg, api).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.ChannelCount)

	m3u := readPlaylist(t, cfg)
	require.Contains(t, m3u, "Good")
	require.NotContains(t, m3u, "Mystery")
	require.NotContains(t, m3u, "NoStreamAnywhere")
}

func TestRun_GuideURLInHeader(t *testing.T) {
	cfg := testConfig(t)
	cfg.GuideURL = "https://example.com/published/epg.xml.gz"

	api := &fakeAPI{
		channels: []xumo.Channel{
			{ID: "1", Name: "One", StreamURL: "https://cdn.example.com/1.m3u8"},
		},
	}

	_, err := New(testLog(), cfg, api).Run(context.Background())
	require.NoError(t, err)

	m3u := readPlaylist(t, cfg)
	require.Contains(t, m3u, `url-tvg="https://example.com/published/epg.xml.gz"`)
}
