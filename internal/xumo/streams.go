package xumo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/savid/xumo/internal/timefmt"
)

// ErrNoStream is returned when no playable stream URI can be found for a
// channel through the asset-lookup path.
var ErrNoStream = errors.New("no stream URI available")

type broadcastResponse struct {
	Assets []broadcastAsset `json:"assets"`
}

type broadcastAsset struct {
	ID    any `json:"id"`
	Start any `json:"start"`
	End   any `json:"end"`
}

// CurrentAssetID returns the ID of the asset airing on the channel at now,
// using the hour-sliced broadcast endpoint. Falls back to the first listed
// asset when no window matches.
func (c *Client) CurrentAssetID(ctx context.Context, channelID string, now time.Time) (string, error) {
	now = now.UTC()
	url := fmt.Sprintf("%s/channels/channel/%s/broadcast.json?hour=%d", c.cfg.AndroidBase, channelID, now.Hour())

	var resp broadcastResponse
	if err := c.http.GetJSON(ctx, url, androidHeaders(), &resp); err != nil {
		return "", fmt.Errorf("broadcast lookup for channel %s: %w", channelID, err)
	}

	if len(resp.Assets) == 0 {
		return "", fmt.Errorf("broadcast lookup for channel %s: %w", channelID, ErrNoStream)
	}

	for _, asset := range resp.Assets {
		start, startErr := timefmt.Parse(asset.Start)
		end, endErr := timefmt.Parse(asset.End)

		if startErr != nil || endErr != nil {
			continue
		}

		if !now.Before(start) && now.Before(end) {
			if id := stringify(asset.ID); id != "" {
				return id, nil
			}
		}
	}

	if id := stringify(resp.Assets[0].ID); id != "" {
		return id, nil
	}

	return "", fmt.Errorf("broadcast assets for channel %s carry no ID: %w", channelID, ErrNoStream)
}

type assetDetailsResponse struct {
	Providers []providerEntry `json:"providers"`
}

type providerEntry struct {
	Sources []sourceEntry `json:"sources"`
}

type sourceEntry struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// AssetStreamURI fetches asset details and returns the raw (templated)
// stream URI, preferring HLS sources.
func (c *Client) AssetStreamURI(ctx context.Context, assetID string) (string, error) {
	url := fmt.Sprintf("%s/assets/asset/%s.json?f=providers", c.cfg.AndroidBase, assetID)

	var resp assetDetailsResponse
	if err := c.http.GetJSON(ctx, url, androidHeaders(), &resp); err != nil {
		return "", fmt.Errorf("asset details for %s: %w", assetID, err)
	}

	if uri := pickSourceURI(resp.Providers); uri != "" {
		return uri, nil
	}

	return "", fmt.Errorf("asset %s: %w", assetID, ErrNoStream)
}

// pickSourceURI walks provider source lists preferring HLS entries, keeping
// the first non-HLS URI as a fallback.
func pickSourceURI(providers []providerEntry) string {
	var fallback string

	for _, provider := range providers {
		for _, source := range provider.Sources {
			if source.URI == "" {
				continue
			}

			if isHLS(source) {
				return source.URI
			}

			if fallback == "" {
				fallback = source.URI
			}
		}
	}

	return fallback
}

func isHLS(source sourceEntry) bool {
	return source.Type == "application/x-mpegURL" || strings.HasSuffix(source.URI, ".m3u8")
}

// extractStreamURI pulls a raw stream URI out of a channel list item, which
// may carry it under several shapes: a flat object of named URIs or a
// provider/source list.
func extractStreamURI(it *channelListItem) string {
	for _, raw := range []json.RawMessage{it.Stream, it.Streams, it.Playback, it.Providers} {
		if len(raw) == 0 {
			continue
		}

		var flat map[string]any
		if err := json.Unmarshal(raw, &flat); err == nil {
			for _, key := range []string{"hls", "m3u8", "live", "url", "uri"} {
				if uri, ok := flat[key].(string); ok && uri != "" {
					return uri
				}
			}

			continue
		}

		var providers []providerEntry
		if err := json.Unmarshal(raw, &providers); err == nil {
			if uri := pickSourceURI(providers); uri != "" {
				return uri
			}
		}
	}

	return ""
}
