package xumo

import (
	"context"
	"fmt"
)

// Asset is the descriptive metadata for one program instance, keyed by
// asset ID in EPG page responses.
type Asset struct {
	Title        string            `json:"title"`
	EpisodeTitle string            `json:"episodeTitle"`
	Descriptions map[string]string `json:"descriptions"`
}

// ScheduleEntry is one airing in a channel's schedule. Start and End arrive
// as either ISO strings or epoch-millisecond numbers; they stay untyped
// until the consolidator normalizes them.
type ScheduleEntry struct {
	Start   any    `json:"start"`
	End     any    `json:"end"`
	AssetID string `json:"assetId"`
}

// ChannelSchedule is one channel's slice of a paginated EPG response.
type ChannelSchedule struct {
	ChannelID any             `json:"channelId"`
	Schedule  []ScheduleEntry `json:"schedule"`
}

// ID returns the channel ID as a string regardless of the wire type.
func (s *ChannelSchedule) ID() string {
	return stringify(s.ChannelID)
}

// EPGPage is one (date, page) slice of the guide: an asset sub-map plus
// per-channel schedules.
type EPGPage struct {
	Assets   map[string]Asset  `json:"assets"`
	Channels []ChannelSchedule `json:"channels"`
}

// Empty reports whether the page carries no channel data, which terminates
// pagination for the current date.
func (p *EPGPage) Empty() bool {
	return len(p.Channels) == 0
}

// MaxPages returns the configured pagination bound.
func (c *Client) MaxPages() int {
	return c.paging.MaxPages
}

// EPGPage fetches one guide slice for a date (YYYYMMDD) and page index.
// The pagination unit depends on the configured mode: channel-offset blocks
// or hour-of-day slices.
func (c *Client) EPGPage(ctx context.Context, date string, page int) (*EPGPage, error) {
	var url string

	switch c.paging.Mode {
	case PageByHour:
		url = fmt.Sprintf("%s/epg/%s/%s/%d.json?limit=%d&f=asset.title&f=asset.descriptions",
			c.cfg.AndroidBase, c.cfg.AndroidListID, date, page, c.paging.PageSize)
	default:
		url = fmt.Sprintf("%s/epg/%s/%s/0.json?limit=%d&offset=%d&f=asset.title&f=asset.descriptions",
			c.cfg.AndroidBase, c.cfg.AndroidListID, date, c.paging.PageSize, page*c.paging.PageSize)
	}

	var page0 EPGPage
	if err := c.http.GetJSON(ctx, url, androidHeaders(), &page0); err != nil {
		return nil, fmt.Errorf("epg page %s/%d: %w", date, page, err)
	}

	return &page0, nil
}
