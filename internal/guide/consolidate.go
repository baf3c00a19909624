package guide

import (
	"context"
	"time"

	"github.com/savid/xumo/internal/timefmt"
	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PageFetcher supplies one EPG slice per (date, page). Implemented by the
// xumo client; faked in tests.
type PageFetcher interface {
	EPGPage(ctx context.Context, date string, page int) (*xumo.EPGPage, error)
	MaxPages() int
}

// Program is one resolved, validated airing on a channel.
type Program struct {
	ChannelID    string
	AssetID      string
	Title        string
	EpisodeTitle string
	Descriptions map[string]string
	Start        time.Time
	Stop         time.Time
}

// Diagnostics counts the non-fatal drops of one consolidation run.
type Diagnostics struct {
	PagesFetched    int
	RowsSeen        int
	UnknownChannels int
	MissingAssets   int
	InvalidTimes    int
	InvertedTimes   int
	Duplicates      int
	Programs        int
}

// Consolidator drives the paginated EPG fetch and resolves schedule rows
// into per-channel listings. Consolidation runs in two phases: all pages
// are fetched and their asset sub-maps cached first, then every schedule
// row is resolved against the complete cache. Resolution therefore never
// depends on page arrival order.
type Consolidator struct {
	log     logrus.FieldLogger
	fetcher PageFetcher
	days    int
}

// NewConsolidator creates a consolidator fetching the given number of days
// starting at the run's "today" in UTC.
func NewConsolidator(log logrus.FieldLogger, fetcher PageFetcher, days int) *Consolidator {
	return &Consolidator{
		log:     log.WithField("component", "guide"),
		fetcher: fetcher,
		days:    days,
	}
}

// row is one unresolved schedule entry collected in phase one.
type row struct {
	channelID string
	entry     xumo.ScheduleEntry
}

// Consolidate fetches and resolves the guide for the given channels. Only
// channels present in the supplied set are accumulated. Cancellation stops
// new fetches; whatever arrived is still resolved and returned, so partial
// results render rather than aborting the run.
func (c *Consolidator) Consolidate(ctx context.Context, channels []xumo.Channel, now time.Time) (map[string][]Program, Diagnostics) {
	cache := NewAssetCache()
	diags := Diagnostics{}

	dates := make([]string, 0, c.days)
	for d := 0; d < c.days; d++ {
		dates = append(dates, now.UTC().AddDate(0, 0, d).Format("20060102"))
	}

	// Phase one: fetch every (date, page) slice. One worker per date keeps
	// page order within a date; rows land in a per-date bucket so phase two
	// sees a deterministic order.
	rowsByDate := make([][]row, len(dates))
	pagesByDate := make([]int, len(dates))

	g, gctx := errgroup.WithContext(ctx)

	for i, date := range dates {
		i, date := i, date
		g.Go(func() error {
			rowsByDate[i], pagesByDate[i] = c.fetchDate(gctx, date, cache)

			return nil
		})
	}

	_ = g.Wait()

	for i := range dates {
		diags.PagesFetched += pagesByDate[i]
	}

	// Phase two: resolve all rows against the now-complete cache.
	known := make(map[string]bool, len(channels))
	for _, ch := range channels {
		known[ch.ID] = true
	}

	listings := make(map[string][]Program, len(channels))

	for _, dateRows := range rowsByDate {
		for _, r := range dateRows {
			diags.RowsSeen++

			if program, ok := c.resolve(r, known, cache, &diags); ok {
				listings[program.ChannelID] = append(listings[program.ChannelID], program)
			}
		}
	}

	for id, programs := range listings {
		deduped, dropped := dedupe(programs)
		listings[id] = deduped
		diags.Duplicates += dropped
		diags.Programs += len(deduped)
	}

	c.log.WithFields(logrus.Fields{
		"pages":          diags.PagesFetched,
		"rows":           diags.RowsSeen,
		"programs":       diags.Programs,
		"duplicates":     diags.Duplicates,
		"missing_assets": diags.MissingAssets,
		"invalid_times":  diags.InvalidTimes,
	}).Info("Guide consolidated")

	return listings, diags
}

// fetchDate pages through one date until a terminal page or the configured
// bound. Fetch failures and undecodable bodies terminate the date, never
// the run.
func (c *Consolidator) fetchDate(ctx context.Context, date string, cache *AssetCache) ([]row, int) {
	rows := make([]row, 0, 256)
	pages := 0

	for page := 0; page <= c.fetcher.MaxPages(); page++ {
		if ctx.Err() != nil {
			c.log.WithField("date", date).Warn("Consolidation cancelled, keeping partial guide data")

			break
		}

		result, err := c.fetcher.EPGPage(ctx, date, page)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"date": date,
				"page": page,
			}).Warn("EPG page fetch failed, stopping this date")

			break
		}

		pages++

		if result.Empty() {
			c.log.WithFields(logrus.Fields{
				"date": date,
				"page": page,
			}).Debug("Empty EPG page, date complete")

			break
		}

		cache.Merge(result.Assets)

		for i := range result.Channels {
			channelID := result.Channels[i].ID()

			for _, entry := range result.Channels[i].Schedule {
				rows = append(rows, row{channelID: channelID, entry: entry})
			}
		}
	}

	return rows, pages
}

func (c *Consolidator) resolve(r row, known map[string]bool, cache *AssetCache, diags *Diagnostics) (Program, bool) {
	if !known[r.channelID] {
		diags.UnknownChannels++

		return Program{}, false
	}

	asset, ok := cache.Lookup(r.entry.AssetID)
	if !ok {
		diags.MissingAssets++
		c.log.WithFields(logrus.Fields{
			"channel": r.channelID,
			"asset":   r.entry.AssetID,
		}).Debug("Schedule entry references unknown asset, dropping")

		return Program{}, false
	}

	start, startErr := timefmt.Parse(r.entry.Start)
	stop, stopErr := timefmt.Parse(r.entry.End)

	if startErr != nil || stopErr != nil {
		diags.InvalidTimes++

		return Program{}, false
	}

	if !start.Before(stop) {
		diags.InvertedTimes++
		c.log.WithFields(logrus.Fields{
			"channel": r.channelID,
			"asset":   r.entry.AssetID,
			"start":   start,
			"stop":    stop,
		}).Debug("Schedule entry with non-positive duration, dropping")

		return Program{}, false
	}

	title := asset.Title
	if title == "" {
		title = "Unknown Program"
	}

	return Program{
		ChannelID:    r.channelID,
		AssetID:      r.entry.AssetID,
		Title:        title,
		EpisodeTitle: asset.EpisodeTitle,
		Descriptions: asset.Descriptions,
		Start:        start,
		Stop:         stop,
	}, true
}

// dedupe drops later entries sharing (start instant, asset ID) with an
// earlier one. The first occurrence wins.
func dedupe(programs []Program) ([]Program, int) {
	type key struct {
		start   int64
		assetID string
	}

	seen := make(map[key]bool, len(programs))
	kept := make([]Program, 0, len(programs))

	for _, p := range programs {
		k := key{start: p.Start.Unix(), assetID: p.AssetID}
		if seen[k] {
			continue
		}

		seen[k] = true
		kept = append(kept, p)
	}

	return kept, len(programs) - len(kept)
}
