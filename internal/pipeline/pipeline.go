// Package pipeline sequences a full generation run: channel discovery,
// stream resolution, guide consolidation, and artifact rendering.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/savid/xumo/internal/config"
	"github.com/savid/xumo/internal/guide"
	"github.com/savid/xumo/internal/playlist"
	"github.com/savid/xumo/internal/xmltv"
	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	generatorName   = "savid-xumo"
	resolveWorkers  = 4
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// API is the vendor surface the pipeline consumes. Implemented by
// xumo.Client; faked in tests.
type API interface {
	ChannelList(ctx context.Context) ([]xumo.Channel, error)
	FallbackChannelList(ctx context.Context) ([]xumo.Channel, error)
	CurrentAssetID(ctx context.Context, channelID string, now time.Time) (string, error)
	AssetStreamURI(ctx context.Context, assetID string) (string, error)
	EPGPage(ctx context.Context, date string, page int) (*xumo.EPGPage, error)
	MaxPages() int
}

// Result carries one run's artifacts and counts. Serve mode keeps the
// rendered bytes in memory; one-shot mode only needs the files on disk.
type Result struct {
	Playlist     []byte
	Guide        []byte
	ChannelCount int
	ProgramCount int
	Diagnostics  guide.Diagnostics
}

// Pipeline runs the generation sequence.
type Pipeline struct {
	log logrus.FieldLogger
	cfg *config.Config
	api API
	now func() time.Time
}

// New creates a pipeline.
func New(log logrus.FieldLogger, cfg *config.Config, api API) *Pipeline {
	return &Pipeline{
		log: log.WithField("component", "pipeline"),
		cfg: cfg,
		api: api,
		now: time.Now,
	}
}

// Run executes one full generation and writes both artifacts. Upstream
// failures degrade to empty-but-valid artifacts; Run only returns an error
// when the artifacts themselves cannot be produced or written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	channels := p.loadChannels(ctx)

	p.resolveStreams(ctx, channels)

	playable := make([]xumo.Channel, 0, len(channels))

	for _, ch := range channels {
		if ch.StreamURL != "" {
			playable = append(playable, ch)
		}
	}

	if len(playable) == 0 {
		p.log.Warn("No playable channels found, writing empty artifacts")
	}

	var listings map[string][]guide.Program

	diags := guide.Diagnostics{}

	if len(playable) > 0 {
		consolidator := guide.NewConsolidator(p.log, p.api, p.cfg.GuideDays)
		listings, diags = consolidator.Consolidate(ctx, playable, p.now())
	}

	result := &Result{
		Playlist:     []byte(playlist.Build(p.log, playable, p.guideURL())),
		ChannelCount: len(playable),
		ProgramCount: diags.Programs,
		Diagnostics:  diags,
	}

	doc := xmltv.Build(p.log, playable, listings, generatorName)

	var buf bytes.Buffer
	if err := xmltv.WriteGzip(&buf, doc); err != nil {
		return nil, err
	}

	result.Guide = buf.Bytes()

	if err := p.writeArtifacts(result); err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"channels": result.ChannelCount,
		"programs": result.ProgramCount,
	}).Info("Generation run complete")

	return result, nil
}

// loadChannels tries the primary list, then the fallback. Both failing is
// non-fatal: the run proceeds to empty artifacts.
func (p *Pipeline) loadChannels(ctx context.Context) []xumo.Channel {
	channels, err := p.api.ChannelList(ctx)
	if err == nil {
		p.log.WithField("channels", len(channels)).Info("Loaded primary channel list")

		return channels
	}

	p.log.WithError(err).Warn("Primary channel list failed, trying fallback")

	channels, err = p.api.FallbackChannelList(ctx)
	if err != nil {
		p.log.WithError(err).Error("Fallback channel list failed, no channel data available")

		return nil
	}

	p.log.WithField("channels", len(channels)).Info("Loaded fallback channel list")

	return channels
}

// resolveStreams fills in StreamURL for every channel. Channels with an
// inline raw URI only need template expansion; the rest go through the
// broadcast/asset lookup. Failures leave the channel streamless.
func (p *Pipeline) resolveStreams(ctx context.Context, channels []xumo.Channel) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveWorkers)

	for i := range channels {
		i := i
		g.Go(func() error {
			channels[i].StreamURL = p.resolveStream(gctx, channels[i])

			return nil
		})
	}

	_ = g.Wait()
}

func (p *Pipeline) resolveStream(ctx context.Context, ch xumo.Channel) string {
	raw := ch.StreamURL

	if raw == "" {
		assetID, err := p.api.CurrentAssetID(ctx, ch.ID, p.now())
		if err != nil {
			p.log.WithError(err).WithField("channel", ch.ID).Warn("Broadcast lookup failed during stream resolution")

			return ""
		}

		raw, err = p.api.AssetStreamURI(ctx, assetID)
		if err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"channel": ch.ID,
				"asset":   assetID,
			}).Warn("Asset lookup failed during stream resolution")

			return ""
		}
	}

	expanded, err := xumo.ExpandStreamURI(raw, xumo.PlaceholderValues(p.now()))
	if err != nil {
		p.log.WithError(err).WithField("channel", ch.ID).Warn("Stream URI expansion failed")

		return ""
	}

	return expanded
}

func (p *Pipeline) guideURL() string {
	if p.cfg.GuideURL != "" {
		return p.cfg.GuideURL
	}

	return p.cfg.GuideFilename
}

func (p *Pipeline) writeArtifacts(result *Result) error {
	if err := os.MkdirAll(p.cfg.OutputDir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", p.cfg.OutputDir, err)
	}

	playlistPath := filepath.Join(p.cfg.OutputDir, p.cfg.PlaylistFilename)
	if err := os.WriteFile(playlistPath, result.Playlist, filePermissions); err != nil {
		return fmt.Errorf("failed to write playlist %s: %w", playlistPath, err)
	}

	p.log.WithField("path", playlistPath).Info("Playlist written")

	guidePath := filepath.Join(p.cfg.OutputDir, p.cfg.GuideFilename)
	if err := os.WriteFile(guidePath, result.Guide, filePermissions); err != nil {
		return fmt.Errorf("failed to write guide %s: %w", guidePath, err)
	}

	p.log.WithField("path", guidePath).Info("Guide written")

	return nil
}
