// Package xumo is a client for Xumo's undocumented JSON APIs: channel
// lists, live broadcast/asset lookups, and paginated EPG pages.
package xumo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/savid/xumo/internal/fetch"
	"github.com/sirupsen/logrus"
)

// Endpoints holds the vendor API surface. Two distinct backends exist: the
// "valencia" web backend and the android-tv backend; they expose different
// list IDs and want different request headers.
type Endpoints struct {
	ValenciaBase   string
	AndroidBase    string
	ImageBase      string
	GeoID          string
	ValenciaListID string
	AndroidListID  string
}

// DefaultEndpoints returns the currently working API surface.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ValenciaBase:   "https://valencia-app-mds.xumo.com/v2",
		AndroidBase:    "https://android-tv-mds.xumo.com/v2",
		ImageBase:      "https://image.xumo.com",
		GeoID:          "us",
		ValenciaListID: "10006",
		AndroidListID:  "10032",
	}
}

// PagingMode selects the EPG pagination unit; the upstream API has changed
// between the two over time.
type PagingMode string

const (
	// PageByOffset pages with a limit/offset query over channel blocks.
	PageByOffset PagingMode = "offset"
	// PageByHour pages by hour-of-day path segments.
	PageByHour PagingMode = "hour"
)

// Paging configures the EPG fetch loop.
type Paging struct {
	Mode     PagingMode
	PageSize int
	MaxPages int
}

// DefaultPaging matches the current offset-based EPG endpoint: blocks of 50
// channels, offsets bounded at 400.
func DefaultPaging() Paging {
	return Paging{
		Mode:     PageByOffset,
		PageSize: 50,
		MaxPages: 9, // offsets 0..400 inclusive
	}
}

// Channel is one live channel as consumed by the playlist and guide
// builders. StreamURL is empty until stream resolution fills it in.
type Channel struct {
	ID        string
	Name      string
	Number    string
	Callsign  string
	Genre     string
	LogoURL   string
	StreamURL string
}

// Client issues requests against the vendor API.
type Client struct {
	log    logrus.FieldLogger
	http   *fetch.Client
	cfg    Endpoints
	paging Paging
}

// NewClient creates a vendor API client on top of the retrying fetcher.
func NewClient(log logrus.FieldLogger, httpClient *fetch.Client, cfg Endpoints, paging Paging) *Client {
	return &Client{
		log:    log.WithField("component", "xumo"),
		http:   httpClient,
		cfg:    cfg,
		paging: paging,
	}
}

func webHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Origin":          "https://play.xumo.com",
		"Referer":         "https://play.xumo.com/",
	}
}

func androidHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "okhttp/4.9.3",
	}
}

// stringify renders the string/number variants the API uses for IDs and
// channel numbers.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func (c *Client) logoURL(channelID string) string {
	return fmt.Sprintf("%s/v1/channels/channel/%s/168x168.png?type=color_onBlack", c.cfg.ImageBase, channelID)
}

// normalizeLogoURL resolves the protocol-relative and path-relative logo
// variants the list endpoints return.
func (c *Client) normalizeLogoURL(channelID, logo string) string {
	switch {
	case logo == "":
		return c.logoURL(channelID)
	case strings.HasPrefix(logo, "//"):
		return "https:" + logo
	case strings.HasPrefix(logo, "/"):
		return c.cfg.ImageBase + logo
	default:
		return logo
	}
}

func isDRMCallsign(callsign string) bool {
	return strings.HasSuffix(callsign, "-DRM") || strings.HasSuffix(callsign, "DRM-CMS")
}

// channelListItem tolerates the field variants both list endpoints emit.
type channelListItem struct {
	GUID struct {
		Value any `json:"value"`
	} `json:"guid"`
	ID       any    `json:"id"`
	Title    string `json:"title"`
	Name     string `json:"name"`
	Number   any    `json:"number"`
	Callsign string `json:"callsign"`
	Images   struct {
		Logo string `json:"logo"`
	} `json:"images"`
	Logo       string          `json:"logo"`
	Genre      json.RawMessage `json:"genre"`
	Properties struct {
		IsLive string `json:"is_live"`
	} `json:"properties"`
	Stream    json.RawMessage `json:"stream"`
	Streams   json.RawMessage `json:"streams"`
	Playback  json.RawMessage `json:"playback"`
	Providers json.RawMessage `json:"providers"`
}

func (it *channelListItem) id() string {
	if id := stringify(it.GUID.Value); id != "" {
		return id
	}

	return stringify(it.ID)
}

func (it *channelListItem) displayName() string {
	if it.Title != "" {
		return it.Title
	}

	return it.Name
}

// genre decodes either a list of {value} objects or a plain string.
func (it *channelListItem) genre() string {
	if len(it.Genre) == 0 {
		return "General"
	}

	var objects []struct {
		Value string `json:"value"`
	}

	if err := json.Unmarshal(it.Genre, &objects); err == nil && len(objects) > 0 && objects[0].Value != "" {
		return objects[0].Value
	}

	var plain string
	if err := json.Unmarshal(it.Genre, &plain); err == nil && plain != "" {
		return plain
	}

	return "General"
}

type channelListResponse struct {
	Channel struct {
		Item []channelListItem `json:"item"`
	} `json:"channel"`
	Items []channelListItem `json:"items"`
}

func (r *channelListResponse) items() []channelListItem {
	if len(r.Channel.Item) > 0 {
		return r.Channel.Item
	}

	return r.Items
}

// ChannelList fetches the primary (valencia) channel list. DRM and
// non-live channels are filtered out; inline stream URIs are extracted raw
// when the response carries them.
func (c *Client) ChannelList(ctx context.Context) ([]Channel, error) {
	url := fmt.Sprintf("%s/proxy/channels/list/%s.json?geoId=%s", c.cfg.ValenciaBase, c.cfg.ValenciaListID, c.cfg.GeoID)

	var resp channelListResponse
	if err := c.http.GetJSON(ctx, url, webHeaders(), &resp); err != nil {
		return nil, fmt.Errorf("primary channel list: %w", err)
	}

	channels := c.buildChannels(resp.items(), true)
	if len(channels) == 0 {
		return nil, fmt.Errorf("primary channel list returned no usable channels")
	}

	return channels, nil
}

// FallbackChannelList fetches the android-tv channel list. It never carries
// inline stream URIs; every channel needs asset-lookup stream resolution.
func (c *Client) FallbackChannelList(ctx context.Context) ([]Channel, error) {
	url := fmt.Sprintf("%s/channels/list/%s.json?f=genreId&sort=hybrid&geoId=%s", c.cfg.AndroidBase, c.cfg.AndroidListID, c.cfg.GeoID)

	var resp channelListResponse
	if err := c.http.GetJSON(ctx, url, androidHeaders(), &resp); err != nil {
		return nil, fmt.Errorf("fallback channel list: %w", err)
	}

	return c.buildChannels(resp.items(), false), nil
}

func (c *Client) buildChannels(items []channelListItem, withStreams bool) []Channel {
	channels := make([]Channel, 0, len(items))

	for i := range items {
		it := &items[i]

		id := it.id()
		name := it.displayName()

		if id == "" || name == "" {
			c.log.WithField("name", name).Warn("Skipping channel item with missing ID or title")

			continue
		}

		if isDRMCallsign(it.Callsign) {
			c.log.WithField("channel", id).Debug("Skipping DRM channel")

			continue
		}

		if it.Properties.IsLive != "true" {
			c.log.WithField("channel", id).Debug("Skipping non-live channel")

			continue
		}

		ch := Channel{
			ID:       id,
			Name:     name,
			Number:   stringify(it.Number),
			Callsign: it.Callsign,
			Genre:    it.genre(),
			LogoURL:  c.normalizeLogoURL(id, firstNonEmpty(it.Images.Logo, it.Logo)),
		}

		if withStreams {
			ch.StreamURL = extractStreamURI(it)
		}

		channels = append(channels, ch)
	}

	return channels
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
