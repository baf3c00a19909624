// Package playlist renders the channel set as an M3U playlist.
package playlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
)

// unknownNumber sorts channels without a parseable number after every
// numbered channel.
const unknownNumber = 1 << 30

// Build renders channels with resolved stream URLs as an M3U playlist.
// tvgURL is the published location of the companion guide file. Channels
// lacking a stream URL are excluded, never emitted with an empty URI.
func Build(log logrus.FieldLogger, channels []xumo.Channel, tvgURL string) string {
	log = log.WithField("component", "playlist")

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#EXTM3U url-tvg=\"%s\"\n", tvgURL))

	playable := make([]xumo.Channel, 0, len(channels))

	for _, ch := range channels {
		if ch.StreamURL == "" {
			log.WithFields(logrus.Fields{
				"channel": ch.ID,
				"name":    ch.Name,
			}).Warn("Channel has no stream URL, excluding from playlist")

			continue
		}

		playable = append(playable, ch)
	}

	sort.SliceStable(playable, func(i, j int) bool {
		ni, nj := sortNumber(playable[i]), sortNumber(playable[j])
		if ni != nj {
			return ni < nj
		}

		return strings.ToLower(playable[i].Name) < strings.ToLower(playable[j].Name)
	})

	for _, ch := range playable {
		sb.WriteString(fmt.Sprintf("#EXTINF:-1 tvg-id=\"%s\" tvg-name=\"%s\" tvg-logo=\"%s\" group-title=\"%s\",%s\n",
			ch.ID,
			strings.ReplaceAll(ch.Name, `"`, "'"),
			ch.LogoURL,
			sanitizeComma(group(ch)),
			sanitizeComma(ch.Name),
		))
		sb.WriteString(ch.StreamURL + "\n")
	}

	log.WithField("channels", len(playable)).Info("Playlist rendered")

	return sb.String()
}

func sortNumber(ch xumo.Channel) int {
	n, err := strconv.Atoi(strings.TrimSpace(ch.Number))
	if err != nil || n < 0 {
		return unknownNumber
	}

	return n
}

func group(ch xumo.Channel) string {
	if ch.Genre == "" {
		return "General"
	}

	return ch.Genre
}

// sanitizeComma keeps the EXTINF line parseable: the display-name field is
// comma-delimited.
func sanitizeComma(s string) string {
	return strings.ReplaceAll(s, ",", ";")
}
