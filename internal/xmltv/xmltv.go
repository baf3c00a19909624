// Package xmltv builds and writes the XMLTV guide document.
package xmltv

import (
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/savid/xumo/internal/guide"
	"github.com/savid/xumo/internal/timefmt"
	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
)

const doctype = `<!DOCTYPE tv SYSTEM "xmltv.dtd">` + "\n"

// TV is the root element of an XMLTV document.
type TV struct {
	XMLName       xml.Name    `xml:"tv"`
	GeneratorInfo string      `xml:"generator-info-name,attr"`
	Channels      []Channel   `xml:"channel"`
	Programmes    []Programme `xml:"programme"`
}

// Channel is one channel-metadata node.
type Channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	Icon        *Icon  `xml:"icon,omitempty"`
}

// Icon references a channel logo.
type Icon struct {
	Src string `xml:"src,attr"`
}

// Text is a language-tagged text node.
type Text struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// EpisodeNum carries an episode identifier in a named numbering system.
type EpisodeNum struct {
	System string `xml:"system,attr"`
	Value  string `xml:",chardata"`
}

// Programme is one airing. Field order follows the XMLTV DTD so marshalled
// children validate.
type Programme struct {
	Start      string      `xml:"start,attr"`
	Stop       string      `xml:"stop,attr"`
	Channel    string      `xml:"channel,attr"`
	Title      Text        `xml:"title"`
	SubTitle   *Text       `xml:"sub-title,omitempty"`
	Desc       *Text       `xml:"desc,omitempty"`
	EpisodeNum *EpisodeNum `xml:"episode-num,omitempty"`
}

// descOrder prefers the longest description variant the asset carries.
var descOrder = []string{"large", "medium", "small", "tiny"}

// Build renders the channel set and consolidated listings as an XMLTV
// document. Programmes whose times cannot be formatted are skipped, never
// fatal. An empty input still yields a well-formed document.
func Build(log logrus.FieldLogger, channels []xumo.Channel, listings map[string][]guide.Program, generator string) *TV {
	log = log.WithField("component", "xmltv")

	tv := &TV{
		GeneratorInfo: generator,
		Channels:      make([]Channel, 0, len(channels)),
		Programmes:    make([]Programme, 0, 1024),
	}

	skipped := 0

	for _, ch := range channels {
		node := Channel{
			ID:          ch.ID,
			DisplayName: ch.Name,
		}

		if ch.LogoURL != "" {
			node.Icon = &Icon{Src: ch.LogoURL}
		}

		tv.Channels = append(tv.Channels, node)

		for _, program := range listings[ch.ID] {
			start := timefmt.FormatXMLTV(program.Start)
			stop := timefmt.FormatXMLTV(program.Stop)

			if start == "" || stop == "" {
				skipped++

				continue
			}

			tv.Programmes = append(tv.Programmes, buildProgramme(ch.ID, start, stop, program))
		}
	}

	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("Skipped programmes with unformattable times")
	}

	log.WithFields(logrus.Fields{
		"channels":   len(tv.Channels),
		"programmes": len(tv.Programmes),
	}).Info("Guide document built")

	return tv
}

func buildProgramme(channelID, start, stop string, program guide.Program) Programme {
	p := Programme{
		Start:   start,
		Stop:    stop,
		Channel: channelID,
		Title:   Text{Lang: "en", Value: program.Title},
	}

	if desc := pickDescription(program.Descriptions); desc != "" {
		p.Desc = &Text{Lang: "en", Value: desc}
	}

	if program.EpisodeTitle != "" && program.EpisodeTitle != program.Title {
		p.SubTitle = &Text{Lang: "en", Value: program.EpisodeTitle}
	}

	if program.AssetID != "" {
		p.EpisodeNum = &EpisodeNum{
			System: episodeSystem(program.AssetID),
			Value:  program.AssetID,
		}
	}

	return p
}

func pickDescription(descriptions map[string]string) string {
	for _, size := range descOrder {
		if d := descriptions[size]; d != "" {
			return d
		}
	}

	return ""
}

// episodeSystem maps Gracenote-style EP ids to dd_progid; everything else
// is tagged as a plain asset id.
func episodeSystem(assetID string) string {
	if strings.HasPrefix(assetID, "EP") {
		return "dd_progid"
	}

	return "dd_assetid"
}

// WriteGzip writes the document gzip-compressed with an XML declaration
// and the xmltv DOCTYPE.
func WriteGzip(w io.Writer, tv *TV) error {
	body, err := xml.MarshalIndent(tv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal guide XML: %w", err)
	}

	gz := gzip.NewWriter(w)

	for _, chunk := range [][]byte{[]byte(xml.Header), []byte(doctype), body, []byte("\n")} {
		if _, err := gz.Write(chunk); err != nil {
			gz.Close()

			return fmt.Errorf("failed to write gzipped guide: %w", err)
		}
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish gzipped guide: %w", err)
	}

	return nil
}
