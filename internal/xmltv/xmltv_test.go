package xmltv

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"io"
	"testing"
	"time"

	"github.com/savid/xumo/internal/guide"
	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func testProgram() guide.Program {
	return guide.Program{
		ChannelID: "7",
		AssetID:   "X1",
		Title:     "Morning Show",
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Stop:      time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	channels := []xumo.Channel{
		{ID: "7", Name: "Seven", LogoURL: "https://img.example.com/7.png"},
	}
	listings := map[string][]guide.Program{
		"7": {testProgram()},
	}

	tv := Build(testLog(), channels, listings, "savid-xumo")

	require.Equal(t, "savid-xumo", tv.GeneratorInfo)
	require.Len(t, tv.Channels, 1)
	require.Equal(t, "7", tv.Channels[0].ID)
	require.Equal(t, "Seven", tv.Channels[0].DisplayName)
	require.NotNil(t, tv.Channels[0].Icon)
	require.Equal(t, "https://img.example.com/7.png", tv.Channels[0].Icon.Src)

	require.Len(t, tv.Programmes, 1)

	p := tv.Programmes[0]
	require.Equal(t, "20240101000000 +0000", p.Start)
	require.Equal(t, "20240101010000 +0000", p.Stop)
	require.Equal(t, "7", p.Channel)
	require.Equal(t, "Morning Show", p.Title.Value)
	require.Nil(t, p.Desc)
	require.Nil(t, p.SubTitle)
	require.NotNil(t, p.EpisodeNum)
	require.Equal(t, "dd_assetid", p.EpisodeNum.System)
}

func TestBuild_DescriptionPreference(t *testing.T) {
	program := testProgram()
	program.Descriptions = map[string]string{
		"tiny":   "t",
		"medium": "medium text",
		"large":  "large text",
	}

	tv := Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, map[string][]guide.Program{"7": {program}}, "g")

	require.NotNil(t, tv.Programmes[0].Desc)
	require.Equal(t, "large text", tv.Programmes[0].Desc.Value)
}

func TestBuild_DescriptionFallsThrough(t *testing.T) {
	program := testProgram()
	program.Descriptions = map[string]string{"tiny": "only tiny"}

	tv := Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, map[string][]guide.Program{"7": {program}}, "g")

	require.Equal(t, "only tiny", tv.Programmes[0].Desc.Value)
}

func TestBuild_SubTitleOnlyWhenDifferent(t *testing.T) {
	program := testProgram()
	program.EpisodeTitle = "Morning Show"

	tv := Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, map[string][]guide.Program{"7": {program}}, "g")
	require.Nil(t, tv.Programmes[0].SubTitle)

	program.EpisodeTitle = "Pilot"

	tv = Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, map[string][]guide.Program{"7": {program}}, "g")
	require.NotNil(t, tv.Programmes[0].SubTitle)
	require.Equal(t, "Pilot", tv.Programmes[0].SubTitle.Value)
}

func TestBuild_EpisodeNumSystem(t *testing.T) {
	program := testProgram()
	program.AssetID = "EP012345"

	tv := Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, map[string][]guide.Program{"7": {program}}, "g")
	require.Equal(t, "dd_progid", tv.Programmes[0].EpisodeNum.System)
}

func TestBuild_SkipsUnformattableTimes(t *testing.T) {
	program := testProgram()
	program.Start = time.Time{}

	tv := Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, map[string][]guide.Program{"7": {program}}, "g")
	require.Empty(t, tv.Programmes)
	require.Len(t, tv.Channels, 1)
}

func TestBuild_NoIconWhenNoLogo(t *testing.T) {
	tv := Build(testLog(), []xumo.Channel{{ID: "7", Name: "Seven"}}, nil, "g")
	require.Nil(t, tv.Channels[0].Icon)
}

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()

	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	return out
}

func TestWriteGzip(t *testing.T) {
	channels := []xumo.Channel{{ID: "7", Name: "Seven"}}
	listings := map[string][]guide.Program{"7": {testProgram()}}

	var buf bytes.Buffer

	err := WriteGzip(&buf, Build(testLog(), channels, listings, "g"))
	require.NoError(t, err)

	raw := gunzip(t, buf.Bytes())
	require.Contains(t, string(raw), `<?xml version="1.0" encoding="UTF-8"?>`)
	require.Contains(t, string(raw), `<!DOCTYPE tv SYSTEM "xmltv.dtd">`)

	// The document must parse back.
	var tv TV

	require.NoError(t, xml.Unmarshal(raw, &tv))
	require.Len(t, tv.Channels, 1)
	require.Len(t, tv.Programmes, 1)
	require.Equal(t, "20240101000000 +0000", tv.Programmes[0].Start)
}

func TestWriteGzip_EmptyDocument(t *testing.T) {
	var buf bytes.Buffer

	err := WriteGzip(&buf, Build(testLog(), nil, nil, "g"))
	require.NoError(t, err)

	raw := gunzip(t, buf.Bytes())

	var tv TV

	require.NoError(t, xml.Unmarshal(raw, &tv))
	require.Empty(t, tv.Channels)
	require.Empty(t, tv.Programmes)
}
