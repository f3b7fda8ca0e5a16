package hls

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func TestWrite_Layout(t *testing.T) {
	pl := &MediaPlaylist{
		TargetDuration: 6,
		Segments: []Segment{
			{URI: "seg0.ts", Duration: 5, Title: "Amazon|1"},
			{URI: "seg1.ts", Duration: 6},
		},
	}

	expected := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-PLAYLIST-TYPE:EVENT
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:5.000,
seg0.ts
#EXTINF:6.000,
seg1.ts
#EXT-X-ENDLIST
`
	assert.Equal(t, expected, string(Marshal(pl)))
}

func TestWrite_FragmentedSegments(t *testing.T) {
	pl := &MediaPlaylist{
		TargetDuration: 2,
		InitSegmentURI: "init.mp4",
		Segments:       []Segment{{URI: "seg.m4s", Duration: 2.002}},
	}

	out := string(Marshal(pl))
	assert.Contains(t, out, "#EXT-X-VERSION:6\n")
	assert.Contains(t, out, "#EXT-X-MAP:URI=\"init.mp4\"\n#EXTINF:2.002,\nseg.m4s\n")
}

func TestWrite_DoesNotLeakTitles(t *testing.T) {
	pl := &MediaPlaylist{Segments: []Segment{{URI: "a.ts", Duration: 2, Title: "Amazon|secret"}}}
	assert.NotContains(t, string(Marshal(pl)), "Amazon")
}

func TestWrite_PreservesPrecision(t *testing.T) {
	assert.Equal(t, "2.002", formatDuration(2.002))
	assert.Equal(t, "4.0000001", formatDuration(4.0000001))
	assert.Equal(t, "10.000", formatDuration(10))
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWrite_PropagatesWriterErrors(t *testing.T) {
	err := Write(errWriter{}, &MediaPlaylist{})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestParseWriteParse_Idempotent(t *testing.T) {
	inputs := map[string]string{
		"live": livePlaylist,
		"vod":  "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:5.0,\nseg0.ts\n#EXTINF:6.0,\nseg1.ts\n#EXT-X-ENDLIST\n",
		"fmp4": "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXT-X-MAP:URI=\"init.mp4\"\n#EXTINF:3.98,\na.m4s\n#EXTINF:4,\nb.m4s\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			first, err := ParseMediaPlaylist(strings.NewReader(input))
			require.NoError(t, err)

			second, err := ParseMediaPlaylist(bytes.NewReader(Marshal(first)))
			require.NoError(t, err)

			assert.Equal(t, first.TargetDuration, second.TargetDuration)
			assert.Equal(t, first.InitSegmentURI, second.InitSegmentURI)
			require.Len(t, second.Segments, len(first.Segments))
			for i := range first.Segments {
				assert.Equal(t, first.Segments[i].URI, second.Segments[i].URI)
				assert.Equal(t, first.Segments[i].Duration, second.Segments[i].Duration)
			}
			// The writer always terminates the playlist.
			assert.True(t, second.IsComplete)

			third, err := ParseMediaPlaylist(bytes.NewReader(Marshal(second)))
			require.NoError(t, err)
			assert.Equal(t, second, third)
		})
	}
}

func TestWrite_DecodableByStandardPlayer(t *testing.T) {
	input := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:5.0,\nseg0.ts\n#EXTINF:6.0,\nseg1.ts\n#EXT-X-ENDLIST\n"
	pl, err := ParseMediaPlaylist(strings.NewReader(input))
	require.NoError(t, err)

	decoded, err := playlist.Unmarshal(Marshal(pl))
	require.NoError(t, err)

	media, ok := decoded.(*playlist.Media)
	require.True(t, ok, "expected media playlist")
	require.Len(t, media.Segments, 2)
	assert.Equal(t, "seg0.ts", media.Segments[0].URI)
	assert.Equal(t, "seg1.ts", media.Segments[1].URI)
	assert.EqualValues(t, 6, media.TargetDuration)
}

func TestWriteLive_Layout(t *testing.T) {
	pl := &MediaPlaylist{
		TargetDuration: 6,
		MediaSequence:  4711,
		Segments: []Segment{
			{URI: "seg0.ts", Duration: 2.002, Title: "live"},
			{URI: "seg1.ts", Duration: 2},
		},
	}

	expected := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:4711
#EXTINF:2.002,
seg0.ts
#EXTINF:2.000,
seg1.ts
`
	assert.Equal(t, expected, string(MarshalLive(pl)))
}

func TestWriteLive_StaysOpenForStandardPlayer(t *testing.T) {
	pl, err := ParseMediaPlaylist(strings.NewReader(livePlaylist))
	require.NoError(t, err)
	require.False(t, pl.IsComplete)

	out := MarshalLive(pl)
	assert.NotContains(t, string(out), tagEndList)
	assert.NotContains(t, string(out), "PLAYLIST-TYPE")

	decoded, err := playlist.Unmarshal(out)
	require.NoError(t, err)
	media, ok := decoded.(*playlist.Media)
	require.True(t, ok, "expected media playlist")
	assert.False(t, media.Endlist)
	assert.Equal(t, 4210, media.MediaSequence)
	require.Len(t, media.Segments, 2)

	again, err := ParseMediaPlaylist(bytes.NewReader(out))
	require.NoError(t, err)
	assert.False(t, again.IsComplete)
	assert.Equal(t, int64(4210), again.MediaSequence)
}

func TestWriteLive_PropagatesWriterErrors(t *testing.T) {
	err := WriteLive(errWriter{}, &MediaPlaylist{})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
