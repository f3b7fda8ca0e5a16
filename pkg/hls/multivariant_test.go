package hls

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMultivariant = `#EXTM3U
#EXT-X-TWITCH-INFO:NODE="video-edge-1",MANIFEST-NODE-TYPE="weaver_cluster",SERVING-ID="abc"
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="chunked",NAME="1080p60 (source)",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,CODECS="avc1.64002A,mp4a.40.2",VIDEO="chunked",FRAME-RATE=60.000
https://video-weaver.example.net/v1/playlist/chunked.m3u8
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="720p30",NAME="720p",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,CODECS="avc1.4D401F,mp4a.40.2",VIDEO="720p30",FRAME-RATE=30.000
https://video-weaver.example.net/v1/playlist/720p30.m3u8
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="audio_only",NAME="audio_only",AUTOSELECT=NO,DEFAULT=NO
#EXT-X-STREAM-INF:BANDWIDTH=160000,CODECS="mp4a.40.2",VIDEO="audio_only"
https://video-weaver.example.net/v1/playlist/audio_only.m3u8
`

func TestParseVariants(t *testing.T) {
	variants, err := ParseVariants([]byte(sampleMultivariant))
	require.NoError(t, err)
	require.Len(t, variants, 3)

	source := variants[0]
	assert.Equal(t, "1080p60 (source)", source.Quality)
	assert.Equal(t, "https://video-weaver.example.net/v1/playlist/chunked.m3u8", source.URL)
	assert.Equal(t, 6000000, source.Bandwidth)
	assert.Equal(t, "1920x1080", source.Resolution)
	assert.Equal(t, "avc1.64002A,mp4a.40.2", source.Codecs)
	require.NotNil(t, source.FrameRate)
	assert.Equal(t, 60.0, *source.FrameRate)

	assert.Equal(t, "720p", variants[1].Quality)
	assert.True(t, variants[2].IsAudioOnly())
	assert.False(t, source.IsAudioOnly())
}

func TestParseVariants_DerivedNames(t *testing.T) {
	input := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720,FRAME-RATE=59.940
720p60.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=852x480,FRAME-RATE=30.000
480p.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=128000,CODECS="mp4a.40.2"
audio.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=64000
low.m3u8
`
	variants, err := ParseVariants([]byte(input))
	require.NoError(t, err)
	require.Len(t, variants, 4)

	assert.Equal(t, "720p60", variants[0].Quality)
	assert.Equal(t, "480p", variants[1].Quality)
	assert.Equal(t, QualityAudioOnly, variants[2].Quality)
	assert.Equal(t, "64k", variants[3].Quality)
}

func TestParseVariants_Empty(t *testing.T) {
	variants, err := ParseVariants([]byte("#EXTM3U\n#EXT-X-TWITCH-INFO:NODE=\"x\"\n"))
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestParseVariants_StanzaWithoutURI(t *testing.T) {
	variants, err := ParseVariants([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n"))
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestInjectCodecs(t *testing.T) {
	input := "#EXTM3U\r\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720\r\n" +
		"720p.m3u8\r\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=160000,CODECS=\"mp4a.40.2\"\r\n" +
		"audio.m3u8\r\n"

	out := string(InjectCodecs([]byte(input), "avc1.4D401F,mp4a.40.2"))

	assert.Contains(t, out, "#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,CODECS=\"avc1.4D401F,mp4a.40.2\"\r\n720p.m3u8")
	assert.Contains(t, out, "#EXT-X-STREAM-INF:BANDWIDTH=160000,CODECS=\"mp4a.40.2\"\r\n")
	assert.Equal(t, 1, strings.Count(out, "avc1.4D401F"))

	variants, err := ParseVariants([]byte(out))
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "avc1.4D401F,mp4a.40.2", variants[0].Codecs)
}

func TestInjectCodecs_NoCodecsIsNoop(t *testing.T) {
	input := []byte(sampleMultivariant)
	assert.Equal(t, input, InjectCodecs(input, ""))
}
