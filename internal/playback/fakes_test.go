package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/pkg/hls"
)

const testMultivariant = `#EXTM3U
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="chunked",NAME="1080p60 (source)",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,CODECS="avc1.64002A,mp4a.40.2",VIDEO="chunked",FRAME-RATE=60.000
https://edge.example.net/chunked.m3u8
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="720p60",NAME="720p60",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720,CODECS="avc1.4D401F,mp4a.40.2",VIDEO="720p60",FRAME-RATE=60.000
https://edge.example.net/720p60.m3u8
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="160p30",NAME="160p",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=230000,RESOLUTION=284x160,CODECS="avc1.4D400C,mp4a.40.2",VIDEO="160p30",FRAME-RATE=30.000
https://edge.example.net/160p30.m3u8
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="audio_only",NAME="audio_only",AUTOSELECT=NO,DEFAULT=NO
#EXT-X-STREAM-INF:BANDWIDTH=160000,CODECS="mp4a.40.2",VIDEO="audio_only"
https://edge.example.net/audio_only.m3u8
`

const adMediaPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:2.000,live
seg1.ts
#EXTINF:2.000,Amazon|abc
seg2.ts
`

const cleanMediaPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:2.000,live
seg1.ts
#EXTINF:2.000,live
seg2.ts
`

type fakeTokens struct {
	token platform.AccessToken
	err   error
	calls atomic.Int32
}

func (f *fakeTokens) AccessToken(context.Context, platform.Identity, platform.ClientHeaders) (platform.AccessToken, error) {
	f.calls.Add(1)
	return f.token, f.err
}

type fakeVariants struct {
	data []byte
	err  error
}

func (f *fakeVariants) FetchMultivariant(context.Context, platform.AccessToken, platform.Identity, platform.ClientHeaders) ([]byte, error) {
	return f.data, f.err
}

type fakePlaylists struct {
	mu   sync.Mutex
	data []byte
	err  error
	urls []string
}

func (f *fakePlaylists) set(data string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = []byte(data), err
}

func (f *fakePlaylists) FetchMediaPlaylist(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return f.data, f.err
}

type fakeMetadata struct {
	calls atomic.Int32
	fn    func(call int32) (platform.StreamMetadata, error)
}

func (f *fakeMetadata) StreamMetadata(ctx context.Context, _ platform.Identity, _ platform.ClientHeaders) (platform.StreamMetadata, error) {
	n := f.calls.Add(1)
	return f.fn(n)
}

type transition struct {
	from, to State
}

type recordingListener struct {
	mu          sync.Mutex
	transitions []transition
	ads         []bool
	metadata    []platform.StreamMetadata
}

func (l *recordingListener) StateChanged(_ string, from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, transition{from, to})
}

func (l *recordingListener) AdStateChanged(_ string, playing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ads = append(l.ads, playing)
}

func (l *recordingListener) MetadataUpdated(_ string, md platform.StreamMetadata) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metadata = append(l.metadata, md)
}

func (l *recordingListener) countTo(state State) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, tr := range l.transitions {
		if tr.to == state {
			n++
		}
	}
	return n
}

func (l *recordingListener) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, 0, len(l.transitions))
	for _, tr := range l.transitions {
		out = append(out, tr.to)
	}
	return out
}

type recordingPlayer struct {
	mu     sync.Mutex
	played []hls.Variant
	err    error
}

func (p *recordingPlayer) Play(_ context.Context, v hls.Variant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, v)
	return p.err
}

func (p *recordingPlayer) last() hls.Variant {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.played) == 0 {
		return hls.Variant{}
	}
	return p.played[len(p.played)-1]
}
