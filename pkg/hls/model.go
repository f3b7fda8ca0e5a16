// Package hls parses, classifies and writes the subset of HLS playlists used
// by the playback pipeline.
//
// Media playlists are parsed tolerantly: malformed tag content never fails a
// parse, it is skipped or replaced by a default. Only I/O errors from the
// underlying reader are returned.
package hls

// DefaultTargetDuration is used when a media playlist has no valid
// #EXT-X-TARGETDURATION tag.
const DefaultTargetDuration = 10

// MediaPlaylist is a parsed HLS media playlist.
type MediaPlaylist struct {
	// TargetDuration upper-bounds (not strictly) the duration of each segment.
	TargetDuration int

	// MediaSequence is the sequence number of the first segment.
	MediaSequence int64

	// DateRanges holds every well-formed #EXT-X-DATERANGE in source order.
	DateRanges []DateRange

	// InitSegmentURI is the #EXT-X-MAP URI for fragmented MP4 segments.
	InitSegmentURI string

	// Segments are ordered by playback time.
	Segments []Segment

	// IsComplete is true when the playlist carried #EXT-X-ENDLIST (VOD).
	IsComplete bool
}

// TotalDuration returns the sum of all segment durations in seconds.
func (p *MediaPlaylist) TotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration
	}
	return total
}

// Segment is a single media segment.
type Segment struct {
	URI string

	// Duration is the #EXTINF duration in seconds.
	Duration float64

	// Title is the optional #EXTINF title. Ad networks put their markers here.
	Title string

	// ProgramDateTime is the ISO 8601 wall-clock anchor of the segment, if any.
	ProgramDateTime string
}

// DateRange is a parsed #EXT-X-DATERANGE tag.
type DateRange struct {
	ID        string
	Class     string
	StartDate string
	EndDate   string

	// Duration and PlannedDuration are in seconds; nil when absent or malformed.
	Duration        *float64
	PlannedDuration *float64

	// IsAdMarker is derived from the ID, CLASS and attribute names using the
	// parser's AdMarkers.
	IsAdMarker bool
}

// Variant is one selectable rendition of a multivariant playlist.
type Variant struct {
	// Quality is the display name, e.g. "1080p60 (source)", "720p" or "audio_only".
	Quality   string
	FrameRate *float64
	URL       string

	Bandwidth  int
	Resolution string
	Codecs     string
}

// IsAudioOnly reports whether the variant carries no video.
func (v Variant) IsAudioOnly() bool {
	return v.Quality == QualityAudioOnly
}

// QualityAudioOnly is the quality name of audio-only renditions.
const QualityAudioOnly = "audio_only"
