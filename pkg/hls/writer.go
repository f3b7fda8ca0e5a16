package hls

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// Playlist versions emitted by the writer. fMP4 segments need EXT-X-MAP,
// which in turn needs version 6.
const (
	versionDefault    = 3
	versionFragmented = 6
)

// Marshal serializes pl with Write.
func Marshal(pl *MediaPlaylist) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = Write(&buf, pl)
	return buf.Bytes()
}

// MarshalLive serializes pl with WriteLive.
func MarshalLive(pl *MediaPlaylist) []byte {
	var buf bytes.Buffer
	_ = WriteLive(&buf, pl)
	return buf.Bytes()
}

// Write emits pl as an EVENT media playlist terminated by #EXT-X-ENDLIST.
//
// Only what a player needs is written: segment titles, date ranges and
// program date-times are dropped, so the output is not a faithful round trip
// of the source.
func Write(w io.Writer, pl *MediaPlaylist) error {
	return write(w, pl, false)
}

// WriteLive emits pl as a sliding-window live playlist. It carries the
// playlist's own media sequence and no #EXT-X-ENDLIST, so players keep
// reloading it. Dropped tags are the same as for Write.
func WriteLive(w io.Writer, pl *MediaPlaylist) error {
	return write(w, pl, true)
}

func write(w io.Writer, pl *MediaPlaylist, live bool) error {
	version := versionDefault
	if pl.InitSegmentURI != "" {
		version = versionFragmented
	}

	targetDuration := pl.TargetDuration
	if targetDuration <= 0 {
		targetDuration = DefaultTargetDuration
	}

	lines := []string{
		tagHeader,
		"#EXT-X-VERSION:" + strconv.Itoa(version),
	}
	if live {
		lines = append(lines,
			tagTargetDuration+strconv.Itoa(targetDuration),
			tagMediaSequence+strconv.FormatInt(max(pl.MediaSequence, 0), 10),
		)
	} else {
		lines = append(lines,
			"#EXT-X-PLAYLIST-TYPE:EVENT",
			tagTargetDuration+strconv.Itoa(targetDuration),
			tagMediaSequence+"0",
		)
	}
	if pl.InitSegmentURI != "" {
		lines = append(lines, fmt.Sprintf(`%sURI="%s"`, tagMap, pl.InitSegmentURI))
	}
	for _, seg := range pl.Segments {
		lines = append(lines, tagInf+formatDuration(seg.Duration)+",", seg.URI)
	}
	if !live {
		lines = append(lines, tagEndList)
	}

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("writing media playlist: %w", err)
		}
	}
	return nil
}

// formatDuration prints three decimals unless that would lose precision.
func formatDuration(d float64) string {
	s := strconv.FormatFloat(d, 'f', 3, 64)
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == d {
		return s
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}
