package hls

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Tags consumed by the media playlist parser.
const (
	tagHeader          = "#EXTM3U"
	tagTargetDuration  = "#EXT-X-TARGETDURATION:"
	tagMediaSequence   = "#EXT-X-MEDIA-SEQUENCE:"
	tagDateRange       = "#EXT-X-DATERANGE:"
	tagProgramDateTime = "#EXT-X-PROGRAM-DATE-TIME:"
	tagMap             = "#EXT-X-MAP:"
	tagInf             = "#EXTINF:"
	tagEndList         = "#EXT-X-ENDLIST"
	tagStreamInf       = "#EXT-X-STREAM-INF:"
	tagMedia           = "#EXT-X-MEDIA:"
)

// maxLineSize bounds a single playlist line. Signed segment URLs can be long.
const maxLineSize = 1024 * 1024

// attrRegex matches KEY="value" or KEY=value pairs of an attribute list.
// Quoted values may contain commas.
var attrRegex = regexp.MustCompile(`([A-Za-z0-9_-]+)=(?:"([^"]*)"|([^",]*))`)

// Parser parses media playlists. The zero value uses no ad markers, so date
// ranges are never flagged; use NewParser or ParseMediaPlaylist instead.
type Parser struct {
	Markers AdMarkers
}

// NewParser creates a parser that flags date ranges with the given markers.
func NewParser(markers AdMarkers) *Parser {
	return &Parser{Markers: markers}
}

// ParseMediaPlaylist parses r with the default ad markers.
func ParseMediaPlaylist(r io.Reader) (*MediaPlaylist, error) {
	return NewParser(DefaultAdMarkers()).Parse(r)
}

// ParseBytes is a convenience wrapper around Parse for in-memory playlists.
func (p *Parser) ParseBytes(data []byte) (*MediaPlaylist, error) {
	return p.Parse(bytes.NewReader(data))
}

// Parse reads a media playlist in a single forward pass. It only returns an
// error if reading from r fails.
func (p *Parser) Parse(r io.Reader) (*MediaPlaylist, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	pl := &MediaPlaylist{TargetDuration: DefaultTargetDuration}

	// Pending state for the next segment URI line.
	var (
		pendingDuration float64
		pendingTitle    string
		pendingPDT      string
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, tagTargetDuration):
			if v, err := strconv.Atoi(strings.TrimSpace(line[len(tagTargetDuration):])); err == nil && v > 0 {
				pl.TargetDuration = v
			}

		case strings.HasPrefix(line, tagMediaSequence):
			if v, err := strconv.ParseInt(strings.TrimSpace(line[len(tagMediaSequence):]), 10, 64); err == nil {
				pl.MediaSequence = v
			}

		case strings.HasPrefix(line, tagDateRange):
			if dr, ok := p.parseDateRange(line[len(tagDateRange):]); ok {
				pl.DateRanges = append(pl.DateRanges, dr)
			}

		case strings.HasPrefix(line, tagProgramDateTime):
			pendingPDT = strings.TrimSpace(line[len(tagProgramDateTime):])

		case strings.HasPrefix(line, tagMap):
			if uri := parseAttributes(line[len(tagMap):])["URI"]; uri != "" {
				pl.InitSegmentURI = uri
			}

		case strings.HasPrefix(line, tagInf):
			pendingDuration, pendingTitle = parseInf(line[len(tagInf):])

		case strings.HasPrefix(line, tagEndList):
			pl.IsComplete = true

		case strings.HasPrefix(line, "#"):
			// Unknown tag or comment.

		default:
			pl.Segments = append(pl.Segments, Segment{
				URI:             line,
				Duration:        pendingDuration,
				Title:           pendingTitle,
				ProgramDateTime: pendingPDT,
			})
			pendingDuration, pendingTitle, pendingPDT = 0, "", ""
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning media playlist: %w", err)
	}

	return pl, nil
}

// parseDateRange returns false when ID or START-DATE is missing.
func (p *Parser) parseDateRange(attrList string) (DateRange, bool) {
	attrs := parseAttributes(attrList)

	id := attrs["ID"]
	start := attrs["START-DATE"]
	if id == "" || start == "" {
		return DateRange{}, false
	}

	dr := DateRange{
		ID:              id,
		Class:           attrs["CLASS"],
		StartDate:       start,
		EndDate:         attrs["END-DATE"],
		Duration:        parseSeconds(attrs["DURATION"]),
		PlannedDuration: parseSeconds(attrs["PLANNED-DURATION"]),
	}
	dr.IsAdMarker = p.Markers.dateRangeIsAd(dr.ID, dr.Class, attrs)

	return dr, true
}

// parseInf splits "<duration>,<title>". A malformed duration becomes 0.
func parseInf(value string) (float64, string) {
	durationPart, title, _ := strings.Cut(value, ",")
	duration, err := strconv.ParseFloat(strings.TrimSpace(durationPart), 64)
	if err != nil || duration < 0 {
		duration = 0
	}
	return duration, strings.TrimSpace(title)
}

// parseSeconds returns nil for empty or malformed values.
func parseSeconds(value string) *float64 {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseAttributes parses an HLS attribute list into a map keyed by attribute
// name. Later duplicates win.
func parseAttributes(list string) map[string]string {
	matches := attrRegex.FindAllStringSubmatch(list, -1)
	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		value := m[2]
		if value == "" {
			value = strings.TrimSpace(m[3])
		}
		attrs[m[1]] = value
	}
	return attrs
}
