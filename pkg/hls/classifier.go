package hls

import (
	"fmt"
	"time"
)

// timestampLayouts are the ISO 8601 forms seen in PROGRAM-DATE-TIME and
// DATERANGE attributes. Fractional seconds are accepted by time.Parse even
// when the layout omits them.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

// Classifier decides whether segments are advertising. It is a heuristic:
// whenever inputs are incomplete it answers "not an ad".
type Classifier struct {
	Markers AdMarkers
}

// NewClassifier creates a classifier using the given markers.
func NewClassifier(markers AdMarkers) *Classifier {
	return &Classifier{Markers: markers}
}

// IsAd reports whether the most recent segment of pl is an advertisement.
func (c *Classifier) IsAd(pl *MediaPlaylist) bool {
	if pl == nil || len(pl.Segments) == 0 {
		return false
	}
	return c.IsAdSegment(pl, len(pl.Segments)-1)
}

// IsAdSegment evaluates the heuristic for the segment at index i. It never
// panics; any failure is reported as false.
func (c *Classifier) IsAdSegment(pl *MediaPlaylist, i int) (isAd bool) {
	defer func() {
		if recover() != nil {
			isAd = false
		}
	}()

	if pl == nil || i < 0 || i >= len(pl.Segments) {
		return false
	}
	seg := pl.Segments[i]

	if c.Markers.titleIsAd(seg.Title) {
		return true
	}

	if seg.ProgramDateTime == "" {
		return false
	}
	t, err := parseTimestamp(seg.ProgramDateTime)
	if err != nil {
		return false
	}

	for _, dr := range pl.DateRanges {
		if dr.IsAdMarker && dateRangeCovers(dr, t) {
			return true
		}
	}
	return false
}

// AdBreakSegments marks every segment of pl that lies inside an ad break:
// its title carries an ad marker, or its program date-time falls within
// [start, end) of an ad date range. Unlike IsAdSegment, segments before the
// break starts are not marked, so the result is safe for removing segments.
func (c *Classifier) AdBreakSegments(pl *MediaPlaylist) (marks []bool) {
	if pl == nil {
		return nil
	}
	marks = make([]bool, len(pl.Segments))
	defer func() {
		if recover() != nil {
			marks = make([]bool, len(pl.Segments))
		}
	}()

	for i, seg := range pl.Segments {
		if c.Markers.titleIsAd(seg.Title) {
			marks[i] = true
			continue
		}
		if seg.ProgramDateTime == "" {
			continue
		}
		t, err := parseTimestamp(seg.ProgramDateTime)
		if err != nil {
			continue
		}
		for _, dr := range pl.DateRanges {
			if !dr.IsAdMarker || !dateRangeCovers(dr, t) {
				continue
			}
			start, err := parseTimestamp(dr.StartDate)
			if err == nil && !t.Before(start) {
				marks[i] = true
				break
			}
		}
	}
	return marks
}

// dateRangeCovers reports whether t falls before the end of dr. Only the end
// is checked: stitched-ad ranges describe the currently running break.
func dateRangeCovers(dr DateRange, t time.Time) bool {
	if dr.EndDate != "" {
		end, err := parseTimestamp(dr.EndDate)
		if err != nil {
			return false
		}
		return t.Before(end)
	}

	if dr.StartDate == "" {
		return false
	}
	seconds := dr.Duration
	if seconds == nil {
		seconds = dr.PlannedDuration
	}
	if seconds == nil {
		return false
	}
	start, err := parseTimestamp(dr.StartDate)
	if err != nil {
		return false
	}
	end := start.Add(time.Duration(*seconds * float64(time.Second)))
	return t.Before(end)
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
