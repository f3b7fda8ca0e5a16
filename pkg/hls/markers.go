package hls

import "strings"

// AdMarkers is the vendor data the ad heuristic matches against. It is
// configuration, not logic: operators can extend any of the lists.
type AdMarkers struct {
	// TitleMarkers are case-sensitive substrings of an #EXTINF title that
	// identify an ad segment.
	TitleMarkers []string `mapstructure:"title_markers" yaml:"title_markers"`

	// DateRangeIDPrefixes mark a date range as an ad when its ID starts with one.
	DateRangeIDPrefixes []string `mapstructure:"daterange_id_prefixes" yaml:"daterange_id_prefixes"`

	// DateRangeClasses mark a date range as an ad when CLASS equals one.
	DateRangeClasses []string `mapstructure:"daterange_classes" yaml:"daterange_classes"`

	// AttributePrefixes mark a date range as an ad when any attribute key
	// starts with one.
	AttributePrefixes []string `mapstructure:"attribute_prefixes" yaml:"attribute_prefixes"`
}

// DefaultAdMarkers returns the markers known for the platform's stitched ads.
func DefaultAdMarkers() AdMarkers {
	return AdMarkers{
		TitleMarkers:        []string{"Amazon", "Adform", "DCM"},
		DateRangeIDPrefixes: []string{"stitched-ad-"},
		DateRangeClasses:    []string{"twitch-stitched-ad"},
		AttributePrefixes:   []string{"X-TV-TWITCH-AD"},
	}
}

// IsZero reports whether no markers are configured at all.
func (m AdMarkers) IsZero() bool {
	return len(m.TitleMarkers) == 0 && len(m.DateRangeIDPrefixes) == 0 &&
		len(m.DateRangeClasses) == 0 && len(m.AttributePrefixes) == 0
}

func (m AdMarkers) titleIsAd(title string) bool {
	if title == "" {
		return false
	}
	for _, marker := range m.TitleMarkers {
		if marker != "" && strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// dateRangeIsAd evaluates the date-range part of the heuristic against the
// raw attribute list.
func (m AdMarkers) dateRangeIsAd(id, class string, attrs map[string]string) bool {
	for _, prefix := range m.DateRangeIDPrefixes {
		if prefix != "" && strings.HasPrefix(id, prefix) {
			return true
		}
	}
	for _, c := range m.DateRangeClasses {
		if c != "" && class == c {
			return true
		}
	}
	for key := range attrs {
		for _, prefix := range m.AttributePrefixes {
			if prefix != "" && strings.HasPrefix(key, prefix) {
				return true
			}
		}
	}
	return false
}
