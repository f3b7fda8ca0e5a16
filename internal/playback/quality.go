package playback

import (
	"strings"

	"github.com/jmylchreest/playarr/pkg/hls"
)

// Quality preferences understood by SelectVariant besides name prefixes.
const (
	QualityBest  = "best"
	QualityWorst = "worst"
)

// SelectVariant picks the variant matching pref from variants ordered highest
// first. An empty pref or "best" picks the first variant, "worst" the last
// video variant, "audio_only" the audio rendition. Anything else matches a
// variant quality exactly, then as a case-insensitive prefix ("720p" matches
// "720p60"). When nothing matches the first variant is used.
func SelectVariant(variants []hls.Variant, pref string) (hls.Variant, bool) {
	if len(variants) == 0 {
		return hls.Variant{}, false
	}

	pref = strings.TrimSpace(pref)
	switch strings.ToLower(pref) {
	case "", QualityBest:
		return variants[0], true
	case QualityWorst:
		for i := len(variants) - 1; i >= 0; i-- {
			if !variants[i].IsAudioOnly() {
				return variants[i], true
			}
		}
		return variants[len(variants)-1], true
	case hls.QualityAudioOnly:
		for _, v := range variants {
			if v.IsAudioOnly() {
				return v, true
			}
		}
		return variants[0], true
	}

	for _, v := range variants {
		if v.Quality == pref {
			return v, true
		}
	}
	lower := strings.ToLower(pref)
	for _, v := range variants {
		if strings.HasPrefix(strings.ToLower(v.Quality), lower) {
			return v, true
		}
	}
	return variants[0], true
}

// QualityNames lists the variant qualities in order.
func QualityNames(variants []hls.Variant) []string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Quality
	}
	return names
}
