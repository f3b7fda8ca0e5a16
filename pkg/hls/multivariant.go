package hls

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseVariants extracts the variant stanzas of a multivariant playlist in
// source order. Stanzas without a URI line are dropped. An empty result is
// not an error here; callers decide what "no variants" means.
func ParseVariants(data []byte) ([]Variant, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	// GROUP-ID -> NAME of #EXT-X-MEDIA renditions.
	names := make(map[string]string)

	var (
		variants []Variant
		pending  map[string]string
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case strings.HasPrefix(line, tagMedia):
			attrs := parseAttributes(line[len(tagMedia):])
			if group, name := attrs["GROUP-ID"], attrs["NAME"]; group != "" && name != "" {
				names[group] = name
			}

		case strings.HasPrefix(line, tagStreamInf):
			pending = parseAttributes(line[len(tagStreamInf):])

		case strings.HasPrefix(line, "#"):

		default:
			if pending == nil {
				continue
			}
			variants = append(variants, newVariant(pending, names, line))
			pending = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning multivariant playlist: %w", err)
	}

	return variants, nil
}

func newVariant(attrs, names map[string]string, uri string) Variant {
	v := Variant{
		URL:        uri,
		Resolution: attrs["RESOLUTION"],
		Codecs:     attrs["CODECS"],
		FrameRate:  parseSeconds(attrs["FRAME-RATE"]),
	}
	if bw, err := strconv.Atoi(attrs["BANDWIDTH"]); err == nil {
		v.Bandwidth = bw
	}

	if name, ok := names[attrs["VIDEO"]]; ok {
		v.Quality = name
	} else {
		v.Quality = qualityName(v, attrs["VIDEO"])
	}
	return v
}

// qualityName derives a name like "720p60" when no rendition NAME exists.
func qualityName(v Variant, group string) string {
	if group == QualityAudioOnly {
		return QualityAudioOnly
	}

	if _, height, ok := strings.Cut(v.Resolution, "x"); ok {
		if h, err := strconv.Atoi(height); err == nil && h > 0 {
			name := strconv.Itoa(h) + "p"
			if v.FrameRate != nil && *v.FrameRate > 30 {
				name += strconv.Itoa(int(math.Round(*v.FrameRate)))
			}
			return name
		}
	}

	if v.Codecs != "" && !hasVideoCodec(v.Codecs) {
		return QualityAudioOnly
	}
	if group != "" {
		return group
	}
	return strconv.Itoa(v.Bandwidth/1000) + "k"
}

var videoCodecPrefixes = []string{"avc1", "avc3", "hvc1", "hev1", "av01", "vp09"}

func hasVideoCodec(codecs string) bool {
	for _, codec := range strings.Split(codecs, ",") {
		codec = strings.TrimSpace(codec)
		for _, prefix := range videoCodecPrefixes {
			if strings.HasPrefix(codec, prefix) {
				return true
			}
		}
	}
	return false
}

// InjectCodecs adds CODECS="codecs" to every #EXT-X-STREAM-INF line that
// lacks a CODECS attribute. Everything else is copied unchanged.
func InjectCodecs(data []byte, codecs string) []byte {
	if codecs == "" {
		return data
	}

	lines := strings.Split(string(data), "\n")
	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if !strings.HasPrefix(line, tagStreamInf) {
			continue
		}
		if _, ok := parseAttributes(line[len(tagStreamInf):])["CODECS"]; ok {
			continue
		}
		suffix := raw[len(line):]
		lines[i] = fmt.Sprintf(`%s,CODECS="%s"%s`, line, codecs, suffix)
	}
	return []byte(strings.Join(lines, "\n"))
}
