package watch

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"dramastream/watchservice/internal/domain"
)

// DefaultCDN picks the episode's mirror flagged as default, else the first one.
func DefaultCDN(ep domain.Episode) (domain.CDN, bool) {
	if len(ep.CDNs) == 0 {
		return domain.CDN{}, false
	}
	for _, cdn := range ep.CDNs {
		if cdn.Default {
			return cdn, true
		}
	}
	return ep.CDNs[0], true
}

// AvailableQualities returns the default CDN's advertised qualities,
// deduplicated and sorted descending.
func AvailableQualities(ep domain.Episode) []int {
	cdn, ok := DefaultCDN(ep)
	if !ok {
		return nil
	}
	seen := make(map[int]struct{}, len(cdn.Sources))
	qualities := make([]int, 0, len(cdn.Sources))
	for _, src := range cdn.Sources {
		if _, dup := seen[src.Quality]; dup {
			continue
		}
		seen[src.Quality] = struct{}{}
		qualities = append(qualities, src.Quality)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(qualities)))
	return qualities
}

// EffectiveQuality resolves the quality to play: the requested one when the
// episode still offers it, otherwise the highest available. Zero means the
// episode has no quality ladder at all.
func EffectiveQuality(ep domain.Episode, requested int) int {
	qualities := AvailableQualities(ep)
	if len(qualities) == 0 {
		return 0
	}
	for _, q := range qualities {
		if q == requested {
			return requested
		}
	}
	return qualities[0]
}

// sourceRule is one candidate-selection rule for picking a playable source.
// Rules are evaluated top-down; the first satisfied rule wins.
type sourceRule struct {
	name string
	pick func(sources []domain.VideoSource, quality int) (domain.VideoSource, bool)
}

var streamSourceRules = []sourceRule{
	{
		name: "exact-quality",
		pick: func(sources []domain.VideoSource, quality int) (domain.VideoSource, bool) {
			if quality <= 0 {
				return domain.VideoSource{}, false
			}
			for _, src := range sources {
				if src.Quality == quality {
					return src, true
				}
			}
			return domain.VideoSource{}, false
		},
	},
	{
		name: "cdn-default",
		pick: func(sources []domain.VideoSource, _ int) (domain.VideoSource, bool) {
			for _, src := range sources {
				if src.Default {
					return src, true
				}
			}
			return domain.VideoSource{}, false
		},
	},
	{
		name: "first-entry",
		pick: func(sources []domain.VideoSource, _ int) (domain.VideoSource, bool) {
			if len(sources) == 0 {
				return domain.VideoSource{}, false
			}
			return sources[0], true
		},
	},
}

// ResolveStreamURL picks the URL to play for an episode at the preferred
// quality: exact quality match, then the CDN's own default entry, then the
// first entry. It returns "" only when the episode carries no CDN data.
func ResolveStreamURL(ep domain.Episode, quality int) string {
	cdn, ok := DefaultCDN(ep)
	if !ok {
		return ""
	}
	for _, rule := range streamSourceRules {
		if src, ok := rule.pick(cdn.Sources, quality); ok {
			return src.URL
		}
	}
	return ""
}

// ResolveDownload picks the highest-quality source across every CDN entry of
// the episode, falling back to the currently playing URL (labelled with
// playingQuality) when no source carries a usable URL. It fails only when
// neither exists.
func ResolveDownload(drama domain.Drama, ep domain.Episode, currentURL string, playingQuality int) (domain.DownloadLink, error) {
	var best domain.VideoSource
	found := false
	for _, cdn := range ep.CDNs {
		for _, src := range cdn.Sources {
			if strings.TrimSpace(src.URL) == "" {
				continue
			}
			if !found || src.Quality > best.Quality {
				best = src
				found = true
			}
		}
	}
	if found {
		return domain.DownloadLink{
			URL:      best.URL,
			Filename: DownloadFilename(drama, ep, best.Quality),
			Quality:  best.Quality,
		}, nil
	}
	if strings.TrimSpace(currentURL) == "" {
		return domain.DownloadLink{}, ErrNoDownloadableSource
	}
	return domain.DownloadLink{
		URL:      currentURL,
		Filename: DownloadFilename(drama, ep, playingQuality),
		Quality:  playingQuality,
	}, nil
}

// DownloadFilename builds a filesystem-safe name like "Show E03 1080p.mp4".
func DownloadFilename(drama domain.Drama, ep domain.Episode, quality int) string {
	name := sanitizeFilename(drama.Name)
	if name == "" {
		name = sanitizeFilename(ep.Name)
	}
	if name == "" {
		name = "episode"
	}
	parts := []string{name, fmt.Sprintf("E%02d", ep.Index+1)}
	if quality > 0 {
		parts = append(parts, fmt.Sprintf("%dp", quality))
	}
	return strings.Join(parts, " ") + ".mp4"
}

// ClampEpisodeIndex keeps a requested episode index inside [0, count-1].
func ClampEpisodeIndex(index, count int) int {
	if count <= 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > count-1 {
		return count - 1
	}
	return index
}

var filenameCleaner = transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cc)))

const maxFilenameRunes = 120

// sanitizeFilename normalizes a display name into something safe to hand to
// a browser's download attribute: NFKC fold, control characters stripped,
// path separators and reserved characters replaced, whitespace collapsed.
func sanitizeFilename(raw string) string {
	cleaned, _, err := transform.String(filenameCleaner, raw)
	if err != nil {
		cleaned = raw
	}
	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if r := []rune(out); len(r) > maxFilenameRunes {
		out = strings.TrimSpace(string(r[:maxFilenameRunes]))
	}
	return out
}
