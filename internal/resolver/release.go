package resolver

import "strings"

// ReleaseType is a coarse classification of how a release was sourced,
// inferred from keywords in its filename.
type ReleaseType string

const (
	ReleaseWeb     ReleaseType = "web"
	ReleaseBluRay  ReleaseType = "bluray"
	ReleaseHDTV    ReleaseType = "hdtv"
	ReleaseUnknown ReleaseType = "unknown"
)

// variantCategories is the fixed priority order used by multi-variant
// resolution. At most one representative per category is kept.
var variantCategories = []ReleaseType{ReleaseWeb, ReleaseBluRay, ReleaseHDTV}

// releaseKeywords maps each release type to its filename keyword family.
// Matching is by substring against the normalized name; the first family
// that matches wins, in declaration order.
var releaseKeywords = []struct {
	releaseType ReleaseType
	keywords    []string
}{
	{ReleaseWeb, []string{"web-dl", "webdl", "webrip", "web.dl", "amzn", "nf.web"}},
	{ReleaseBluRay, []string{"bluray", "blu-ray", "bdrip", "brrip", "bd-rip", "remux"}},
	{ReleaseHDTV, []string{"hdtv", "pdtv", "dsr", "tvrip"}},
}

// ClassifyRelease infers the release type from a filename. Unknown shapes
// classify to ReleaseUnknown, never to an error.
func ClassifyRelease(name string) ReleaseType {
	if name == "" {
		return ReleaseUnknown
	}
	normalized := normalizeReleaseName(name)
	for _, family := range releaseKeywords {
		for _, keyword := range family.keywords {
			if strings.Contains(normalized, keyword) {
				return family.releaseType
			}
		}
	}
	return ReleaseUnknown
}

func normalizeReleaseName(name string) string {
	normalized := strings.ToLower(name)
	replacer := strings.NewReplacer("_", ".", " ", ".")
	return replacer.Replace(normalized)
}
