package ingestion

import (
	"net/url"
	"path"
	"strings"
)

// knownLabels are the knowledge categories the persona pipeline recognises
// in file and URL names. Explicit --label flags take precedence; this is the
// best-effort fallback when the user doesn't specify one.
var knownLabels = []string{
	"backstory",
	"favorites",
	"relationships",
	"daily",
	"speech",
}

// InferLabel inspects a source location and returns a best-effort knowledge
// label based on the file or URL base name. Unrecognised sources get the
// generic "knowledge" label.
//
//	knowledge/backstory.txt        → backstory
//	https://cdn.example.com/favorites.md → favorites
//	notes.txt                      → knowledge
func InferLabel(location string) string {
	base := location
	if parsed, err := url.Parse(location); err == nil && parsed.Scheme != "" {
		base = parsed.Path
	}
	base = strings.ToLower(path.Base(base))

	for _, label := range knownLabels {
		if strings.HasPrefix(base, label) {
			return label
		}
	}
	return "knowledge"
}
