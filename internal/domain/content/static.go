package content

import "strings"

// StaticURLPrefix is the authored prefix that marks course assets in module
// markup ("/static/images/circuit.png").
const StaticURLPrefix = "/static/"

// ReplaceStaticURLs rewrites authored /static/ references to the serving
// location of the course's assets. A dataDir of "course-assets" turns
// src="/static/img.png" into src="/course-assets/img.png". Markup without
// static references passes through untouched.
func ReplaceStaticURLs(markup, dataDir string) string {
	if dataDir == "" || !strings.Contains(markup, StaticURLPrefix) {
		return markup
	}

	prefix := "/" + strings.Trim(dataDir, "/") + "/"

	// Only rewrite quoted attribute values, not free text mentioning the
	// prefix.
	markup = strings.ReplaceAll(markup, `"`+StaticURLPrefix, `"`+prefix)
	markup = strings.ReplaceAll(markup, `'`+StaticURLPrefix, `'`+prefix)
	return markup
}
