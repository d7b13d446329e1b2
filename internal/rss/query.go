package rss

import (
	"net/url"
	"strings"
)

// GoogleNewsSearchURL is the Google News RSS search endpoint.
const GoogleNewsSearchURL = "https://news.google.com/rss/search"

// BuildQueryURL returns the search feed URL for query. gl and ceid are only
// added when geo is set.
func BuildQueryURL(base, query, lang, geo string) string {
	if base == "" {
		base = GoogleNewsSearchURL
	}
	if lang == "" {
		lang = "en"
	}

	params := []string{
		"q=" + url.QueryEscape(query),
		"hl=" + url.QueryEscape(lang),
	}
	if geo != "" {
		params = append(params,
			"gl="+url.QueryEscape(geo),
			"ceid="+url.QueryEscape(geo+":"+lang),
		)
	}
	return base + "?" + strings.Join(params, "&")
}
