package fuzzysearch

import "fmt"

// Match is a single candidate returned by the hash-search service.
type Match struct {
	ID       int64    `json:"id"`
	SiteID   int64    `json:"site_id"`
	Site     string   `json:"site"`
	URL      string   `json:"url"`
	Filename string   `json:"filename"`
	Artists  []string `json:"artists"`
	Distance *int64   `json:"distance"`
}

// SourceURL returns the canonical page for the matched post.
func (m Match) SourceURL() string {
	switch m.Site {
	case SiteFurAffinity:
		return fmt.Sprintf("https://www.furaffinity.net/view/%d/", m.SiteID)
	case SiteE621:
		return fmt.Sprintf("https://e621.net/posts/%d", m.SiteID)
	case SiteWeasyl:
		return fmt.Sprintf("https://www.weasyl.com/submission/%d/", m.SiteID)
	case SiteTwitter:
		return m.URL
	default:
		return m.URL
	}
}

// SiteName returns the human readable name of the matched site.
func (m Match) SiteName() string {
	if m.Site == "" {
		return "unknown"
	}
	return m.Site
}

const (
	SiteFurAffinity = "FurAffinity"
	SiteE621        = "e621"
	SiteWeasyl      = "Weasyl"
	SiteTwitter     = "Twitter"
)
