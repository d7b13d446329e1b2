package models

import "time"

// MarketCompany is the company key used for market and macro items.
const MarketCompany = "Market"

// Bucket tells company-specific news apart from general market news.
type Bucket string

const (
	BucketCompany Bucket = "company"
	BucketMarket  Bucket = "market"
)

// FeedEntry is one raw entry as returned by a feed source. Any field may be empty.
type FeedEntry struct {
	Title       string
	Link        string
	Summary     string
	Description string
	Published   string
	Updated     string
}

// NewsItem is an entry that survived classification.
type NewsItem struct {
	Company    string
	Title      string
	Link       string
	Summary    string
	Source     string
	Categories []string
	// Date is nil when the entry carried no parsable timestamp.
	Date   *time.Time
	Bucket Bucket
}

// SortTime returns the item date, or now when the date is absent.
func (n NewsItem) SortTime(now time.Time) time.Time {
	if n.Date == nil {
		return now
	}
	return *n.Date
}
