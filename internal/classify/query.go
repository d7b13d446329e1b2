package classify

import "github.com/deusflow/newswatch/internal/models"

// Query is a feed search the classifier knows how to judge.
// It is either a CompanyQuery or a MarketQuery.
type Query interface {
	// Terms is the search string sent to the feed source.
	Terms() string
	// Company is the key items from this query are attributed to.
	Company() string
	Bucket() models.Bucket
	isQuery()
}

// CompanyQuery searches for one watchlist company.
type CompanyQuery struct {
	Name string
}

func (q CompanyQuery) Terms() string         { return `"` + q.Name + `"` }
func (q CompanyQuery) Company() string       { return q.Name }
func (q CompanyQuery) Bucket() models.Bucket { return models.BucketCompany }
func (CompanyQuery) isQuery()                {}

// MarketQuery searches for general market news.
type MarketQuery struct {
	Text string
}

func (q MarketQuery) Terms() string         { return q.Text }
func (q MarketQuery) Company() string       { return models.MarketCompany }
func (q MarketQuery) Bucket() models.Bucket { return models.BucketMarket }
func (MarketQuery) isQuery()                {}

// CompanyQueries builds one query per company name.
func CompanyQueries(names []string) []Query {
	qs := make([]Query, 0, len(names))
	for _, n := range names {
		qs = append(qs, CompanyQuery{Name: n})
	}
	return qs
}

// MarketQueries builds the market queries from the rule set.
func MarketQueries(texts []string) []Query {
	qs := make([]Query, 0, len(texts))
	for _, t := range texts {
		qs = append(qs, MarketQuery{Text: t})
	}
	return qs
}
