package digest

import "github.com/deusflow/newswatch/internal/models"

// Collector accumulates items for one run and drops repeated links.
// The first item seen for a link keeps its company and bucket.
type Collector struct {
	seen       map[string]struct{}
	items      []models.NewsItem
	duplicates int
}

func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

// Add appends item unless its link was already collected.
func (c *Collector) Add(item models.NewsItem) bool {
	if _, dup := c.seen[item.Link]; dup {
		c.duplicates++
		return false
	}
	c.seen[item.Link] = struct{}{}
	c.items = append(c.items, item)
	return true
}

// Items returns the collected items in insertion order.
func (c *Collector) Items() []models.NewsItem {
	return c.items
}

func (c *Collector) Duplicates() int {
	return c.duplicates
}
