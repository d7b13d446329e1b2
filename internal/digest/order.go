package digest

import (
	"sort"
	"time"

	"github.com/deusflow/newswatch/internal/models"
)

// SortByRecency sorts items newest first. Undated items count as now, so
// they sort ahead of anything dated in the past. Ties keep their order.
func SortByRecency(items []models.NewsItem, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortTime(now).After(items[j].SortTime(now))
	})
}

// CapPerCompany keeps at most max items per company, walking items in
// order. The market sentinel is capped like any other company.
func CapPerCompany(items []models.NewsItem, max int) (kept []models.NewsItem, dropped int) {
	counts := make(map[string]int)
	kept = make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		counts[item.Company]++
		if counts[item.Company] > max {
			dropped++
			continue
		}
		kept = append(kept, item)
	}
	return kept, dropped
}
