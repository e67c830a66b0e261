package service

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/batchdesk/internal/domain/batch/repository"
)

// filterEntries keeps entries whose "item number + description" contains the query
// characters in order (case and accent insensitive), closest matches first.
func filterEntries(entries []*repository.Entry, query string) []*repository.Entry {
	query = strings.TrimSpace(query)
	if query == "" {
		return entries
	}

	targets := make([]string, len(entries))
	for i, e := range entries {
		targets[i] = e.ItemNumber + " " + e.Description
	}

	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	matched := make([]*repository.Entry, 0, len(ranks))
	for _, r := range ranks {
		matched = append(matched, entries[r.OriginalIndex])
	}
	return matched
}
