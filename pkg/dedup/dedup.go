// Package dedup filters already-seen comments out of a fetched page.
package dedup

import (
	"sort"

	"ttscraper/pkg/models"
)

// Set is the collection of item ids accepted so far for one target.
type Set map[string]struct{}

// NewSet builds a Set from persisted ids.
func NewSet(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id was seen.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Remove deletes ids from the set.
func (s Set) Remove(ids ...string) {
	for _, id := range ids {
		delete(s, id)
	}
}

// IDs returns the ids sorted, for stable checkpoint files.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FilterNew returns the items of batch whose id is not in seen, in page
// order, and the number dropped. seen is updated with every accepted id.
// Items without an id are dropped and counted.
func FilterNew(batch []models.Item, seen Set) ([]models.Item, int) {
	newItems := make([]models.Item, 0, len(batch))
	duplicates := 0

	for _, item := range batch {
		id := item.ID()
		if id == "" || seen.Has(id) {
			duplicates++
			continue
		}
		seen[id] = struct{}{}
		newItems = append(newItems, item)
	}

	return newItems, duplicates
}
