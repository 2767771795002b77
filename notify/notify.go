// Package notify decides which shows have not been announced yet.
package notify

import (
	"encoding/json"
	"fmt"
	"sort"

	"showcheck/pkg/shows"
)

// Set is the set of identity keys already announced to the user.
// The zero value is an empty set.
type Set struct {
	keys map[string]struct{}
}

// NewSet returns a set holding the given persisted keys.
func NewSet(keys ...string) Set {
	s := Set{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Has reports whether the key has been announced.
func (s Set) Has(k shows.Key) bool {
	_, ok := s.keys[k.String()]
	return ok
}

// Len returns the number of announced keys.
func (s Set) Len() int {
	return len(s.keys)
}

// Keys returns the persisted key strings in sorted order.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	return NewSet(s.Keys()...)
}

type document struct {
	Notified []string `json:"notified"`
}

// MarshalJSON encodes the set as {"notified": [...]} with sorted keys.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{Notified: s.Keys()})
}

// UnmarshalJSON decodes the {"notified": [...]} form.
func (s *Set) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode notified set: %w", err)
	}
	*s = NewSet(doc.Notified...)
	return nil
}

// SelectNew returns the catalog shows whose identity key is not in notified,
// in catalog order, along with a copy of notified extended by those keys.
// The input set is never modified; callers persist the returned set only
// once the fresh shows were delivered.
func SelectNew(catalog shows.Catalog, notified Set) ([]shows.Show, Set) {
	updated := notified.Clone()
	var fresh []shows.Show
	for _, s := range catalog.All() {
		key := s.Key()
		if updated.Has(key) {
			continue
		}
		updated.keys[key.String()] = struct{}{}
		fresh = append(fresh, s)
	}
	return fresh, updated
}

// Clear returns an empty set, forcing every current show to be announced again.
func Clear() Set {
	return NewSet()
}
