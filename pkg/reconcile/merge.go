package reconcile

import (
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Policy selects how an import batch is applied to a stored collection.
type Policy string

const (
	// PolicyReplace discards the stored collection in favour of the batch.
	PolicyReplace Policy = "replace"
	// PolicyMerge updates matching records by code and appends the rest.
	PolicyMerge Policy = "merge"
)

// ParsePolicy reads a policy name, falling back to def for anything else.
func ParsePolicy(s string, def Policy) Policy {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReplace:
		return PolicyReplace
	case PolicyMerge:
		return PolicyMerge
	default:
		return def
	}
}

// MergeOptions tunes Merge for one collection.
type MergeOptions struct {
	Policy Policy
	// AllowUnkeyed keeps incoming rows without a code as distinct records.
	// Without it they are dropped and counted as skipped.
	AllowUnkeyed bool
	// Sticky fields keep their stored value when the incoming value is empty.
	Sticky []string
	// IDPrefix is used to mint ids for records that lack a unique one.
	IDPrefix string
}

// Counts summarizes the effect of one import.
type Counts struct {
	Imported int `json:"imported"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Merge applies incoming to existing under opts.Policy and returns the new
// collection. Neither input slice nor its records are modified.
func Merge(existing, incoming []*registry.Record, opts MergeOptions) ([]*registry.Record, Counts) {
	batch, skipped := dedupe(incoming, opts.AllowUnkeyed)
	counts := Counts{Imported: len(batch), Skipped: skipped}

	if opts.Policy == PolicyReplace {
		out := make([]*registry.Record, 0, len(batch))
		for _, r := range batch {
			out = append(out, r.Clone())
		}
		registry.EnsureIDs(out, opts.IDPrefix)
		counts.Created = len(out)
		return out, counts
	}

	out := make([]*registry.Record, 0, len(existing)+len(batch))
	byCode := make(map[string]int, len(existing))
	for _, r := range existing {
		if code := r.Code(); code != "" {
			if _, seen := byCode[code]; !seen {
				byCode[code] = len(out)
			}
		}
		out = append(out, r.Clone())
	}

	for _, inc := range batch {
		code := inc.Code()
		idx, found := byCode[code]
		if code == "" || !found {
			if code != "" {
				byCode[code] = len(out)
			}
			out = append(out, inc.Clone())
			counts.Created++
			continue
		}

		cur := out[idx]
		merged := cur.Clone()
		merged.Merge(inc)
		for _, field := range opts.Sticky {
			if inc.Text(field) == "" && cur.Text(field) != "" {
				v, _ := cur.Get(field)
				merged.Set(field, v)
			}
		}
		if id := cur.ID(); id != "" {
			merged.Set(registry.FieldID, id)
		}
		out[idx] = merged
		counts.Updated++
	}

	registry.EnsureIDs(out, opts.IDPrefix)
	return out, counts
}

// dedupe collapses rows sharing a code. The surviving row takes the place of
// the first occurrence and the content of the last.
func dedupe(rows []*registry.Record, allowUnkeyed bool) ([]*registry.Record, int) {
	out := make([]*registry.Record, 0, len(rows))
	pos := make(map[string]int, len(rows))
	skipped := 0
	for _, r := range rows {
		if r == nil {
			continue
		}
		code := r.Code()
		if code == "" {
			if !allowUnkeyed {
				skipped++
				continue
			}
			out = append(out, r)
			continue
		}
		if i, ok := pos[code]; ok {
			out[i] = r
			continue
		}
		pos[code] = len(out)
		out = append(out, r)
	}
	return out, skipped
}
