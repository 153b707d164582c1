// Package aggregate filters census rows and sums their assets by a grouping key.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-cli/internal/model"
)

// Result maps a grouping key value to the summed assets of its rows.
// Iteration order is undefined; use Keys for a stable order.
type Result map[string]int64

// Keys returns the result keys in ascending order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total returns the sum over all keys.
func (r Result) Total() int64 {
	var n int64
	for _, v := range r {
		n += v
	}
	return n
}

// Sum groups rows by key and sums their assets. Empty input yields an empty
// Result. Grouping by the asset field itself is rejected.
func Sum[T model.Valuer](rows []T, key model.Field) (Result, error) {
	if key == model.FieldAsset {
		return nil, eris.New("aggregate: cannot group by asset")
	}

	out := make(Result)
	for _, r := range rows {
		k, ok := r.Value(key)
		if !ok {
			return nil, eris.Errorf("aggregate: rows have no %s field", key)
		}
		out[k] += r.AssetValue()
	}
	return out, nil
}
