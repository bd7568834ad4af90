package aggregate

import (
	"fmt"
	"sort"
)

// Row is a single untyped input record at the aggregation input
// boundary — the only place a dict view of scoring data is permitted
// (per the Design Notes' "duck-typed evidence" redesign: dict<->record
// conversion happens only at the serialization boundary, never inside
// the cascade itself).
type Row map[string]any

// RequiredColumns declares the columns an aggregator needs present in
// every Row before it will aggregate. Declarative by design — callers
// configure this per aggregation stage rather than the aggregator
// hard-coding column names internally.
type RequiredColumns []string

// Validate checks that every row in rows carries every column in rc.
// The first missing column across the first offending row is named in
// the returned error; no row is silently skipped.
func (rc RequiredColumns) Validate(rows []Row) error {
	for i, row := range rows {
		for _, col := range rc {
			if _, ok := row[col]; !ok {
				return fmt.Errorf("%w: row %d missing required column %q", ErrValidation, i, col)
			}
		}
	}
	return nil
}

// GroupSpec declares how rows are partitioned before folding: the
// ordered list of columns whose values jointly form a group key.
// GroupBy never hard-codes "policy_area" or "dimension" — callers
// supply the keys appropriate to the tier being aggregated.
type GroupSpec struct {
	GroupByKeys RequiredColumns
}

// GroupKey computes the group key for row as the ordered join of
// row[col] for each col in spec.GroupByKeys.
func (spec GroupSpec) GroupKey(row Row) (string, error) {
	if err := spec.GroupByKeys.Validate([]Row{row}); err != nil {
		return "", err
	}
	parts := make([]string, len(spec.GroupByKeys))
	for i, col := range spec.GroupByKeys {
		parts[i] = fmt.Sprintf("%v", row[col])
	}
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "|"
		}
		key += p
	}
	return key, nil
}

// GroupRows partitions rows by spec.GroupByKeys, returning groups in
// lexicographic key order for deterministic downstream processing.
func (spec GroupSpec) GroupRows(rows []Row) (map[string][]Row, []string, error) {
	groups := make(map[string][]Row)
	for _, row := range rows {
		key, err := spec.GroupKey(row)
		if err != nil {
			return nil, nil, err
		}
		groups[key] = append(groups[key], row)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return groups, keys, nil
}
