package analyzer

import (
	"fmt"
	"math"

	"github.com/solatis/routekeeper/internal/types"
)

// interval is the feasible range of a number key on one path.
type interval struct {
	lo, hi   int64
	exact    *int64
	excluded []int64
}

func newInterval() *interval {
	return &interval{lo: math.MinInt64, hi: math.MaxInt64}
}

func (iv *interval) apply(op types.ComparisonType, n int64) {
	switch op {
	case types.Equal:
		if iv.exact != nil && *iv.exact != n {
			// Two different exact values; an empty range records that.
			iv.lo, iv.hi = 1, 0
			return
		}
		iv.exact = &n
	case types.NotEqual:
		iv.excluded = append(iv.excluded, n)
	case types.GreaterThan:
		if n == math.MaxInt64 {
			iv.lo, iv.hi = 1, 0
			return
		}
		iv.lo = max(iv.lo, n+1)
	case types.GreaterThanEqual:
		iv.lo = max(iv.lo, n)
	case types.LessThan:
		if n == math.MinInt64 {
			iv.lo, iv.hi = 1, 0
			return
		}
		iv.hi = min(iv.hi, n-1)
	case types.LessThanEqual:
		iv.hi = min(iv.hi, n)
	}
}

func (iv *interval) feasible() bool {
	if iv.lo > iv.hi {
		return false
	}
	if iv.exact != nil {
		e := *iv.exact
		if e < iv.lo || e > iv.hi {
			return false
		}
		for _, x := range iv.excluded {
			if x == e {
				return false
			}
		}
		return true
	}
	// A single remaining value can still be excluded.
	if iv.lo == iv.hi {
		for _, x := range iv.excluded {
			if x == iv.lo {
				return false
			}
		}
	}
	return true
}

// conflicts reports assertions on one path that no request can satisfy
// together: two different exact values of one key, an exact value that is
// also excluded, or an empty number range.
func conflicts(cond types.IfCondition) error {
	exact := make(map[string]string)
	excluded := make(map[string]bool)
	ranges := make(map[string]*interval)

	slot := func(lhs, id string) string { return lhs + "\x00" + id }

	for _, cmp := range cond {
		v := cmp.Value
		switch v.Kind {
		case types.KindNumber:
			iv := ranges[cmp.LHS]
			if iv == nil {
				iv = newInterval()
				ranges[cmp.LHS] = iv
			}
			iv.apply(cmp.Comparison, v.Number)
			continue
		case types.KindNumberComparisonArray:
			iv := ranges[cmp.LHS]
			if iv == nil {
				iv = newInterval()
				ranges[cmp.LHS] = iv
			}
			for _, nc := range v.NumberComparisons {
				iv.apply(nc.Type, nc.Number)
			}
			continue
		}

		var key, val string
		switch v.Kind {
		case types.KindEnumVariant:
			key, val = cmp.LHS, v.Enum
		case types.KindStrValue:
			key, val = cmp.LHS, v.Str
		case types.KindMetadataVariant:
			key, val = slot(cmp.LHS, v.Metadata.Key), v.Metadata.Value
		default:
			continue
		}

		switch cmp.Comparison {
		case types.Equal:
			if prev, ok := exact[key]; ok && prev != val {
				return fmt.Errorf("%w: %s asserted as %q and %q", ErrConflictingAssertions, cmp.LHS, prev, val)
			}
			if excluded[slot(key, val)] {
				return fmt.Errorf("%w: %s asserted and excluded as %q", ErrConflictingAssertions, cmp.LHS, val)
			}
			exact[key] = val
		case types.NotEqual:
			if prev, ok := exact[key]; ok && prev == val {
				return fmt.Errorf("%w: %s asserted and excluded as %q", ErrConflictingAssertions, cmp.LHS, val)
			}
			excluded[slot(key, val)] = true
		}
	}

	for lhs, iv := range ranges {
		if !iv.feasible() {
			return fmt.Errorf("%w: %s has no value satisfying every bound", ErrConflictingAssertions, lhs)
		}
	}
	return nil
}
