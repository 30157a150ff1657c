// Package correlate pairs a baseline measurement with a later one for the
// same named resource.
//
// An init probe stores a baseline with StoreBaseline; the matching final probe
// calls Resolve, which consumes the baseline and records a
// {before, after, diff} bag. The functions know nothing about event names and
// operate on any scope.Bag keyed by resource name.
package correlate

import (
	"strings"

	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// BaselineSuffix is appended to a measurement key to form the transient key
// a baseline is stored under.
const BaselineSuffix = "_before"

// Result is the outcome of Resolve.
type Result struct {
	HasBaseline bool
	Before      int64
	After       int64
	Diff        int64 // After - Before; only meaningful with a baseline
}

// BaselineKey returns the transient key for a measurement.
func BaselineKey(key string) string {
	return key + BaselineSuffix
}

// StoreBaseline records value as the baseline of key for resource.
// A baseline stored earlier and never resolved is overwritten.
func StoreBaseline(ctx scope.Bag, resource, key string, value int64) {
	ctx.Sub(resource).Merge(scope.Bag{BaselineKey(key): value})
}

// Pending reports the unresolved baseline of key for resource, if any.
func Pending(ctx scope.Bag, resource, key string) (int64, bool) {
	res := ctx.Lookup(resource)
	if res == nil {
		return 0, false
	}
	return res.Int(BaselineKey(key))
}

// Baseline is a stored measurement no final probe consumed.
type Baseline struct {
	Resource string
	Key      string
	Value    int64
}

// Unresolved lists the pending baselines in ctx, sorted by resource then key.
func Unresolved(ctx scope.Bag) []Baseline {
	var out []Baseline
	for _, resource := range ctx.Keys() {
		res := ctx.Lookup(resource)
		if res == nil {
			continue
		}
		for _, k := range res.Keys() {
			key, ok := strings.CutSuffix(k, BaselineSuffix)
			if !ok || key == "" {
				continue
			}
			if v, ok := Pending(ctx, resource, key); ok {
				out = append(out, Baseline{Resource: resource, Key: key, Value: v})
			}
		}
	}
	return out
}

// Resolve consumes the baseline of key for resource and records the pair.
//
// With a baseline, the transient key is removed and resource[key] becomes
// {before, after, diff}. Without one, resource[key] becomes {after} and the
// returned Result has HasBaseline unset. Either way the measurement replaces
// any pair recorded for key earlier; other fields of resource are kept.
func Resolve(ctx scope.Bag, resource, key string, after int64) Result {
	res := ctx.Sub(resource)

	before, ok := res.Int(BaselineKey(key))
	if !ok {
		res.Set(key, scope.Bag{"after": after})
		return Result{After: after}
	}

	res.Delete(BaselineKey(key))
	diff := after - before
	res.Set(key, scope.Bag{
		"before": before,
		"after":  after,
		"diff":   diff,
	})

	return Result{
		HasBaseline: true,
		Before:      before,
		After:       after,
		Diff:        diff,
	}
}

// Diff builds the {before, after, diff} bag for a pair that arrives in one
// event.
func Diff(before, after int64) scope.Bag {
	return scope.Bag{
		"before": before,
		"after":  after,
		"diff":   after - before,
	}
}
