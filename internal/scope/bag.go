package scope

import (
	"fmt"
	"sort"
)

// Bag is a nested key-value container. Handler-written values are int64,
// string, or Bag; derived attributes may also store float64 and bool.
type Bag map[string]any

// NewBag returns an empty bag.
func NewBag() Bag {
	return make(Bag)
}

// Set stores a scalar or nested value under key, overwriting what was there.
func (b Bag) Set(key string, value any) {
	b[key] = normalize(value)
}

// Int returns the integer stored under key.
func (b Bag) Int(key string) (int64, bool) {
	v, ok := b[key].(int64)
	return v, ok
}

// String returns the string stored under key.
func (b Bag) String(key string) (string, bool) {
	v, ok := b[key].(string)
	return v, ok
}

// Lookup returns the nested bag under key, or nil when absent or not a bag.
func (b Bag) Lookup(key string) Bag {
	v, _ := b[key].(Bag)
	return v
}

// Sub returns the nested bag under key, creating it when absent.
// A scalar already stored under key is replaced by the new bag.
func (b Bag) Sub(key string) Bag {
	if sub, ok := b[key].(Bag); ok {
		return sub
	}
	sub := NewBag()
	b[key] = sub
	return sub
}

// Delete removes key.
func (b Bag) Delete(key string) {
	delete(b, key)
}

// Merge folds src into b. Nested bags present on both sides are merged
// recursively; any other value in src overwrites the one in b.
func (b Bag) Merge(src Bag) {
	for k, v := range src {
		if srcSub, ok := v.(Bag); ok {
			if dstSub, ok := b[k].(Bag); ok {
				dstSub.Merge(srcSub)
				continue
			}
			b[k] = srcSub.Clone()
			continue
		}
		b[k] = v
	}
}

// Clone returns a deep copy.
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		if sub, ok := v.(Bag); ok {
			out[k] = sub.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// Empty reports whether the bag holds no keys.
func (b Bag) Empty() bool {
	return len(b) == 0
}

// Keys returns the keys in sorted order.
func (b Bag) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten returns the leaves of the bag keyed by dot-joined paths.
func (b Bag) Flatten() map[string]any {
	out := make(map[string]any)
	b.flatten("", out)
	return out
}

func (b Bag) flatten(prefix string, out map[string]any) {
	for k, v := range b {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(Bag); ok {
			sub.flatten(key, out)
			continue
		}
		out[key] = v
	}
}

// Map converts the bag into plain nested maps, for encoders and expression
// environments that do not know the Bag type.
func (b Bag) Map() map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		if sub, ok := v.(Bag); ok {
			out[k] = sub.Map()
			continue
		}
		out[k] = v
	}
	return out
}

// normalize folds the integer kinds handlers commonly produce into int64 and
// plain maps into bags, so readers only ever see three value kinds.
func normalize(value any) any {
	switch v := value.(type) {
	case int64, string, Bag:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case map[string]any:
		out := make(Bag, len(v))
		for k, inner := range v {
			out[k] = normalize(inner)
		}
		return out
	case bool, float64:
		return v
	default:
		return fmt.Sprint(v)
	}
}
