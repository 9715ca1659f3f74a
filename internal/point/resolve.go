package point

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard is the reserved placeholder matching any single topic segment.
// "devices/Campus/Building1/-/ZoneTemperature" addresses that point on every
// unit under Building1.
const Wildcard = "-"

// Resolve expands topic selectors plus an optional regex into the concrete
// set of matching points.
//
// Each selector is resolved independently and the results unioned:
//   - A selector containing a wildcard segment matches any point whose path
//     has the same number of segments, with every non-wildcard segment equal.
//   - A selector naming a container (a path prefix above the point level)
//     expands to every point underneath it.
//   - A selector naming a point exactly matches that point.
//
// With no selectors, the working set is every registered point. If pattern is
// non-empty, the working set is filtered to paths matching it.
//
// Resolution is pure: it touches nothing but the registry's immutable
// topic index, so it is safe to call from any goroutine.
func (r *Registry) Resolve(selectors []string, pattern string) ([]*Point, error) {
	var working []*Point

	if len(selectors) == 0 {
		working = append(working, r.points...)
	} else {
		seen := make(map[string]struct{})
		for _, sel := range selectors {
			for _, p := range r.resolveOne(sel) {
				if _, dup := seen[p.Topic]; dup {
					continue
				}
				seen[p.Topic] = struct{}{}
				working = append(working, p)
			}
		}
	}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
		filtered := working[:0]
		for _, p := range working {
			if re.MatchString(p.Topic) {
				filtered = append(filtered, p)
			}
		}
		working = filtered
	}

	return working, nil
}

// resolveOne expands a single topic selector.
func (r *Registry) resolveOne(selector string) []*Point {
	topic := EquipmentID(selector)

	if strings.Contains(topic, "/"+Wildcard+"/") ||
		strings.HasSuffix(topic, "/"+Wildcard) || topic == Wildcard {
		return r.matchWildcard(topic)
	}

	// Exact point match.
	if p, ok := r.byTopic[topic]; ok {
		return []*Point{p}
	}

	// Container prefix: every point beneath it.
	var matches []*Point
	prefix := topic + "/"
	for _, p := range r.points {
		if strings.HasPrefix(p.Topic, prefix) {
			matches = append(matches, p)
		}
	}
	return matches
}

// matchWildcard matches a selector whose segments may include the wildcard
// placeholder. All non-wildcard segments are fixed literally and the segment
// count must equal the point's.
func (r *Registry) matchWildcard(topic string) []*Point {
	want := strings.Split(topic, "/")

	var matches []*Point
	for _, p := range r.points {
		have := strings.Split(p.Topic, "/")
		if len(have) != len(want) {
			continue
		}
		ok := true
		for i, seg := range want {
			if seg != Wildcard && seg != have[i] {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, p)
		}
	}
	return matches
}
