package envelope

import (
	"sort"
	"strings"
)

// DefaultDestinationPrefixes are stripped from a routing key before the
// consistency check.
var DefaultDestinationPrefixes = []string{
	"/exchange/ph.control/",
	"/exchange/",
	"/topic/",
	"/queue/",
}

// ExpectedPrefix returns the routing-key prefix an envelope of kind/type must carry.
func ExpectedPrefix(kind Kind, typ string) (string, bool) {
	switch kind {
	case KindSignal:
		return "signal." + typ + ".", true
	case KindOutcome:
		return "event.outcome." + typ + ".", true
	case KindMetric:
		return "event.metric." + typ + ".", true
	case KindEvent:
		return "event.alert." + typ + ".", true
	default:
		return "", false
	}
}

// prefixStripper removes the longest matching destination prefix.
type prefixStripper []string

func newPrefixStripper(prefixes []string) prefixStripper {
	sorted := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return sorted
}

func (p prefixStripper) strip(routingKey string) string {
	for _, prefix := range p {
		if strings.HasPrefix(routingKey, prefix) {
			return routingKey[len(prefix):]
		}
	}
	return routingKey
}
