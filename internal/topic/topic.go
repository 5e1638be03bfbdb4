// Package topic implements the hierarchical topic grammar
// tenant[/subScope]/path... shared by the authorization service, the
// message router and the external bridge.
package topic

import (
	"strings"

	"courier/pkg/errors"
)

// FeedbackSegment is the reserved terminal segment marking a feedback
// channel: traffic from a tenant or sub-scope back to its owner.
const FeedbackSegment = "message"

const Separator = "/"

// routingKeySeparator is the segment separator used by the broker's auth
// plugin callbacks; routing keys map 1:1 onto topic segments.
const routingKeySeparator = "."

// Address is a parsed topic. Tenant is the first segment; whether the second
// segment names a sub-scope is not decidable from syntax alone, so Rest keeps
// every segment after the tenant and the tenant directory promotes the first
// of them to a sub-scope when it resolves.
type Address struct {
	Tenant string
	Rest   []string
}

// Parse splits a raw topic into its tenant segment and remainder. An empty
// tenant segment is rejected; a single-segment topic is a tenant-wide
// feedback channel.
func Parse(raw string) (Address, error) {
	segments := strings.Split(raw, Separator)
	if segments[0] == "" {
		return Address{}, errors.ErrInvalidTopic.WithDetail("topic", raw)
	}

	rest := segments[1:]
	for _, s := range rest {
		if s == "" {
			return Address{}, errors.ErrInvalidTopic.WithDetail("topic", raw)
		}
	}

	return Address{Tenant: segments[0], Rest: rest}, nil
}

// FromRoutingKey parses a broker routing key (.-delimited) as a topic.
func FromRoutingKey(key string) (Address, error) {
	return Parse(strings.ReplaceAll(key, routingKeySeparator, Separator))
}

// String serializes the address back into topic form; it is the inverse of
// Parse for every address Parse accepts.
func (a Address) String() string {
	if len(a.Rest) == 0 {
		return a.Tenant
	}
	return a.Tenant + Separator + strings.Join(a.Rest, Separator)
}

// RoutingKey serializes the address in the broker's .-delimited form.
func (a Address) RoutingKey() string {
	return strings.ReplaceAll(a.String(), Separator, routingKeySeparator)
}

// IsFeedback reports whether the address names a feedback channel: either a
// bare tenant topic or one whose last segment is the reserved marker.
func (a Address) IsFeedback() bool {
	if len(a.Rest) == 0 {
		return true
	}
	return a.Rest[len(a.Rest)-1] == FeedbackSegment
}

// Join builds a topic string from already-resolved segments, skipping empty
// ones. Used when republishing on a derived topic.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, Separator)
}
