package social

import (
	"sync"
	"time"
)

// EndpointClass groups API endpoints that share one rate-limit bucket
type EndpointClass string

const (
	ClassSearch   EndpointClass = "search"
	ClassTimeline EndpointClass = "timeline"
	ClassLists    EndpointClass = "lists"
	ClassLookup   EndpointClass = "lookup"
)

// Quota is what an API response reports about its bucket
type Quota struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type classLimit struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	known     bool
}

// RateLimits tracks per-endpoint-class remaining quota. Each class has its
// own lock so mutations to a given key are serialized without a global
// bottleneck; the social monitor is the only writer.
type RateLimits struct {
	classes map[EndpointClass]*classLimit
}

// NewRateLimits creates state with every class unknown (treated as ample).
func NewRateLimits() *RateLimits {
	classes := make(map[EndpointClass]*classLimit, 4)
	for _, c := range []EndpointClass{ClassSearch, ClassTimeline, ClassLists, ClassLookup} {
		classes[c] = &classLimit{}
	}
	return &RateLimits{classes: classes}
}

// Observe records the quota reported by an API response.
func (r *RateLimits) Observe(class EndpointClass, q Quota) {
	cl, ok := r.classes[class]
	if !ok {
		return
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.remaining = q.Remaining
	cl.resetAt = q.ResetAt
	cl.known = true
}

// Remaining returns the last observed quota for class. An unobserved class
// reports a large value so the first cycle starts on the full ladder. A past
// reset time also reports full quota; the next observation corrects it.
func (r *RateLimits) Remaining(class EndpointClass) int {
	cl, ok := r.classes[class]
	if !ok {
		return 0
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if !cl.known || (!cl.resetAt.IsZero() && time.Now().After(cl.resetAt)) {
		return 1 << 20
	}
	return cl.remaining
}

// Exhausted reports whether class has no quota left before its reset.
func (r *RateLimits) Exhausted(class EndpointClass) bool {
	return r.Remaining(class) <= 0
}
