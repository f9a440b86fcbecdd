// Package scheduler implements the domain-aware scheduler (component
// F): priority ordering, per-domain fairness, per-run caps, jittered
// next-check scheduling, and exponential backoff on failures.
package scheduler

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/terrencegiggy/content-pipeline/internal/urlcanon"
	"golang.org/x/time/rate"
)

// Action is why a source is being scheduled.
type Action string

const (
	ActionInitial Action = "initial"
	ActionCheck   Action = "check"
)

// ScheduledSource pairs a source with the action to take and its
// computed priority (lower dispatches first).
type ScheduledSource struct {
	Source   *types.SourceEntry
	Action   Action
	Priority float64
	Domain   string
}

// FromSource computes a ScheduledSource's priority per §4.F: initial
// action outweighs everything (-100); source type contributes -50
// (primary), -25 (derived), or 0 (reference); overdueness subtracts
// one point per hour past NextCheckAfter.
func FromSource(source *types.SourceEntry, action Action, now time.Time) ScheduledSource {
	priority := 0.0
	if action == ActionInitial {
		priority -= 100
	}
	switch source.Type {
	case types.SourceTypePrimary:
		priority -= 50
	case types.SourceTypeDerived:
		priority -= 25
	case types.SourceTypeReference:
		priority -= 0
	}
	if source.NextCheckAfter != nil && now.After(*source.NextCheckAfter) {
		overdueHours := now.Sub(*source.NextCheckAfter).Hours()
		priority -= overdueHours
	}
	return ScheduledSource{
		Source:   source,
		Action:   action,
		Priority: priority,
		Domain:   urlcanon.Domain(source.URL),
	}
}

// Sleeper is injected into the crawler's politeness delay so it is
// deterministic under test; the scheduler's own per-domain cooldown is
// enforced by rate.Limiter instead (see limiterFor).
type Sleeper func(context.Context, time.Duration)

// DomainScheduler partitions scheduled sources by domain, orders each
// partition by ascending priority, and walks a fair round-robin
// cursor across domains respecting per-run and per-domain caps.
type DomainScheduler struct {
	politeness Politeness

	queues      map[string][]ScheduledSource
	domainOrder []string
	dispatched  map[string]int

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	totalScheduled int
}

// New builds a DomainScheduler.
func New(politeness Politeness) *DomainScheduler {
	return &DomainScheduler{
		politeness: politeness,
		queues:     make(map[string][]ScheduledSource),
		dispatched: make(map[string]int),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// AddSources partitions sources by domain and sorts each partition by
// ascending priority (lower first).
func (s *DomainScheduler) AddSources(sources []ScheduledSource) {
	for _, sc := range sources {
		if _, seen := s.queues[sc.Domain]; !seen {
			s.domainOrder = append(s.domainOrder, sc.Domain)
		}
		s.queues[sc.Domain] = append(s.queues[sc.Domain], sc)
	}
	for domain := range s.queues {
		q := s.queues[domain]
		sort.SliceStable(q, func(i, j int) bool { return q[i].Priority < q[j].Priority })
		s.queues[domain] = q
	}
}

// TotalScheduled returns how many sources have been handed out by
// Next so far.
func (s *DomainScheduler) TotalScheduled() int { return s.totalScheduled }

// DomainsWithPending reports how many domains still have queued work.
func (s *DomainScheduler) DomainsWithPending() int {
	n := 0
	for _, domain := range s.domainOrder {
		if len(s.queues[domain]) > 0 {
			n++
		}
	}
	return n
}

// Next returns the next source to dispatch under the fair
// round-robin cursor, or ok=false once the run cap is hit or every
// domain's queue is empty or capped. It does NOT sleep or record the
// cooldown — callers call WaitForDomain before each fetch, which
// waits for and reserves the domain's next slot.
func (s *DomainScheduler) Next() (ScheduledSource, bool) {
	if s.totalScheduled >= s.politeness.MaxSourcesPerRun {
		return ScheduledSource{}, false
	}
	if len(s.domainOrder) == 0 {
		return ScheduledSource{}, false
	}

	for cycle := 0; cycle < len(s.domainOrder); cycle++ {
		domain := s.domainOrder[0]
		s.domainOrder = append(s.domainOrder[1:], domain)

		q := s.queues[domain]
		if len(q) == 0 {
			continue
		}
		if s.dispatched[domain] >= s.politeness.MaxDomainRequestsPerRun {
			continue
		}

		sc := q[0]
		s.queues[domain] = q[1:]
		s.dispatched[domain]++
		s.totalScheduled++
		return sc, true
	}
	return ScheduledSource{}, false
}

// limiterFor returns domain's cooldown limiter, creating one on first
// use: one token, refilled at 1/min_domain_interval — the single
// cooperative worker's "sleep" the politeness model calls for.
func (s *DomainScheduler) limiterFor(domain string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	lim, ok := s.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.politeness.MinDomainInterval), 1)
		s.limiters[domain] = lim
	}
	return lim
}

// WaitForDomain blocks until domain's cooldown token is available,
// per the min-domain-interval constraint. Call this immediately
// before dispatching to domain; the limiter reserves the token at
// this call, so there is nothing left to record once the request
// completes.
func (s *DomainScheduler) WaitForDomain(ctx context.Context, domain string) error {
	return s.limiterFor(domain).Wait(ctx)
}

// CalculateNextCheckWithJitter computes next_check_after for a source
// of the given frequency that just succeeded: now + interval(F) +
// uniform(0, jitter_minutes*60) seconds.
func CalculateNextCheckWithJitter(frequency types.UpdateFrequency, now time.Time, jitterMinutes int, rnd *rand.Rand) time.Time {
	interval := GetCheckInterval(string(frequency))
	jitterSeconds := 0.0
	if jitterMinutes > 0 {
		jitterSeconds = rnd.Float64() * float64(jitterMinutes) * 60
	}
	return now.Add(interval).Add(time.Duration(jitterSeconds * float64(time.Second)))
}

// CalculateBackoffInterval computes the exponential backoff interval
// for a source after a failed check: base_interval * 2^min(failures,
// 20), clamped to maxInterval.
func CalculateBackoffInterval(failures int, baseInterval, maxInterval time.Duration) time.Duration {
	exp := failures
	if exp > 20 {
		exp = 20
	}
	scaled := time.Duration(float64(baseInterval) * math.Pow(2, float64(exp)))
	if scaled > maxInterval {
		return maxInterval
	}
	return scaled
}
