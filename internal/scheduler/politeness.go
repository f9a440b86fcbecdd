package scheduler

import "time"

// Politeness is the aggregate of per-domain interval, per-domain cap,
// and robots-compliance constraints a pipeline run must respect.
type Politeness struct {
	MinDomainInterval       time.Duration `yaml:"min_domain_interval"`
	MaxDomainRequestsPerRun int           `yaml:"max_domain_requests_per_run"`
	MaxSourcesPerRun        int           `yaml:"max_sources_per_run"`
	MaxTotalRequestsPerRun  int           `yaml:"max_total_requests_per_run"`
	CheckJitterMinutes      int           `yaml:"check_jitter_minutes"`
	CrawlerDelaySeconds     float64       `yaml:"crawler_delay_seconds"`
	RespectRobotsCrawlDelay bool          `yaml:"respect_robots_crawl_delay"`
}

// DefaultPoliteness mirrors the defaults carried by every pipeline run
// unless overridden by configuration.
func DefaultPoliteness() Politeness {
	return Politeness{
		MinDomainInterval:       2 * time.Second,
		MaxDomainRequestsPerRun: 10,
		MaxSourcesPerRun:        20,
		MaxTotalRequestsPerRun:  100,
		CheckJitterMinutes:      60,
		CrawlerDelaySeconds:     1.0,
		RespectRobotsCrawlDelay: true,
	}
}

// CheckIntervals maps update frequency to its base re-check interval.
var CheckIntervals = map[string]time.Duration{
	"frequent": 6 * time.Hour,
	"daily":    24 * time.Hour,
	"weekly":   7 * 24 * time.Hour,
	"monthly":  30 * 24 * time.Hour,
	"unknown":  7 * 24 * time.Hour,
}

// GetCheckInterval looks up the base interval for a frequency label,
// falling back to the "unknown" interval for anything unrecognized.
func GetCheckInterval(frequency string) time.Duration {
	if d, ok := CheckIntervals[frequency]; ok {
		return d
	}
	return CheckIntervals["unknown"]
}
