// Package anomaly flags statistical deviation of a candidate from a user's history.
package anomaly

import (
	"math"
	"strings"
	"time"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/similarity"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// Config holds the thresholds each anomaly rule fires on.
type Config struct {
	Sigma               float64 // AmountOutlier fires above mean + Sigma*stddev
	FrequencyCount      int     // HighFrequency fires above this many similar entries
	FrequencySimilarity float64
	QuietStart          int // UnusualHour fires for hour < QuietStart
	QuietEnd            int // or hour > QuietEnd
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Sigma:               2,
		FrequencyCount:      5,
		FrequencySimilarity: 0.7,
		QuietStart:          6,
		QuietEnd:            22,
	}
}

// Detector flags anomalies of a candidate against the user's history.
type Detector struct {
	cfg Config
}

// NewDetector fills unset fields of cfg from DefaultConfig.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Sigma <= 0 {
		cfg.Sigma = def.Sigma
	}
	if cfg.FrequencyCount <= 0 {
		cfg.FrequencyCount = def.FrequencyCount
	}
	if cfg.FrequencySimilarity <= 0 {
		cfg.FrequencySimilarity = def.FrequencySimilarity
	}
	if cfg.QuietStart == 0 && cfg.QuietEnd == 0 {
		cfg.QuietStart, cfg.QuietEnd = def.QuietStart, def.QuietEnd
	}
	return &Detector{cfg: cfg}
}

// Detect returns every anomaly kind candidate raises against history. at is
// when the candidate was recorded; its hour is used when no time was parsed.
func (d *Detector) Detect(candidate entity.ParsedFields, history entity.HistoryWindow, at time.Time) entity.AnomalySet {
	flags := entity.AnomalySet{}
	if d.amountOutlier(candidate, history) {
		flags.Add(constants.AmountOutlier)
	}
	if d.unusualHour(candidate, at) {
		flags.Add(constants.UnusualHour)
	}
	if d.highFrequency(candidate, history) {
		flags.Add(constants.HighFrequency)
	}
	if novelMerchant(candidate, history) {
		flags.Add(constants.NovelMerchant)
	}
	return flags
}

func (d *Detector) amountOutlier(c entity.ParsedFields, h entity.HistoryWindow) bool {
	if c.Amount == nil {
		return false
	}
	var xs []float64
	for _, r := range h.Records {
		if r.Fields.Amount != nil {
			xs = append(xs, r.Fields.Amount.InexactFloat64())
		}
	}
	if len(xs) < 2 {
		return false
	}
	mean, sd := meanStddev(xs)
	return c.Amount.InexactFloat64() > mean+d.cfg.Sigma*sd
}

// meanStddev returns the mean and sample standard deviation of xs (len >= 2).
func meanStddev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

func (d *Detector) unusualHour(c entity.ParsedFields, at time.Time) bool {
	hour := at.Hour()
	if c.Time != nil {
		hour = c.Time.Hour
	} else if at.IsZero() {
		return false
	}
	return hour < d.cfg.QuietStart || hour > d.cfg.QuietEnd
}

func (d *Detector) highFrequency(c entity.ParsedFields, h entity.HistoryWindow) bool {
	n := 0
	for _, r := range h.Records {
		if similarity.Similarity(c, r.Fields) >= d.cfg.FrequencySimilarity {
			n++
		}
	}
	return n > d.cfg.FrequencyCount
}

func novelMerchant(c entity.ParsedFields, h entity.HistoryWindow) bool {
	name := strings.TrimSpace(c.MerchantName)
	if name == "" {
		return false
	}
	for _, r := range h.Records {
		if strings.TrimSpace(r.Fields.MerchantName) == name {
			return false
		}
	}
	return true
}

// NearestMerchant returns the known merchant closest to name by edit distance
// (case-insensitive), or "" when history has no merchants.
func NearestMerchant(name string, h entity.HistoryWindow) (string, int) {
	target := []rune(strings.ToLower(strings.TrimSpace(name)))
	best, bestDist := "", -1
	seen := map[string]bool{}
	for _, r := range h.Records {
		m := strings.TrimSpace(r.Fields.MerchantName)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		dist := levenshtein.DistanceForStrings(target, []rune(strings.ToLower(m)), levenshtein.DefaultOptions)
		if bestDist < 0 || dist < bestDist || (dist == bestDist && m < best) {
			best, bestDist = m, dist
		}
	}
	return best, bestDist
}
