// Package prefixspan mines frequent ordered event-code subsequences from
// per-member event streams and classifies the resulting temporal
// patterns. Event types are first compressed into short codes so mined
// sequences stay readable ("L" → login, "G:Starburs" → game open).
package prefixspan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Category classifies a discovered temporal pattern.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryChurn
	CategoryEngagement
	CategoryErrorChain
	CategoryFunnel
)

func (c Category) String() string {
	switch c {
	case CategoryChurn:
		return "Churn"
	case CategoryEngagement:
		return "Engagement"
	case CategoryErrorChain:
		return "ErrorChain"
	case CategoryFunnel:
		return "Funnel"
	}
	return "Unknown"
}

// ParseCategory maps the string form (as used in PatternConfig YAML) to
// a Category; unrecognized strings map to Unknown.
func ParseCategory(s string) Category {
	switch s {
	case "Churn":
		return CategoryChurn
	case "Engagement":
		return CategoryEngagement
	case "ErrorChain":
		return CategoryErrorChain
	case "Funnel":
		return CategoryFunnel
	}
	return CategoryUnknown
}

// Pattern is a frequent temporal pattern discovered by Mine.
type Pattern struct {
	ID              string
	Sequence        []string
	Support         float64
	MemberCount     int
	AvgDurationSecs float64
	FirstSeen       time.Time
	Category        Category
	Description     string
}

// Config bounds the mining run.
type Config struct {
	// MinSupport is the minimum fraction of members exhibiting a pattern.
	MinSupport float64
	// MaxLength caps mined sequence length.
	MaxLength int
	// MinMembers is the minimum absolute member count for a pattern.
	MinMembers int
}

// DefaultConfig returns the standard mining parameters.
func DefaultConfig() Config {
	return Config{MinSupport: 0.01, MaxLength: 10, MinMembers: 50}
}

// Sequence is one member's ordered event-code stream.
type Sequence struct {
	MemberKey string
	Codes     []string
	// Timestamps parallel to Codes; used for duration estimates. May be
	// nil when durations are not needed.
	Times []time.Time
}

// Mine runs PrefixSpan over the member sequences and returns patterns
// meeting both the support fraction and the absolute member floor,
// ordered by support descending. A pattern's support counts each member
// at most once regardless of repeats.
func Mine(sequences []Sequence, cfg Config) []Pattern {
	if len(sequences) == 0 || cfg.MaxLength <= 0 {
		return nil
	}
	minCount := int(cfg.MinSupport * float64(len(sequences)))
	if minCount < cfg.MinMembers {
		minCount = cfg.MinMembers
	}
	if minCount < 1 {
		minCount = 1
	}

	// Projected database: per sequence, the position after the matched
	// prefix.
	type projection struct {
		seq int
		pos int
	}
	all := make([]projection, len(sequences))
	for i := range sequences {
		all[i] = projection{seq: i, pos: 0}
	}

	var results []Pattern
	var grow func(prefix []string, db []projection)
	grow = func(prefix []string, db []projection) {
		if len(prefix) >= cfg.MaxLength {
			return
		}

		// Count each extension item once per member.
		counts := make(map[string]int)
		for _, p := range db {
			seen := make(map[string]struct{})
			for _, code := range sequences[p.seq].Codes[p.pos:] {
				if _, dup := seen[code]; !dup {
					seen[code] = struct{}{}
					counts[code]++
				}
			}
		}

		items := make([]string, 0, len(counts))
		for code, count := range counts {
			if count >= minCount {
				items = append(items, code)
			}
		}
		sort.Strings(items)

		for _, code := range items {
			var next []projection
			durations := 0.0
			durationSamples := 0
			var firstSeen time.Time

			for _, p := range db {
				seq := sequences[p.seq]
				for j := p.pos; j < len(seq.Codes); j++ {
					if seq.Codes[j] != code {
						continue
					}
					next = append(next, projection{seq: p.seq, pos: j + 1})
					if len(seq.Times) > j {
						if firstSeen.IsZero() || seq.Times[j].Before(firstSeen) {
							firstSeen = seq.Times[j]
						}
						// Span from the sequence start to this match.
						if len(seq.Times) > 0 {
							durations += seq.Times[j].Sub(seq.Times[0]).Seconds()
							durationSamples++
						}
					}
					break
				}
			}

			pattern := append(append([]string(nil), prefix...), code)
			avgDuration := 0.0
			if durationSamples > 0 {
				avgDuration = durations / float64(durationSamples)
			}
			if firstSeen.IsZero() {
				firstSeen = time.Now().UTC()
			}

			results = append(results, Pattern{
				ID:              uuid.NewString(),
				Sequence:        pattern,
				Support:         float64(len(next)) / float64(len(sequences)),
				MemberCount:     len(next),
				AvgDurationSecs: avgDuration,
				FirstSeen:       firstSeen,
			})
			grow(pattern, next)
		}
	}
	grow(nil, all)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Support != results[j].Support {
			return results[i].Support > results[j].Support
		}
		return fmt.Sprint(results[i].Sequence) < fmt.Sprint(results[j].Sequence)
	})
	return results
}
