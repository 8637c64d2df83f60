package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stupid-db/stupid-db/pkg/compute/prefixspan"
	"github.com/stupid-db/stupid-db/pkg/entity"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
	"github.com/stupid-db/stupid-db/pkg/segment"
)

// PrefixSpanTask mines frequent event sequences from the sealed
// segments. Documents are grouped per member, compressed into event
// codes, and mined; notable patterns (churn, error chains) become
// insights. Reading every segment is heavy batch work, hence P3.
type PrefixSpanTask struct {
	Store    *segment.Store
	Interval time.Duration
	// Config bounds the mining run; zero value means the defaults.
	Config prefixspan.Config
	// Classifiers, when loaded from a PatternConfig, take precedence
	// over the built-in classification heuristics.
	Classifiers []prefixspan.ClassificationRule

	// seen tracks already-reported pattern sequences so re-mining does
	// not duplicate insights. Executions serialize on the state write
	// lock.
	seen map[string]struct{}
}

func (t *PrefixSpanTask) Name() string                     { return "prefixspan" }
func (t *PrefixSpanTask) Priority() Priority               { return P3 }
func (t *PrefixSpanTask) EstimatedDuration() time.Duration { return time.Minute }

func (t *PrefixSpanTask) config() prefixspan.Config {
	if t.Config == (prefixspan.Config{}) {
		return prefixspan.DefaultConfig()
	}
	return t.Config
}

func (t *PrefixSpanTask) Execute(state *knowledge.State) (Result, error) {
	start := time.Now()
	cfg := t.config()
	if t.seen == nil {
		t.seen = make(map[string]struct{})
	}

	sequences, err := t.memberSequences()
	if err != nil {
		return Result{}, err
	}
	if len(sequences) < cfg.MinMembers {
		return Result{}, &SkippedError{Reason: fmt.Sprintf(
			"not enough member sequences for mining (%d found, need >= %d)",
			len(sequences), cfg.MinMembers)}
	}

	patterns := prefixspan.Mine(sequences, cfg)
	for i := range patterns {
		if len(t.Classifiers) > 0 {
			patterns[i].Category = prefixspan.ClassifyWithRules(patterns[i].Sequence, t.Classifiers)
		} else {
			patterns[i].Category = prefixspan.Classify(patterns[i].Sequence)
		}
	}

	reported := 0
	for _, p := range patterns {
		if p.Category != prefixspan.CategoryChurn && p.Category != prefixspan.CategoryErrorChain {
			continue
		}
		key := strings.Join(p.Sequence, ",")
		if _, ok := t.seen[key]; ok {
			continue
		}
		t.seen[key] = struct{}{}
		reported++

		state.PushInsight(knowledge.Insight{
			ID:    uuid.NewString(),
			Title: fmt.Sprintf("%s pattern: %s", p.Category, key),
			Description: fmt.Sprintf(
				"%d members (%.1f%% support) follow the sequence %s",
				p.MemberCount, p.Support*100, key),
			Severity:  knowledge.SeverityWarning,
			CreatedAt: time.Now().UTC(),
		})
	}

	d := time.Since(start)
	slog.Info("prefixspan mining finished",
		"sequences", len(sequences), "patterns", len(patterns),
		"reported", reported, "duration", d)
	return Result{
		TaskName:       t.Name(),
		Duration:       d,
		ItemsProcessed: len(sequences),
		Summary: fmt.Sprintf("mined %d patterns from %d member sequences",
			len(patterns), len(sequences)),
	}, nil
}

func (t *PrefixSpanTask) ShouldRun(lastRun time.Time, _ *knowledge.State) bool {
	return intervalDue(lastRun, t.Interval)
}

// memberSequences reads every sealed segment and builds one
// time-ordered event-code sequence per member.
func (t *PrefixSpanTask) memberSequences() ([]prefixspan.Sequence, error) {
	type event struct {
		at   time.Time
		code string
	}
	members := make(map[string][]event)

	for _, segID := range t.Store.ListSegments() {
		reader, err := segment.OpenReader(t.Store.DataDir(), segID)
		if err != nil {
			slog.Warn("skipping unreadable segment", "segment", segID, "err", err)
			continue
		}
		for doc, err := range reader.Iter() {
			if err != nil {
				slog.Warn("segment decode aborted", "segment", segID, "err", err)
				break
			}
			member := memberKey(doc)
			if member == "" {
				continue
			}
			members[member] = append(members[member], event{
				at:   doc.Timestamp,
				code: prefixspan.CompressEvent(doc),
			})
		}
		reader.Close()
	}

	sequences := make([]prefixspan.Sequence, 0, len(members))
	for member, events := range members {
		sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })
		seq := prefixspan.Sequence{
			MemberKey: member,
			Codes:     make([]string, len(events)),
			Times:     make([]time.Time, len(events)),
		}
		for i, e := range events {
			seq.Codes[i] = e.code
			seq.Times[i] = e.at
		}
		sequences = append(sequences, seq)
	}
	sort.Slice(sequences, func(i, j int) bool { return sequences[i].MemberKey < sequences[j].MemberKey })
	return sequences, nil
}

func memberKey(doc entity.Document) string {
	if k := doc.FieldString("memberId"); k != "" {
		return k
	}
	return doc.FieldString("username")
}
