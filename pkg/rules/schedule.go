package rules

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 6-field expressions (seconds first). User YAML uses
// standard 5-field cron; normalizeCron prepends the seconds field.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// normalizeCron converts a 5-field expression to 6-field by prepending
// "0" for seconds. Expressions already carrying six fields (or anything
// non-standard) pass through unchanged.
func normalizeCron(expr string) string {
	trimmed := strings.TrimSpace(expr)
	if len(strings.Fields(trimmed)) == 5 {
		return "0 " + trimmed
	}
	return trimmed
}

func parseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// isCronDue reports whether a scheduled instant has arrived: the first
// tick strictly after lastRun (or after now-24h when never triggered)
// must be at or before now.
func isCronDue(schedule cron.Schedule, now time.Time, lastRun time.Time) bool {
	checkFrom := lastRun
	if checkFrom.IsZero() {
		checkFrom = now.Add(-24 * time.Hour)
	}
	next := schedule.Next(checkFrom)
	return !next.IsZero() && !next.After(now)
}

// ParseCooldown parses a human-readable duration: a concatenation of
// Nd/Nh/Nm/Ns components ("2h30m", "1d12h", "90s"). A bare number is
// seconds only when no unit appears at all. Returns ok=false for empty
// or malformed input.
func ParseCooldown(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var totalSecs uint64
	var numBuf strings.Builder
	foundUnit := false

	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			numBuf.WriteRune(ch)
			continue
		}
		if numBuf.Len() == 0 {
			return 0, false
		}
		n, ok := parseUint(numBuf.String())
		if !ok {
			return 0, false
		}
		numBuf.Reset()
		switch ch {
		case 'd':
			totalSecs += n * 86_400
		case 'h':
			totalSecs += n * 3_600
		case 'm':
			totalSecs += n * 60
		case 's':
			totalSecs += n
		default:
			return 0, false
		}
		foundUnit = true
	}

	if numBuf.Len() > 0 {
		if foundUnit {
			// Trailing digits after a unit ("30m15") are ambiguous.
			return 0, false
		}
		n, ok := parseUint(numBuf.String())
		if !ok {
			return 0, false
		}
		totalSecs += n
	}

	if totalSecs == 0 && !foundUnit {
		return 0, false
	}
	return time.Duration(totalSecs) * time.Second, true
}

func parseUint(s string) (uint64, bool) {
	var n uint64
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + uint64(ch-'0')
	}
	return n, true
}

// ScheduleEntry is the per-rule scheduling state.
type ScheduleEntry struct {
	RuleID         string
	CronExpression string
	Timezone       string
	Cooldown       time.Duration
	HasCooldown    bool
	LastTriggered  time.Time
	Enabled        bool
}

// RuleScheduler tracks scheduling state for all loaded rules. Call
// SyncRules whenever the rule set changes (hot reload); call DueRules
// from the tick loop to find rules that should execute. Cron decides
// whether a scheduled instant has arrived; cooldown decides whether the
// rule may trigger again. Both must pass.
type RuleScheduler struct {
	entries map[string]*ScheduleEntry
}

// NewRuleScheduler creates an empty scheduler.
func NewRuleScheduler() *RuleScheduler {
	return &RuleScheduler{entries: make(map[string]*ScheduleEntry)}
}

// SyncRules reconciles entries with the loaded rules: new rules gain
// entries, changed rules update cron/cooldown/enabled while preserving
// LastTriggered, removed rules drop out.
func (s *RuleScheduler) SyncRules(rules []AnomalyRule) {
	current := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		current[r.Metadata.ID] = struct{}{}
	}
	for id := range s.entries {
		if _, ok := current[id]; !ok {
			delete(s.entries, id)
		}
	}

	for _, rule := range rules {
		id := rule.Metadata.ID
		cronExpr := normalizeCron(rule.Schedule.Cron)
		cooldown, hasCooldown := ParseCooldown(rule.Schedule.Cooldown)

		if entry, ok := s.entries[id]; ok {
			entry.CronExpression = cronExpr
			entry.Timezone = rule.Schedule.Timezone
			entry.Cooldown = cooldown
			entry.HasCooldown = hasCooldown
			entry.Enabled = rule.Metadata.Enabled
			continue
		}
		s.entries[id] = &ScheduleEntry{
			RuleID:         id,
			CronExpression: cronExpr,
			Timezone:       rule.Schedule.Timezone,
			Cooldown:       cooldown,
			HasCooldown:    hasCooldown,
			Enabled:        rule.Metadata.Enabled,
		}
	}
}

// ShouldRun reports whether a rule should run at the given instant.
// False for unknown or disabled rules, while the cooldown holds, when
// the cron expression is invalid, or when no scheduled instant has
// arrived since the last trigger.
func (s *RuleScheduler) ShouldRun(ruleID string, now time.Time) bool {
	entry, ok := s.entries[ruleID]
	if !ok || !entry.Enabled {
		return false
	}

	// Cooldown first; it is cheaper than a cron parse and binding
	// regardless of the cron expression.
	if entry.HasCooldown && !entry.LastTriggered.IsZero() {
		if now.Sub(entry.LastTriggered) < entry.Cooldown {
			return false
		}
	}

	schedule, err := parseCron(entry.CronExpression)
	if err != nil {
		slog.Warn("invalid cron expression",
			"rule", ruleID, "cron", entry.CronExpression, "err", err)
		return false
	}
	return isCronDue(schedule, now, entry.LastTriggered)
}

// RecordTrigger marks a rule as triggered now.
func (s *RuleScheduler) RecordTrigger(ruleID string) {
	s.RecordTriggerAt(ruleID, time.Now().UTC())
}

// RecordTriggerAt marks a rule as triggered at a specific instant.
func (s *RuleScheduler) RecordTriggerAt(ruleID string, at time.Time) {
	if entry, ok := s.entries[ruleID]; ok {
		entry.LastTriggered = at
	}
}

// DueRules returns the IDs of all rules that should run now, sorted for
// determinism.
func (s *RuleScheduler) DueRules(now time.Time) []string {
	var due []string
	for id := range s.entries {
		if s.ShouldRun(id, now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due
}

// Entry returns the scheduling state for a rule.
func (s *RuleScheduler) Entry(ruleID string) (ScheduleEntry, bool) {
	e, ok := s.entries[ruleID]
	if !ok {
		return ScheduleEntry{}, false
	}
	return *e, true
}

// Len returns the number of tracked rules.
func (s *RuleScheduler) Len() int { return len(s.entries) }
