package rules_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
	"github.com/stupid-db/stupid-db/pkg/kv"
	"github.com/stupid-db/stupid-db/pkg/rules"
)

const sampleRuleYAML = `
apiVersion: v1
kind: AnomalyRule
metadata:
  id: login-spike
  name: Login spike
  enabled: true
schedule:
  cron: "*/5 * * * *"
  timezone: UTC
  cooldown: 2h30m
detection:
  template: spike
  params:
    feature: login_count
    multiplier: 3.0
filters:
  entity_types: ["Member"]
notifications:
  - kind: webhook
    target: https://example.com/hook
`

func sampleRule(t *testing.T) rules.AnomalyRule {
	t.Helper()
	rule, err := rules.ParseAnomalyRule([]byte(sampleRuleYAML))
	if err != nil {
		t.Fatalf("ParseAnomalyRule: %v", err)
	}
	return rule
}

func TestParseAnomalyRuleRoundTrip(t *testing.T) {
	rule := sampleRule(t)
	if rule.Metadata.ID != "login-spike" {
		t.Fatalf("ID = %q", rule.Metadata.ID)
	}
	if rule.Detection.Template != rules.TemplateSpike {
		t.Fatalf("Template = %q", rule.Detection.Template)
	}

	out, err := rule.EncodeYAML()
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	again, err := rules.ParseAnomalyRule(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again.Metadata.ID != rule.Metadata.ID ||
		again.Schedule.Cron != rule.Schedule.Cron ||
		again.Schedule.Cooldown != rule.Schedule.Cooldown ||
		again.Detection.Template != rule.Detection.Template {
		t.Fatalf("round trip mismatch: %+v vs %+v", again, rule)
	}
}

func TestValidationRejectsBadRules(t *testing.T) {
	base := sampleRule(t)

	bad := base
	bad.Metadata.ID = ""
	assertValidationError(t, bad)

	bad = base
	bad.Schedule.Cron = "not a cron"
	assertValidationError(t, bad)

	bad = base
	bad.Schedule.Cooldown = "5x"
	assertValidationError(t, bad)

	bad = base
	bad.Detection.Template = "magic"
	assertValidationError(t, bad)
}

func assertValidationError(t *testing.T, rule rules.AnomalyRule) {
	t.Helper()
	err := rules.ValidateAnomalyRule(rule)
	var ve *rules.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseCooldown(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"2h30m", 9000 * time.Second, true},
		{"1d12h", 36 * time.Hour, true},
		{"90s", 90 * time.Second, true},
		{"45", 45 * time.Second, true},
		{"", 0, false},
		{"30m15", 0, false},
		{"5x", 0, false},
	}
	for _, c := range cases {
		got, ok := rules.ParseCooldown(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseCooldown(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestSchedulerCooldownBlocksRegardlessOfCron(t *testing.T) {
	sched := rules.NewRuleScheduler()
	rule := sampleRule(t)
	rule.Schedule.Cron = "* * * * *" // due every minute
	sched.SyncRules([]rules.AnomalyRule{rule})

	triggered := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	sched.RecordTriggerAt("login-spike", triggered)

	// Cooldown is 2h30m: every instant before t+cooldown is blocked.
	for _, offset := range []time.Duration{time.Minute, time.Hour, 149 * time.Minute} {
		if sched.ShouldRun("login-spike", triggered.Add(offset)) {
			t.Fatalf("rule ran %s after trigger, inside cooldown", offset)
		}
	}
	if !sched.ShouldRun("login-spike", triggered.Add(151*time.Minute)) {
		t.Fatal("rule should run after cooldown expires")
	}
}

func TestSchedulerCronDue(t *testing.T) {
	sched := rules.NewRuleScheduler()
	rule := sampleRule(t)
	rule.Schedule.Cooldown = ""
	rule.Schedule.Cron = "0 * * * *" // hourly on the hour
	sched.SyncRules([]rules.AnomalyRule{rule})

	// Never triggered: any tick in the last day counts.
	if !sched.ShouldRun("login-spike", time.Date(2025, 6, 14, 12, 30, 0, 0, time.UTC)) {
		t.Fatal("never-triggered rule with a past tick should run")
	}

	sched.RecordTriggerAt("login-spike", time.Date(2025, 6, 14, 12, 0, 30, 0, time.UTC))

	// No new tick between 12:00:30 and 12:45.
	if sched.ShouldRun("login-spike", time.Date(2025, 6, 14, 12, 45, 0, 0, time.UTC)) {
		t.Fatal("no scheduled instant has arrived yet")
	}
	// 13:00 tick has passed by 13:00:05.
	if !sched.ShouldRun("login-spike", time.Date(2025, 6, 14, 13, 0, 5, 0, time.UTC)) {
		t.Fatal("13:00 tick should make the rule due")
	}
}

func TestSchedulerDisabledAndUnknown(t *testing.T) {
	sched := rules.NewRuleScheduler()
	rule := sampleRule(t)
	rule.Metadata.Enabled = false
	sched.SyncRules([]rules.AnomalyRule{rule})

	now := time.Now().UTC()
	if sched.ShouldRun("login-spike", now) {
		t.Fatal("disabled rule must not run")
	}
	if sched.ShouldRun("ghost", now) {
		t.Fatal("unknown rule must not run")
	}
}

func TestSchedulerSyncPreservesLastTriggered(t *testing.T) {
	sched := rules.NewRuleScheduler()
	rule := sampleRule(t)
	sched.SyncRules([]rules.AnomalyRule{rule})

	at := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	sched.RecordTriggerAt("login-spike", at)

	// Re-sync with a changed cooldown keeps the trigger timestamp.
	rule.Schedule.Cooldown = "1h"
	sched.SyncRules([]rules.AnomalyRule{rule})
	entry, ok := sched.Entry("login-spike")
	if !ok {
		t.Fatal("entry missing after sync")
	}
	if !entry.LastTriggered.Equal(at) {
		t.Fatalf("LastTriggered = %v, want %v", entry.LastTriggered, at)
	}
	if entry.Cooldown != time.Hour {
		t.Fatalf("Cooldown = %v, want 1h", entry.Cooldown)
	}

	// Removed rules drop out.
	sched.SyncRules(nil)
	if sched.Len() != 0 {
		t.Fatalf("Len = %d, want 0", sched.Len())
	}
}

// recordingBus captures published rule-change events.
type recordingBus struct {
	topics  []string
	actions []eisenbahn.RuleAction
}

func (b *recordingBus) PublishEvent(topic string, payload any) error {
	b.topics = append(b.topics, topic)
	if rc, ok := payload.(eisenbahn.RuleChanged); ok {
		b.actions = append(b.actions, rc.Action)
	}
	return nil
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	store := rules.NewStore(kv.NewMemory(nil), bus)
	rule := sampleRule(t)

	if err := store.Save(ctx, rule); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, "login-spike")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Metadata.Name != "Login spike" {
		t.Fatalf("Name = %q", got.Metadata.Name)
	}

	rule.Metadata.Description = "updated"
	if err := store.Save(ctx, rule); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List len = %d", len(list))
	}

	if err := store.Delete(ctx, "login-spike"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "login-spike"); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "login-spike"); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Fatalf("double delete: %v", err)
	}

	wantActions := []eisenbahn.RuleAction{eisenbahn.RuleCreated, eisenbahn.RuleUpdated, eisenbahn.RuleDeleted}
	if len(bus.actions) != len(wantActions) {
		t.Fatalf("actions = %v, want %v", bus.actions, wantActions)
	}
	for i, a := range wantActions {
		if bus.actions[i] != a {
			t.Fatalf("actions = %v, want %v", bus.actions, wantActions)
		}
	}
}

func TestStoreRefusesInvalidSave(t *testing.T) {
	store := rules.NewStore(kv.NewMemory(nil), nil)
	rule := sampleRule(t)
	rule.Detection.Template = "magic"
	err := store.Save(context.Background(), rule)
	var ve *rules.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

const patternConfigYAML = `
apiVersion: v1
kind: PatternConfig
metadata:
  id: pattern-default
  name: Pattern defaults
  enabled: true
spec:
  prefixspan_defaults:
    min_support: 0.01
    max_length: 10
    min_members: 50
  classification_rules:
    - category: ErrorChain
      condition:
        check: count_gte
        event_code: E
        min_count: 2
    - category: Funnel
      condition:
        check: sequence_match
        sequence: ["L", "G"]
`

func TestPatternConfig(t *testing.T) {
	rule, err := rules.ParsePatternConfig([]byte(patternConfigYAML))
	if err != nil {
		t.Fatalf("ParsePatternConfig: %v", err)
	}
	cfg, classifiers := rule.Compile()
	if cfg.MinSupport != 0.01 || cfg.MaxLength != 10 || cfg.MinMembers != 50 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(classifiers) != 2 || classifiers[0].Category != "ErrorChain" {
		t.Fatalf("classifiers = %+v", classifiers)
	}

	if _, err := rules.ParsePatternConfig([]byte("kind: PatternConfig\nspec:\n  prefixspan_defaults: {min_support: 0.1, max_length: 2, min_members: 1}\n  classification_rules:\n    - category: X\n      condition: {check: bogus}")); err == nil {
		t.Fatal("unknown check must fail validation")
	}
}

const scoringConfigYAML = `
apiVersion: v1
kind: ScoringConfig
metadata:
  id: scoring-default
  name: Scoring defaults
  enabled: true
spec:
  multi_signal_weights:
    statistical: 0.3
    dbscan_noise: 0.25
    behavioral: 0.25
    graph: 0.2
  classification_thresholds:
    mild: 0.4
    anomalous: 0.6
    highly_anomalous: 0.8
  z_score_normalization:
    divisor: 4.0
  graph_anomaly:
    neighbor_multiplier: 3.0
    high_connectivity_score: 0.5
    community_threshold: 2
    multi_community_score: 0.5
  default_anomaly_threshold: 2.0
`

func TestScoringConfig(t *testing.T) {
	rule, err := rules.ParseScoringConfig([]byte(scoringConfigYAML))
	if err != nil {
		t.Fatalf("ParseScoringConfig: %v", err)
	}
	w := rule.Spec.MultiSignalWeights
	sum := w.Statistical + w.DBSCANNoise + w.Behavioral + w.Graph
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("weights sum = %f", sum)
	}
	params := rule.Compile()
	if params.AnomalousThreshold != 0.6 || params.ZScoreDivisor != 4.0 {
		t.Fatalf("params = %+v", params)
	}
}

const trendConfigYAML = `
apiVersion: v1
kind: TrendConfig
metadata:
  id: trend-default
  name: Trend defaults
  enabled: true
spec:
  default_window_size: 168
  min_data_points: 12
  z_score_trigger: 2.0
  direction_thresholds:
    up: 1.0
    down: 1.0
  severity_thresholds:
    notable: 2.0
    significant: 3.0
    critical: 4.0
`

func TestTrendConfig(t *testing.T) {
	rule, err := rules.ParseTrendConfig([]byte(trendConfigYAML))
	if err != nil {
		t.Fatalf("ParseTrendConfig: %v", err)
	}
	if rule.Spec.DefaultWindowSize != 168 {
		t.Fatalf("window = %d", rule.Spec.DefaultWindowSize)
	}
	params := rule.Compile()
	if params.CriticalThreshold != 4.0 || params.MinDataPoints != 12 {
		t.Fatalf("params = %+v", params)
	}
}

func TestTypedDetectionParams(t *testing.T) {
	rule := sampleRule(t)
	params, err := rule.Detection.SpikeParams()
	if err != nil {
		t.Fatalf("SpikeParams: %v", err)
	}
	if params.Feature != "login_count" || params.Multiplier != 3.0 {
		t.Fatalf("params = %+v", params)
	}
}

func TestValidationChecksTemplateParams(t *testing.T) {
	base := sampleRule(t)

	// Spike with empty params must not validate.
	bad := base
	bad.Detection.Params = nil
	assertValidationError(t, bad)

	// Spike with a garbage multiplier must not validate.
	bad = base
	bad.Detection.Params = map[string]any{"feature": "login_count", "multiplier": -1.0}
	assertValidationError(t, bad)

	// Drift requires features and a positive threshold.
	bad = base
	bad.Detection.Template = rules.TemplateDrift
	bad.Detection.Params = map[string]any{"threshold": 0.5}
	assertValidationError(t, bad)

	good := base
	good.Detection.Template = rules.TemplateDrift
	good.Detection.Params = map[string]any{
		"features":  []any{"login_count", "error_rate"},
		"threshold": 0.5,
	}
	if err := rules.ValidateAnomalyRule(good); err != nil {
		t.Fatalf("valid drift rule rejected: %v", err)
	}

	// Absence requires a positive lookback.
	bad = base
	bad.Detection.Template = rules.TemplateAbsence
	bad.Detection.Params = map[string]any{"feature": "login_count", "threshold": 1.0}
	assertValidationError(t, bad)

	// Threshold requires a known operator.
	bad = base
	bad.Detection.Template = rules.TemplateThreshold
	bad.Detection.Params = map[string]any{"feature": "x", "operator": "between", "value": 1.0}
	assertValidationError(t, bad)

	good = base
	good.Detection.Template = rules.TemplateThreshold
	good.Detection.Params = map[string]any{"feature": "x", "operator": "gte", "value": 1.0}
	if err := rules.ValidateAnomalyRule(good); err != nil {
		t.Fatalf("valid threshold rule rejected: %v", err)
	}
	params, err := good.Detection.ThresholdParams()
	if err != nil {
		t.Fatalf("ThresholdParams: %v", err)
	}
	if params.Operator != rules.OperatorGte || params.Value != 1.0 {
		t.Fatalf("params = %+v", params)
	}
}
