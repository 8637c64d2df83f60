package rules

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/stupid-db/stupid-db/pkg/compute"
	"github.com/stupid-db/stupid-db/pkg/compute/prefixspan"
)

// PatternConfigRule carries PrefixSpan defaults and declarative pattern
// classification rules. When loaded, the declarative path takes
// precedence over the built-in classification heuristics.
type PatternConfigRule struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   CommonMetadata    `yaml:"metadata"`
	Spec       PatternConfigSpec `yaml:"spec"`
}

// PatternConfigSpec is the specification section of a PatternConfig.
type PatternConfigSpec struct {
	PrefixSpanDefaults  PrefixSpanDefaults       `yaml:"prefixspan_defaults"`
	ClassificationRules []ClassificationRuleSpec `yaml:"classification_rules"`
}

// PrefixSpanDefaults are the default mining parameters.
type PrefixSpanDefaults struct {
	MinSupport float64 `yaml:"min_support"`
	MaxLength  int     `yaml:"max_length"`
	MinMembers int     `yaml:"min_members"`
}

// ClassificationRuleSpec is one declarative classification rule;
// evaluated in document order, first match wins.
type ClassificationRuleSpec struct {
	Category  string                      `yaml:"category"`
	Condition ClassificationConditionSpec `yaml:"condition"`
}

// ClassificationConditionSpec is the YAML form of a classification
// condition. Check is one of "count_gte", "sequence_match",
// "has_then_absent".
type ClassificationConditionSpec struct {
	Check       string   `yaml:"check"`
	EventCode   string   `yaml:"event_code,omitempty"`
	MinCount    int      `yaml:"min_count,omitempty"`
	Sequence    []string `yaml:"sequence,omitempty"`
	PresentCode string   `yaml:"present_code,omitempty"`
	AbsentCode  string   `yaml:"absent_code,omitempty"`
}

// ParsePatternConfig decodes and validates a PatternConfig document.
func ParsePatternConfig(data []byte) (PatternConfigRule, error) {
	var rule PatternConfigRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return PatternConfigRule{}, &ValidationError{Reason: err.Error()}
	}
	if rule.Kind != "PatternConfig" {
		return PatternConfigRule{}, &ValidationError{Reason: fmt.Sprintf("kind %q, expected PatternConfig", rule.Kind)}
	}
	for _, r := range rule.Spec.ClassificationRules {
		switch r.Condition.Check {
		case "count_gte", "sequence_match", "has_then_absent":
		default:
			return PatternConfigRule{}, &ValidationError{Reason: fmt.Sprintf("unknown classification check %q", r.Condition.Check)}
		}
	}
	return rule, nil
}

// Compile lowers the document into mining config and classifier rules.
func (r PatternConfigRule) Compile() (prefixspan.Config, []prefixspan.ClassificationRule) {
	cfg := prefixspan.Config{
		MinSupport: r.Spec.PrefixSpanDefaults.MinSupport,
		MaxLength:  r.Spec.PrefixSpanDefaults.MaxLength,
		MinMembers: r.Spec.PrefixSpanDefaults.MinMembers,
	}
	rules := make([]prefixspan.ClassificationRule, 0, len(r.Spec.ClassificationRules))
	for _, spec := range r.Spec.ClassificationRules {
		rules = append(rules, prefixspan.ClassificationRule{
			Category: spec.Category,
			Condition: prefixspan.ClassificationCondition{
				Check:       spec.Condition.Check,
				EventCode:   spec.Condition.EventCode,
				MinCount:    spec.Condition.MinCount,
				Sequence:    spec.Condition.Sequence,
				PresentCode: spec.Condition.PresentCode,
				AbsentCode:  spec.Condition.AbsentCode,
			},
		})
	}
	return cfg, rules
}

// ScoringConfigRule carries the anomaly signal weights, classification
// thresholds, and graph anomaly parameters.
type ScoringConfigRule struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   CommonMetadata    `yaml:"metadata"`
	Spec       ScoringConfigSpec `yaml:"spec"`
}

// ScoringConfigSpec is the specification section of a ScoringConfig.
type ScoringConfigSpec struct {
	MultiSignalWeights       MultiSignalWeights       `yaml:"multi_signal_weights"`
	ClassificationThresholds ClassificationThresholds `yaml:"classification_thresholds"`
	ZScoreNormalization      ZScoreNormalization      `yaml:"z_score_normalization"`
	GraphAnomaly             GraphAnomalyParams       `yaml:"graph_anomaly"`
	DefaultAnomalyThreshold  float64                  `yaml:"default_anomaly_threshold,omitempty"`
}

// MultiSignalWeights weight the four anomaly signals; they should sum
// to ~1.0.
type MultiSignalWeights struct {
	Statistical float64 `yaml:"statistical"`
	DBSCANNoise float64 `yaml:"dbscan_noise"`
	Behavioral  float64 `yaml:"behavioral"`
	Graph       float64 `yaml:"graph"`
}

// ClassificationThresholds are the ascending boundaries for
// Normal/Mild/Anomalous/HighlyAnomalous.
type ClassificationThresholds struct {
	Mild            float64 `yaml:"mild"`
	Anomalous       float64 `yaml:"anomalous"`
	HighlyAnomalous float64 `yaml:"highly_anomalous"`
}

// ZScoreNormalization holds the z-score normalization parameters.
type ZScoreNormalization struct {
	Divisor float64 `yaml:"divisor"`
}

// GraphAnomalyParams tune the graph connectivity bonuses.
type GraphAnomalyParams struct {
	NeighborMultiplier    float64 `yaml:"neighbor_multiplier"`
	HighConnectivityScore float64 `yaml:"high_connectivity_score"`
	CommunityThreshold    uint64  `yaml:"community_threshold"`
	MultiCommunityScore   float64 `yaml:"multi_community_score"`
}

// ParseScoringConfig decodes and validates a ScoringConfig document.
func ParseScoringConfig(data []byte) (ScoringConfigRule, error) {
	var rule ScoringConfigRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return ScoringConfigRule{}, &ValidationError{Reason: err.Error()}
	}
	if rule.Kind != "ScoringConfig" {
		return ScoringConfigRule{}, &ValidationError{Reason: fmt.Sprintf("kind %q, expected ScoringConfig", rule.Kind)}
	}
	t := rule.Spec.ClassificationThresholds
	if !(t.Mild < t.Anomalous && t.Anomalous < t.HighlyAnomalous) {
		return ScoringConfigRule{}, &ValidationError{Reason: "classification thresholds must ascend"}
	}
	return rule, nil
}

// Compile lowers the document into compute scoring parameters, keeping
// built-in defaults for the DBSCAN knobs the document does not carry.
func (r ScoringConfigRule) Compile() compute.ScoringParams {
	params := compute.DefaultScoringParams()
	params.StatisticalWeight = r.Spec.MultiSignalWeights.Statistical
	params.DBSCANNoiseWeight = r.Spec.MultiSignalWeights.DBSCANNoise
	params.BehavioralWeight = r.Spec.MultiSignalWeights.Behavioral
	params.GraphWeight = r.Spec.MultiSignalWeights.Graph
	params.MildThreshold = r.Spec.ClassificationThresholds.Mild
	params.AnomalousThreshold = r.Spec.ClassificationThresholds.Anomalous
	params.HighlyAnomalousThreshold = r.Spec.ClassificationThresholds.HighlyAnomalous
	params.ZScoreDivisor = r.Spec.ZScoreNormalization.Divisor
	params.NeighborMultiplier = r.Spec.GraphAnomaly.NeighborMultiplier
	params.HighConnectivityScore = r.Spec.GraphAnomaly.HighConnectivityScore
	params.CommunityThreshold = r.Spec.GraphAnomaly.CommunityThreshold
	params.MultiCommunityScore = r.Spec.GraphAnomaly.MultiCommunityScore
	return params
}

// TrendConfigRule carries the trend-detection thresholds and window
// defaults.
type TrendConfigRule struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Metadata   CommonMetadata  `yaml:"metadata"`
	Spec       TrendConfigSpec `yaml:"spec"`
}

// TrendConfigSpec is the specification section of a TrendConfig.
type TrendConfigSpec struct {
	DefaultWindowSize   int                 `yaml:"default_window_size"`
	MinDataPoints       int                 `yaml:"min_data_points"`
	ZScoreTrigger       float64             `yaml:"z_score_trigger"`
	DirectionThresholds DirectionThresholds `yaml:"direction_thresholds"`
	SeverityThresholds  SeverityThresholds  `yaml:"severity_thresholds"`
}

// DirectionThresholds classify Up/Down/Stable from the z-score. Down is
// stored as a positive magnitude.
type DirectionThresholds struct {
	Up   float64 `yaml:"up"`
	Down float64 `yaml:"down"`
}

// SeverityThresholds are ascending |z| boundaries.
type SeverityThresholds struct {
	Notable     float64 `yaml:"notable"`
	Significant float64 `yaml:"significant"`
	Critical    float64 `yaml:"critical"`
}

// ParseTrendConfig decodes and validates a TrendConfig document.
func ParseTrendConfig(data []byte) (TrendConfigRule, error) {
	var rule TrendConfigRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return TrendConfigRule{}, &ValidationError{Reason: err.Error()}
	}
	if rule.Kind != "TrendConfig" {
		return TrendConfigRule{}, &ValidationError{Reason: fmt.Sprintf("kind %q, expected TrendConfig", rule.Kind)}
	}
	t := rule.Spec.SeverityThresholds
	if !(t.Notable < t.Significant && t.Significant < t.Critical) {
		return TrendConfigRule{}, &ValidationError{Reason: "severity thresholds must ascend"}
	}
	return rule, nil
}

// Compile lowers the document into compute trend parameters.
func (r TrendConfigRule) Compile() compute.TrendParams {
	return compute.TrendParams{
		WindowSize:           r.Spec.DefaultWindowSize,
		MinDataPoints:        r.Spec.MinDataPoints,
		ZScoreTrigger:        r.Spec.ZScoreTrigger,
		UpThreshold:          r.Spec.DirectionThresholds.Up,
		DownThreshold:        r.Spec.DirectionThresholds.Down,
		NotableThreshold:     r.Spec.SeverityThresholds.Notable,
		SignificantThreshold: r.Spec.SeverityThresholds.Significant,
		CriticalThreshold:    r.Spec.SeverityThresholds.Critical,
	}
}
