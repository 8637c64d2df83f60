// Package rules defines the YAML rule documents (anomaly rules plus the
// pattern, scoring, and trend configuration kinds), the cron-driven rule
// scheduler with per-rule cooldowns, and the badger-backed rule store.
package rules

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// CommonMetadata is shared by every rule kind.
type CommonMetadata struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Extends names a base rule whose spec this one overrides.
	Extends string `yaml:"extends,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// Schedule is a cron-based execution schedule with timezone and
// cooldown. The cron expression is standard 5-field; a 6-field form with
// seconds is accepted unchanged.
type Schedule struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone,omitempty"`
	// Cooldown is a human-readable duration ("2h30m", "90s") gating
	// re-triggers independently of the cron cadence.
	Cooldown string `yaml:"cooldown,omitempty"`
}

// DetectionTemplate names a built-in detection.
type DetectionTemplate string

const (
	TemplateSpike     DetectionTemplate = "spike"
	TemplateDrift     DetectionTemplate = "drift"
	TemplateAbsence   DetectionTemplate = "absence"
	TemplateThreshold DetectionTemplate = "threshold"
)

// Detection selects a built-in template with parameters. Params stays a
// raw mapping in the document so unknown templates round-trip; the typed
// accessors decode and validate it per template.
type Detection struct {
	Template DetectionTemplate `yaml:"template,omitempty"`
	Params   map[string]any    `yaml:"params,omitempty"`
}

// SpikeParams are the parameters of the spike template.
type SpikeParams struct {
	Feature    string  `yaml:"feature"`
	Multiplier float64 `yaml:"multiplier"`
	Baseline   string  `yaml:"baseline,omitempty"`
	MinSamples int     `yaml:"min_samples,omitempty"`
}

// DriftParams are the parameters of the drift template.
type DriftParams struct {
	Features       []string `yaml:"features"`
	Method         string   `yaml:"method,omitempty"`
	Threshold      float64  `yaml:"threshold"`
	Window         string   `yaml:"window,omitempty"`
	BaselineWindow string   `yaml:"baseline_window,omitempty"`
}

// AbsenceParams are the parameters of the absence template.
type AbsenceParams struct {
	Feature      string  `yaml:"feature"`
	Threshold    float64 `yaml:"threshold"`
	LookbackDays int     `yaml:"lookback_days"`
	CompareTo    string  `yaml:"compare_to,omitempty"`
}

// ThresholdOperator is a comparison operator for threshold detection.
type ThresholdOperator string

const (
	OperatorGt  ThresholdOperator = "gt"
	OperatorGte ThresholdOperator = "gte"
	OperatorLt  ThresholdOperator = "lt"
	OperatorLte ThresholdOperator = "lte"
	OperatorEq  ThresholdOperator = "eq"
	OperatorNeq ThresholdOperator = "neq"
)

// ThresholdParams are the parameters of the threshold template.
type ThresholdParams struct {
	Feature  string            `yaml:"feature"`
	Operator ThresholdOperator `yaml:"operator"`
	Value    float64           `yaml:"value"`
}

// decodeParams lowers the raw params mapping into a typed struct by
// round-tripping through YAML.
func decodeParams[T any](params map[string]any) (T, error) {
	var out T
	b, err := yaml.Marshal(params)
	if err != nil {
		return out, err
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

// SpikeParams decodes and validates the params for a spike rule.
func (d Detection) SpikeParams() (SpikeParams, error) {
	p, err := decodeParams[SpikeParams](d.Params)
	if err != nil {
		return SpikeParams{}, &ValidationError{Reason: fmt.Sprintf("spike params: %v", err)}
	}
	if p.Feature == "" {
		return SpikeParams{}, &ValidationError{Reason: "spike params: feature is required"}
	}
	if p.Multiplier <= 0 {
		return SpikeParams{}, &ValidationError{Reason: "spike params: multiplier must be > 0"}
	}
	return p, nil
}

// DriftParams decodes and validates the params for a drift rule.
func (d Detection) DriftParams() (DriftParams, error) {
	p, err := decodeParams[DriftParams](d.Params)
	if err != nil {
		return DriftParams{}, &ValidationError{Reason: fmt.Sprintf("drift params: %v", err)}
	}
	if len(p.Features) == 0 {
		return DriftParams{}, &ValidationError{Reason: "drift params: features is required"}
	}
	if p.Threshold <= 0 {
		return DriftParams{}, &ValidationError{Reason: "drift params: threshold must be > 0"}
	}
	return p, nil
}

// AbsenceParams decodes and validates the params for an absence rule.
func (d Detection) AbsenceParams() (AbsenceParams, error) {
	p, err := decodeParams[AbsenceParams](d.Params)
	if err != nil {
		return AbsenceParams{}, &ValidationError{Reason: fmt.Sprintf("absence params: %v", err)}
	}
	if p.Feature == "" {
		return AbsenceParams{}, &ValidationError{Reason: "absence params: feature is required"}
	}
	if p.LookbackDays <= 0 {
		return AbsenceParams{}, &ValidationError{Reason: "absence params: lookback_days must be > 0"}
	}
	return p, nil
}

// ThresholdParams decodes and validates the params for a threshold rule.
func (d Detection) ThresholdParams() (ThresholdParams, error) {
	p, err := decodeParams[ThresholdParams](d.Params)
	if err != nil {
		return ThresholdParams{}, &ValidationError{Reason: fmt.Sprintf("threshold params: %v", err)}
	}
	if p.Feature == "" {
		return ThresholdParams{}, &ValidationError{Reason: "threshold params: feature is required"}
	}
	switch p.Operator {
	case OperatorGt, OperatorGte, OperatorLt, OperatorLte, OperatorEq, OperatorNeq:
	default:
		return ThresholdParams{}, &ValidationError{Reason: fmt.Sprintf(
			"threshold params: unknown operator %q", p.Operator)}
	}
	return p, nil
}

// Filters restrict which entities a rule evaluates.
type Filters struct {
	EntityTypes []string `yaml:"entity_types,omitempty"`
	MinScore    float64  `yaml:"min_score,omitempty"`
}

// NotificationChannel routes a fired rule to a downstream notifier. The
// channel implementations live with external collaborators; the core
// only validates and transports the reference.
type NotificationChannel struct {
	Kind   string `yaml:"kind"`
	Target string `yaml:"target"`
}

// AnomalyRule is the top-level anomaly rule document.
type AnomalyRule struct {
	APIVersion    string                `yaml:"apiVersion"`
	Kind          string                `yaml:"kind"`
	Metadata      CommonMetadata        `yaml:"metadata"`
	Schedule      Schedule              `yaml:"schedule"`
	Detection     Detection             `yaml:"detection"`
	Filters       *Filters              `yaml:"filters,omitempty"`
	Notifications []NotificationChannel `yaml:"notifications,omitempty"`
}

// ParseAnomalyRule decodes and validates one YAML document.
func ParseAnomalyRule(data []byte) (AnomalyRule, error) {
	var rule AnomalyRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return AnomalyRule{}, &ValidationError{Reason: err.Error()}
	}
	if err := ValidateAnomalyRule(rule); err != nil {
		return AnomalyRule{}, err
	}
	return rule, nil
}

// EncodeYAML renders the rule document.
func (r AnomalyRule) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// ValidationError reports a rule document that must not be saved.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rules: validation failed: %s", e.Reason)
}

// ValidateAnomalyRule enforces the schema: kind, identity, schedule, and
// detection template must all be present and well-formed.
func ValidateAnomalyRule(rule AnomalyRule) error {
	if rule.Kind != "AnomalyRule" {
		return &ValidationError{Reason: fmt.Sprintf("kind %q, expected AnomalyRule", rule.Kind)}
	}
	if rule.Metadata.ID == "" {
		return &ValidationError{Reason: "metadata.id is required"}
	}
	if rule.Schedule.Cron == "" {
		return &ValidationError{Reason: "schedule.cron is required"}
	}
	if _, err := parseCron(normalizeCron(rule.Schedule.Cron)); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("invalid cron %q: %v", rule.Schedule.Cron, err)}
	}
	if rule.Schedule.Cooldown != "" {
		if _, ok := ParseCooldown(rule.Schedule.Cooldown); !ok {
			return &ValidationError{Reason: fmt.Sprintf("invalid cooldown %q", rule.Schedule.Cooldown)}
		}
	}
	switch rule.Detection.Template {
	case TemplateSpike:
		if _, err := rule.Detection.SpikeParams(); err != nil {
			return err
		}
	case TemplateDrift:
		if _, err := rule.Detection.DriftParams(); err != nil {
			return err
		}
	case TemplateAbsence:
		if _, err := rule.Detection.AbsenceParams(); err != nil {
			return err
		}
	case TemplateThreshold:
		if _, err := rule.Detection.ThresholdParams(); err != nil {
			return err
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown detection template %q", rule.Detection.Template)}
	}
	for _, n := range rule.Notifications {
		if n.Kind == "" || n.Target == "" {
			return &ValidationError{Reason: "notification channels need kind and target"}
		}
	}
	return nil
}
