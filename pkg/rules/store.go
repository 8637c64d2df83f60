package rules

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
	"github.com/stupid-db/stupid-db/pkg/kv"
)

// ErrRuleNotFound is returned when a rule ID does not exist.
var ErrRuleNotFound = errors.New("rules: rule not found")

// ChangePublisher receives rule-change notifications for the bus.
// Publish failures downgrade to log-and-drop.
type ChangePublisher interface {
	PublishEvent(topic string, payload any) error
}

// Store persists anomaly rules as YAML documents in a kv.Store and
// announces changes on the event bus. Saves are refused when validation
// fails.
type Store struct {
	kv  kv.Store
	bus ChangePublisher
}

var rulePrefix = kv.Key{"rules", "anomaly"}

func ruleKey(id string) kv.Key {
	return kv.Key{"rules", "anomaly", id}
}

// NewStore creates a rule store over the given kv backend. bus may be
// nil when no event publication is wanted.
func NewStore(store kv.Store, bus ChangePublisher) *Store {
	return &Store{kv: store, bus: bus}
}

// Save validates and persists a rule, announcing Created or Updated.
func (s *Store) Save(ctx context.Context, rule AnomalyRule) error {
	if err := ValidateAnomalyRule(rule); err != nil {
		return err
	}

	key := ruleKey(rule.Metadata.ID)
	action := eisenbahn.RuleCreated
	if _, err := s.kv.Get(ctx, key); err == nil {
		action = eisenbahn.RuleUpdated
	}

	data, err := rule.EncodeYAML()
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return err
	}
	s.announce(rule.Metadata.ID, action)
	return nil
}

// Get loads a rule by ID.
func (s *Store) Get(ctx context.Context, id string) (AnomalyRule, error) {
	data, err := s.kv.Get(ctx, ruleKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return AnomalyRule{}, ErrRuleNotFound
	}
	if err != nil {
		return AnomalyRule{}, err
	}
	return ParseAnomalyRule(data)
}

// Delete removes a rule, announcing Deleted. Unknown IDs error with
// ErrRuleNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	key := ruleKey(id)
	if _, err := s.kv.Get(ctx, key); errors.Is(err, kv.ErrNotFound) {
		return ErrRuleNotFound
	} else if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return err
	}
	s.announce(id, eisenbahn.RuleDeleted)
	return nil
}

// List loads every stored rule. Undecodable documents are skipped with
// a warning rather than failing the whole listing.
func (s *Store) List(ctx context.Context) ([]AnomalyRule, error) {
	var out []AnomalyRule
	for entry, err := range s.kv.List(ctx, rulePrefix) {
		if err != nil {
			return nil, err
		}
		rule, err := ParseAnomalyRule(entry.Value)
		if err != nil {
			slog.Warn("skipping undecodable rule", "key", entry.Key.String(), "err", err)
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (s *Store) announce(ruleID string, action eisenbahn.RuleAction) {
	if s.bus == nil {
		return
	}
	err := s.bus.PublishEvent(eisenbahn.TopicRuleChanged, eisenbahn.RuleChanged{
		RuleID: ruleID,
		Action: action,
	})
	if err != nil {
		slog.Warn("rule change publish failed", "rule", ruleID, "err", err)
	}
}
