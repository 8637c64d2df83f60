package prefixspan_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stupid-db/stupid-db/pkg/compute/prefixspan"
	"github.com/stupid-db/stupid-db/pkg/entity"
)

func TestCompressEvent(t *testing.T) {
	now := time.Now()
	cases := []struct {
		event  string
		fields map[string]entity.FieldValue
		want   string
	}{
		{"Login", nil, "L"},
		{"GameOpened", map[string]entity.FieldValue{"game": entity.Text("Starburst Deluxe")}, "G:Starburs"},
		{"GameOpened", nil, "G"},
		{"GridClick", map[string]entity.FieldValue{"gameName": entity.Text("poker")}, "G:poker"},
		{"PopupModule", map[string]entity.FieldValue{"action": entity.Text("click")}, "P:click"},
		{"PopUpModule", nil, "P"},
		{"API Error", map[string]entity.FieldValue{"statusCode": entity.Text("500")}, "E:500"},
		{"API Error", map[string]entity.FieldValue{"url": entity.Text("/api/v1/balance")}, "E:balance"},
		{"API Error", nil, "E"},
		{"Deposit", nil, "Dep"},
	}
	for _, c := range cases {
		doc := entity.NewDocument(c.event, now, c.fields)
		if got := prefixspan.CompressEvent(doc); got != c.want {
			t.Fatalf("CompressEvent(%s %v) = %q, want %q", c.event, c.fields, got, c.want)
		}
	}
}

func TestCompressEventWithRules(t *testing.T) {
	rules := map[string]prefixspan.CompressionRule{
		"Login":      {Code: "L"},
		"GameOpened": {Code: "G", SubtypeField: "game"},
	}
	doc := entity.NewDocument("GameOpened", time.Now(), map[string]entity.FieldValue{
		"game": entity.Text("blackjack"),
	})
	if got := prefixspan.CompressEventWithRules(doc, rules); got != "G:blackjac" {
		t.Fatalf("got %q", got)
	}
	unknown := entity.NewDocument("Withdrawal", time.Now(), nil)
	if got := prefixspan.CompressEventWithRules(unknown, rules); got != "Wit" {
		t.Fatalf("unknown event = %q, want Wit", got)
	}
}

func TestMineFindsFrequentSequence(t *testing.T) {
	// 8 of 10 members exhibit L → G:poker; two diverge.
	var sequences []prefixspan.Sequence
	for i := 0; i < 8; i++ {
		sequences = append(sequences, prefixspan.Sequence{
			MemberKey: fmt.Sprintf("m-%d", i),
			Codes:     []string{"L", "G:poker", "P:click"},
		})
	}
	sequences = append(sequences,
		prefixspan.Sequence{MemberKey: "m-8", Codes: []string{"E:500"}},
		prefixspan.Sequence{MemberKey: "m-9", Codes: []string{"P:close"}},
	)

	patterns := prefixspan.Mine(sequences, prefixspan.Config{
		MinSupport: 0.5,
		MaxLength:  3,
		MinMembers: 2,
	})
	if len(patterns) == 0 {
		t.Fatal("expected patterns")
	}

	found := false
	for _, p := range patterns {
		if strings.Join(p.Sequence, ",") == "L,G:poker" {
			found = true
			if p.MemberCount != 8 {
				t.Fatalf("MemberCount = %d, want 8", p.MemberCount)
			}
			if p.Support != 0.8 {
				t.Fatalf("Support = %f, want 0.8", p.Support)
			}
		}
	}
	if !found {
		t.Fatalf("pattern L,G:poker not mined; got %v", patterns)
	}

	// Max length honored.
	for _, p := range patterns {
		if len(p.Sequence) > 3 {
			t.Fatalf("pattern %v exceeds max length", p.Sequence)
		}
	}
}

func TestMineRespectsMinMembers(t *testing.T) {
	sequences := []prefixspan.Sequence{
		{MemberKey: "a", Codes: []string{"L"}},
		{MemberKey: "b", Codes: []string{"L"}},
	}
	patterns := prefixspan.Mine(sequences, prefixspan.Config{
		MinSupport: 0.0,
		MaxLength:  2,
		MinMembers: 3,
	})
	if len(patterns) != 0 {
		t.Fatalf("expected no patterns below the member floor, got %v", patterns)
	}
}

func TestClassifyHeuristics(t *testing.T) {
	cases := []struct {
		seq  []string
		want prefixspan.Category
	}{
		{[]string{"E:500", "E:502"}, prefixspan.CategoryErrorChain},
		{[]string{"L", "G:poker", "E:500"}, prefixspan.CategoryChurn},
		{[]string{"E:500", "L", "G:poker"}, prefixspan.CategoryFunnel},
		{[]string{"L", "G:poker"}, prefixspan.CategoryFunnel},
		{[]string{"G:poker", "G:slots"}, prefixspan.CategoryEngagement},
		{[]string{"P:click"}, prefixspan.CategoryUnknown},
	}
	for _, c := range cases {
		if got := prefixspan.Classify(c.seq); got != c.want {
			t.Fatalf("Classify(%v) = %v, want %v", c.seq, got, c.want)
		}
	}
}

func TestClassifyWithRulesPrecedence(t *testing.T) {
	rules := []prefixspan.ClassificationRule{
		{Category: "ErrorChain", Condition: prefixspan.ClassificationCondition{
			Check: "count_gte", EventCode: "E", MinCount: 2,
		}},
		{Category: "Funnel", Condition: prefixspan.ClassificationCondition{
			Check: "sequence_match", Sequence: []string{"L", "G"},
		}},
		{Category: "Churn", Condition: prefixspan.ClassificationCondition{
			Check: "has_then_absent", PresentCode: "E", AbsentCode: "G",
		}},
	}

	if got := prefixspan.ClassifyWithRules([]string{"E:1", "E:2"}, rules); got != prefixspan.CategoryErrorChain {
		t.Fatalf("got %v, want ErrorChain", got)
	}
	if got := prefixspan.ClassifyWithRules([]string{"L", "P:x", "G:poker"}, rules); got != prefixspan.CategoryFunnel {
		t.Fatalf("got %v, want Funnel", got)
	}
	if got := prefixspan.ClassifyWithRules([]string{"E:500", "P:x"}, rules); got != prefixspan.CategoryChurn {
		t.Fatalf("got %v, want Churn", got)
	}
	if got := prefixspan.ClassifyWithRules([]string{"P:x"}, rules); got != prefixspan.CategoryUnknown {
		t.Fatalf("got %v, want Unknown", got)
	}
}
