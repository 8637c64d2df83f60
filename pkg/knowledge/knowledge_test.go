package knowledge_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

func TestInsightCap(t *testing.T) {
	s := knowledge.NewState()
	for i := 0; i < knowledge.MaxInsights+25; i++ {
		s.PushInsight(knowledge.Insight{ID: fmt.Sprintf("i-%d", i)})
	}
	if len(s.Insights) != knowledge.MaxInsights {
		t.Fatalf("insights len = %d, want %d", len(s.Insights), knowledge.MaxInsights)
	}
	// Oldest entries were evicted; the queue starts at i-25.
	if s.Insights[0].ID != "i-25" {
		t.Fatalf("first insight = %q, want i-25", s.Insights[0].ID)
	}
	last := s.Insights[len(s.Insights)-1]
	if last.ID != fmt.Sprintf("i-%d", knowledge.MaxInsights+24) {
		t.Fatalf("last insight = %q", last.ID)
	}
}

func TestSharedReadWrite(t *testing.T) {
	sh := knowledge.NewShared()

	sh.Write(func(s *knowledge.State) {
		s.Trends["logins"] = knowledge.TrendStats{Feature: "logins", Latest: 42}
	})

	var got float64
	sh.Read(func(s *knowledge.State) {
		got = s.Trends["logins"].Latest
	})
	if got != 42 {
		t.Fatalf("Latest = %f, want 42", got)
	}
}

func TestSharedConcurrentWriters(t *testing.T) {
	sh := knowledge.NewShared()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sh.Write(func(s *knowledge.State) {
				s.PushInsight(knowledge.Insight{ID: fmt.Sprintf("w-%d", n)})
			})
		}(i)
	}
	wg.Wait()

	sh.Read(func(s *knowledge.State) {
		if len(s.Insights) != 16 {
			t.Errorf("insights = %d, want 16", len(s.Insights))
		}
	})
}
