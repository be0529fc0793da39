package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"orbit/models"
)

type memoryPersister struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	version uint64
}

func (m *memoryPersister) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memoryPersister) Save(ctx context.Context, data []byte, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	m.version = version
	return nil
}

func analysisWith(title string, concepts ...models.Concept) *models.Analysis {
	return &models.Analysis{Title: title, KeyFindings: []string{title + " finding"}, Concepts: concepts}
}

func concept(id string, related ...string) models.Concept {
	return models.Concept{ID: id, Name: id, Category: models.CategoryTheory, Importance: 0.4, RelatedConcepts: related}
}

func addAnalyzed(t *testing.T, s *Store, id string, a *models.Analysis) {
	t.Helper()
	s.AddPaper(models.Paper{ID: id, Name: id + ".pdf", File: []byte("%PDF " + id)})
	s.UpdatePaper(id, models.PaperPatch{Status: models.StatusPtr(models.StatusProcessing)})
	if !s.CompleteAnalysis(id, a, a.Title+" content") {
		t.Fatalf("complete analysis of %s was rejected", id)
	}
}

func TestAddPaperForcesUploading(t *testing.T) {
	s := New(nil, nil)
	s.AddPaper(models.Paper{ID: "p1", Status: models.StatusAnalyzed})

	p, ok := s.Paper("p1")
	if !ok || p.Status != models.StatusUploading {
		t.Fatalf("expected uploading paper, got %+v", p)
	}
	if p.Figures == nil {
		t.Fatal("figures must default to an empty list")
	}
}

func TestStatusNeverLeavesTerminal(t *testing.T) {
	s := New(nil, nil)
	addAnalyzed(t, s, "p1", analysisWith("A"))

	if s.FailPaper("p1", "late failure") {
		t.Fatal("an analyzed paper must not fail afterwards")
	}
	s.UpdatePaper("p1", models.PaperPatch{Status: models.StatusPtr(models.StatusProcessing)})
	if p, _ := s.Paper("p1"); p.Status != models.StatusAnalyzed {
		t.Fatalf("status went back to %s", p.Status)
	}
	if s.CompleteAnalysis("p1", analysisWith("B"), "x") {
		t.Fatal("a second completion must be ignored")
	}
}

func TestTerminalStatusReleasesFile(t *testing.T) {
	s := New(nil, nil)
	addAnalyzed(t, s, "p1", analysisWith("A"))
	s.AddPaper(models.Paper{ID: "p2", File: []byte("%PDF p2")})
	s.FailPaper("p2", "boom")

	for _, id := range []string{"p1", "p2"} {
		p, _ := s.Paper(id)
		if p.File != nil {
			t.Fatalf("paper %s still holds %d file bytes", id, len(p.File))
		}
	}

	s.AddPaper(models.Paper{ID: "p3", File: []byte("%PDF p3")})
	if p, _ := s.Paper("p3"); string(p.File) != "%PDF p3" {
		t.Fatal("pending papers keep their bytes")
	}
}

func TestCompleteAnalysisExtendsGraph(t *testing.T) {
	s := New(nil, nil)
	addAnalyzed(t, s, "p1", analysisWith("A", concept("a", "b"), concept("b"), concept("c", "gone")))

	p, _ := s.Paper("p1")
	if p.Content != "A content" || p.Analysis.Title != "A" {
		t.Fatalf("unexpected paper %+v", p)
	}
	concepts, edges := s.Graph()
	if len(concepts) != 3 {
		t.Fatalf("expected 3 concepts, got %d", len(concepts))
	}
	if len(edges) != 1 || edges[0].ID != "a-b" {
		t.Fatalf("only edges with both endpoints are visible, got %+v", edges)
	}
	if raw := s.Snapshot().Edges; len(raw) != 2 {
		t.Fatalf("raw edges are kept, got %d", len(raw))
	}
}

func TestRemovePaperCascades(t *testing.T) {
	s := New(nil, nil)
	addAnalyzed(t, s, "p1", analysisWith("A", concept("a", "x")))
	addAnalyzed(t, s, "p2", analysisWith("B", concept("x", "a")))
	s.SelectPaper("p1")
	s.AddMessage(models.ChatMessage{ID: "m1", Role: models.RoleAssistant, Content: "see [Paper 1] [Paper 2]", Citations: []models.Citation{
		{PaperID: "p1", PaperTitle: "A"},
		{PaperID: "p2", PaperTitle: "B"},
	}})
	s.SetSynthesis(&models.Synthesis{
		ID:       "s1",
		PaperIDs: []string{"p1", "p2"},
		Connections: []models.Connection{
			{Description: "both", PaperIDs: []string{"p1", "p2"}, Type: models.ConnectionSupports},
		},
		Contradictions: []models.Contradiction{},
		Gaps:           []string{"gap"},
	})

	if !s.RemovePaper("p1") {
		t.Fatal("remove failed")
	}
	st := s.Snapshot()
	if len(st.Papers) != 1 || st.Papers[0].ID != "p2" {
		t.Fatalf("unexpected papers %+v", st.Papers)
	}
	if st.SelectedPaperID != "" {
		t.Fatal("selection must be cleared")
	}
	for _, c := range st.Concepts {
		if c.HasPaper("p1") {
			t.Fatalf("concept %s of removed paper survived", c.ID)
		}
	}
	if len(st.Concepts) != 1 || st.Concepts[0].ID != "x" || len(st.Concepts[0].PaperIDs) != 1 || st.Concepts[0].PaperIDs[0] != "p2" {
		t.Fatalf("concepts of the remaining paper must stay untouched: %+v", st.Concepts)
	}
	for _, e := range st.Edges {
		if e.Source == "a" || e.Target == "a" {
			t.Fatalf("edge %s still references a removed concept", e.ID)
		}
	}
	if st.Synthesis == nil || len(st.Synthesis.PaperIDs) != 1 || len(st.Synthesis.Connections) != 0 || len(st.Synthesis.Gaps) != 1 {
		t.Fatalf("synthesis not pruned: %+v", st.Synthesis)
	}
	if len(st.Messages) != 1 || len(st.Messages[0].Citations) != 1 || st.Messages[0].Citations[0].PaperID != "p2" {
		t.Fatalf("citations of removed paper must be stripped: %+v", st.Messages)
	}

	if s.RemovePaper("p1") {
		t.Fatal("removing an unknown id must report false")
	}
}

func TestRemoveLastPaperClearsConversation(t *testing.T) {
	s := New(nil, nil)
	addAnalyzed(t, s, "p1", analysisWith("A", concept("a")))
	s.AddMessage(models.ChatMessage{ID: "m1", Role: models.RoleUser, Content: "hi"})

	s.RemovePaper("p1")
	st := s.Snapshot()
	if len(st.Messages) != 0 || len(st.Concepts) != 0 || len(st.Edges) != 0 {
		t.Fatalf("workspace not emptied: %+v", st)
	}
	if st.Messages == nil {
		t.Fatal("messages must be an empty list, not nil")
	}
}

func TestSelectPaper(t *testing.T) {
	s := New(nil, nil)
	s.AddPaper(models.Paper{ID: "p1"})

	if s.SelectPaper("nope") {
		t.Fatal("unknown id must be rejected")
	}
	if !s.SelectPaper("p1") || s.Snapshot().SelectedPaperID != "p1" {
		t.Fatal("selection not set")
	}
	if !s.SelectPaper("") || s.Snapshot().SelectedPaperID != "" {
		t.Fatal("selection not cleared")
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New(nil, nil)
	s.AddPaper(models.Paper{ID: "p1", Name: "one"})

	snap := s.Snapshot()
	snap.Papers[0].Name = "mutated"
	snap.Papers = append(snap.Papers, models.Paper{ID: "p2"})

	if p, _ := s.Paper("p1"); p.Name != "one" {
		t.Fatalf("store state changed through a snapshot: %q", p.Name)
	}
	if len(s.Snapshot().Papers) != 1 {
		t.Fatal("snapshot append leaked into the store")
	}
}

func TestSetSynthesisReplacesAndClears(t *testing.T) {
	s := New(nil, nil)
	s.SetSynthesis(&models.Synthesis{ID: "s1"})
	s.SetSynthesis(&models.Synthesis{ID: "s2"})
	if syn := s.Synthesis(); syn == nil || syn.ID != "s2" {
		t.Fatalf("expected s2, got %+v", syn)
	}
	s.SetSynthesis(nil)
	if s.Synthesis() != nil {
		t.Fatal("synthesis not cleared")
	}
}

func TestFlushOnlyOnChange(t *testing.T) {
	mem := &memoryPersister{}
	s := New(mem, nil)
	ctx := context.Background()

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if mem.saves != 0 {
		t.Fatal("an untouched store must not be saved")
	}

	s.AddPaper(models.Paper{ID: "p1", File: []byte("secret bytes")})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if mem.saves != 1 || mem.version != s.Version() {
		t.Fatalf("expected exactly one save at version %d, got %d saves at %d", s.Version(), mem.saves, mem.version)
	}
	if strings.Contains(string(mem.data), "secret bytes") || strings.Contains(string(mem.data), "c2VjcmV0") {
		t.Fatal("raw file bytes must not be persisted")
	}
}

func TestRestoreProjectsGraphAndMarksInterrupted(t *testing.T) {
	state := State{
		Papers: []models.Paper{
			{ID: "p1", Status: models.StatusAnalyzed, Analysis: analysisWith("A", concept("a", "b"), concept("b")), UploadedAt: time.Unix(0, 0).UTC()},
			{ID: "p2", Status: models.StatusProcessing},
		},
		Messages: []models.ChatMessage{{ID: "m1", Role: models.RoleUser, Content: "hello"}},
	}
	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mem := &memoryPersister{data: data}
	s := New(mem, nil)

	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	st := s.Snapshot()
	if len(st.Concepts) != 2 || len(st.Edges) != 1 {
		t.Fatalf("graph not projected: %d concepts, %d edges", len(st.Concepts), len(st.Edges))
	}
	if p, _ := s.Paper("p2"); p.Status != models.StatusError || p.Error == "" {
		t.Fatalf("interrupted paper must end in error, got %+v", p)
	}
	if len(st.Messages) != 1 {
		t.Fatalf("messages not restored: %+v", st.Messages)
	}

	// der Status-Wechsel von p2 muss beim nächsten Flush gespeichert werden
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if mem.saves != 1 {
		t.Fatalf("expected one save after restore, got %d", mem.saves)
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	s := New(&memoryPersister{}, nil)
	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if st := s.Snapshot(); st.Papers == nil || len(st.Papers) != 0 {
		t.Fatalf("expected an empty workspace, got %+v", st)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := New(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddMessage(models.ChatMessage{Role: models.RoleUser, Content: "m"})
		}()
	}
	wg.Wait()
	if got := len(s.Messages()); got != 50 {
		t.Fatalf("lost updates: %d messages", got)
	}
}
