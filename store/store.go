package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"orbit/graph"
	"orbit/models"
)

// State ist der vollständige Workspace-Zustand. Er wird nie in-place verändert.
type State struct {
	Papers          []models.Paper       `json:"papers"`
	Concepts        []models.Concept     `json:"concepts"`
	Edges           []models.ConceptEdge `json:"edges"`
	Messages        []models.ChatMessage `json:"messages"`
	Synthesis       *models.Synthesis    `json:"synthesis"`
	SelectedPaperID string               `json:"selectedPaperId,omitempty"`
	APIKeySet       bool                 `json:"apiKeySet"`
}

// clone kopiert die Slices, damit eine Mutation nie einen veröffentlichten Zustand berührt.
func (s *State) clone() *State {
	out := *s
	out.Papers = append([]models.Paper{}, s.Papers...)
	out.Concepts = append([]models.Concept{}, s.Concepts...)
	out.Edges = append([]models.ConceptEdge{}, s.Edges...)
	out.Messages = append([]models.ChatMessage{}, s.Messages...)
	if s.Synthesis != nil {
		syn := *s.Synthesis
		out.Synthesis = &syn
	}
	return &out
}

func (s *State) paperIndex(id string) int {
	for i, p := range s.Papers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Persister speichert den serialisierten Zustand unter einem festen Namen.
// Load gibt (nil, nil) zurück, wenn noch nichts gespeichert wurde.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte, version uint64) error
}

// Store hält den Workspace-Zustand. Jede Mutation kopiert, ändert und tauscht den Zustand unter einem Lock.
type Store struct {
	mu           sync.RWMutex
	state        *State
	version      uint64
	savedVersion uint64

	persister Persister
	logger    *zap.Logger
}

func New(persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:     emptyState(),
		persister: persister,
		logger:    logger,
	}
}

func emptyState() *State {
	return &State{
		Papers:   []models.Paper{},
		Concepts: []models.Concept{},
		Edges:    []models.ConceptEdge{},
		Messages: []models.ChatMessage{},
	}
}

// update führt fn auf einer Kopie aus und veröffentlicht sie, wenn fn true meldet.
func (s *Store) update(fn func(next *State) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if !fn(next) {
		return false
	}
	s.state = next
	s.version++
	return true
}

func (s *Store) read() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot gibt eine Kopie des aktuellen Zustands zurück.
func (s *Store) Snapshot() State {
	return *s.read().clone()
}

// Version zählt die veröffentlichten Mutationen.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AddPaper hängt ein Paper mit Status uploading an. Eindeutige IDs vergibt der Aufrufer.
func (s *Store) AddPaper(p models.Paper) {
	p.Status = models.StatusUploading
	if p.Figures == nil {
		p.Figures = []string{}
	}
	s.update(func(next *State) bool {
		next.Papers = append(next.Papers, p)
		return true
	})
}

// UpdatePaper übernimmt die gesetzten Felder des Patches. Unbekannte IDs sind ein No-op.
func (s *Store) UpdatePaper(id string, patch models.PaperPatch) bool {
	return s.update(func(next *State) bool {
		i := next.paperIndex(id)
		if i < 0 {
			return false
		}
		next.Papers[i] = patch.Apply(next.Papers[i])
		return true
	})
}

// CompleteAnalysis setzt Status analyzed samt Analyse und Content-Cache und ergänzt
// den Konzeptgraphen in derselben Mutation. Die Rohdaten werden danach verworfen.
// Bereits abgeschlossene oder entfernte Papers bleiben unberührt.
func (s *Store) CompleteAnalysis(id string, analysis *models.Analysis, content string) bool {
	if analysis == nil {
		return false
	}
	return s.update(func(next *State) bool {
		i := next.paperIndex(id)
		if i < 0 || next.Papers[i].Status.IsTerminal() {
			return false
		}
		p := next.Papers[i]
		p.Status = models.StatusAnalyzed
		p.Analysis = analysis
		p.Content = content
		p.Error = ""
		p.File = nil
		next.Papers[i] = p
		next.Concepts, next.Edges = graph.IngestConcepts(next.Concepts, next.Edges, id, analysis.Concepts)
		return true
	})
}

// FailPaper setzt Status error mit Meldung und verwirft die Rohdaten.
func (s *Store) FailPaper(id, msg string) bool {
	return s.update(func(next *State) bool {
		i := next.paperIndex(id)
		if i < 0 || next.Papers[i].Status.IsTerminal() {
			return false
		}
		next.Papers[i].Status = models.StatusError
		next.Papers[i].Error = msg
		next.Papers[i].File = nil
		return true
	})
}

// RemovePaper entfernt ein Paper und alles, was davon abgeleitet ist, in einer Mutation.
func (s *Store) RemovePaper(id string) bool {
	return s.update(func(next *State) bool {
		i := next.paperIndex(id)
		if i < 0 {
			return false
		}
		next.Papers = append(next.Papers[:i:i], next.Papers[i+1:]...)
		if next.SelectedPaperID == id {
			next.SelectedPaperID = ""
		}
		next.Concepts, next.Edges = graph.PruneConcepts(next.Concepts, next.Edges, id)
		if next.Synthesis != nil {
			syn := next.Synthesis.WithoutPaper(id)
			next.Synthesis = &syn
		}
		if len(next.Papers) == 0 {
			next.Messages = []models.ChatMessage{}
			return true
		}
		for j, m := range next.Messages {
			next.Messages[j].Citations = withoutPaperCitations(m.Citations, id)
		}
		return true
	})
}

func withoutPaperCitations(citations []models.Citation, paperID string) []models.Citation {
	if len(citations) == 0 {
		return citations
	}
	out := make([]models.Citation, 0, len(citations))
	for _, c := range citations {
		if c.PaperID != paperID {
			out = append(out, c)
		}
	}
	return out
}

// SelectPaper setzt die Auswahl. Ein leerer String hebt sie auf, unbekannte IDs werden abgelehnt.
func (s *Store) SelectPaper(id string) bool {
	return s.update(func(next *State) bool {
		if id != "" && next.paperIndex(id) < 0 {
			return false
		}
		next.SelectedPaperID = id
		return true
	})
}

func (s *Store) AddMessage(m models.ChatMessage) {
	s.update(func(next *State) bool {
		next.Messages = append(next.Messages, m)
		return true
	})
}

func (s *Store) ClearMessages() {
	s.update(func(next *State) bool {
		next.Messages = []models.ChatMessage{}
		return true
	})
}

// SetSynthesis ersetzt die gehaltene Synthese vollständig. nil löscht sie.
func (s *Store) SetSynthesis(syn *models.Synthesis) {
	s.update(func(next *State) bool {
		if syn == nil {
			next.Synthesis = nil
			return true
		}
		cp := *syn
		next.Synthesis = &cp
		return true
	})
}

func (s *Store) SetAPIKeySet(v bool) {
	s.update(func(next *State) bool {
		if next.APIKeySet == v {
			return false
		}
		next.APIKeySet = v
		return true
	})
}

// Paper sucht ein Paper per ID.
func (s *Store) Paper(id string) (models.Paper, bool) {
	st := s.read()
	if i := st.paperIndex(id); i >= 0 {
		return st.Papers[i], true
	}
	return models.Paper{}, false
}

// AnalyzedPapers gibt die analysierten Papers in Store-Reihenfolge zurück.
func (s *Store) AnalyzedPapers() []models.Paper {
	var out []models.Paper
	for _, p := range s.read().Papers {
		if p.Status == models.StatusAnalyzed && p.Analysis != nil {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) Messages() []models.ChatMessage {
	return append([]models.ChatMessage{}, s.read().Messages...)
}

func (s *Store) Synthesis() *models.Synthesis {
	syn := s.read().Synthesis
	if syn == nil {
		return nil
	}
	cp := *syn
	return &cp
}

// Graph liefert alle Konzepte und nur die Kanten, deren Endpunkte existieren.
func (s *Store) Graph() ([]models.Concept, []models.ConceptEdge) {
	st := s.read()
	return append([]models.Concept{}, st.Concepts...), graph.VisibleEdges(st.Concepts, st.Edges)
}

// Restore lädt den persistierten Zustand unverändert. Konzepte und Kanten werden aus
// den Papers neu projiziert; Papers, deren Analyse beim letzten Lauf noch offen war,
// landen im Status error, weil ihre Rohdaten nicht persistiert werden.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	data, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load workspace snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	loaded := emptyState()
	if err := json.Unmarshal(data, loaded); err != nil {
		return fmt.Errorf("decode workspace snapshot: %w", err)
	}
	restored := loaded.clone()
	interrupted := 0
	for i, p := range restored.Papers {
		if !p.Status.IsTerminal() {
			restored.Papers[i].Status = models.StatusError
			restored.Papers[i].Error = "analysis interrupted by server restart"
			interrupted++
		}
	}
	restored.Concepts, restored.Edges = graph.ProjectGraph(restored.Papers)
	if restored.Messages == nil {
		restored.Messages = []models.ChatMessage{}
	}

	s.mu.Lock()
	s.state = restored
	s.savedVersion = s.version
	if interrupted > 0 {
		s.version++
	}
	s.mu.Unlock()

	s.logger.Info("Workspace wiederhergestellt",
		zap.Int("papers", len(restored.Papers)),
		zap.Int("concepts", len(restored.Concepts)),
		zap.Int("interrupted", interrupted))
	return nil
}

// Flush speichert den Zustand, falls er sich seit dem letzten Speichern geändert hat.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.mu.RLock()
	st, version, saved := s.state, s.version, s.savedVersion
	s.mu.RUnlock()
	if version == saved {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode workspace snapshot: %w", err)
	}
	if err := s.persister.Save(ctx, data, version); err != nil {
		return fmt.Errorf("save workspace snapshot: %w", err)
	}
	s.mu.Lock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
	s.mu.Unlock()
	s.logger.Debug("Workspace gespeichert", zap.Uint64("version", version))
	return nil
}
