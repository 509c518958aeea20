package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"clinical-assistant-be/pkg/logging"
	"clinical-assistant-be/pkg/textmatch"
)

const (
	DefaultHistoryCap   = 400
	DefaultHistoryKeep  = 300
	DefaultFollowupCap  = 200
	DefaultFollowupKeep = 150

	// DefaultTranscriptTail is the number of trailing characters of the
	// transcript kept in the post-stop snapshot.
	DefaultTranscriptTail = 12000
)

type Options struct {
	HistoryCap     int
	HistoryKeep    int
	FollowupCap    int
	FollowupKeep   int
	TranscriptTail int
	Matcher        textmatch.Matcher
	Now            func() time.Time
}

func DefaultOptions() Options {
	return Options{
		HistoryCap:     DefaultHistoryCap,
		HistoryKeep:    DefaultHistoryKeep,
		FollowupCap:    DefaultFollowupCap,
		FollowupKeep:   DefaultFollowupKeep,
		TranscriptTail: DefaultTranscriptTail,
		Matcher:        textmatch.DefaultMatcher(),
		Now:            time.Now,
	}
}

// Store serializes every session operation behind one lock. Callers must
// not hold results across slow work expecting them to stay current; read,
// release, compute, then write back.
type Store struct {
	mu      sync.Mutex
	backend Backend
	opts    Options
	logger  logging.Logger
}

func NewStore(backend Backend, opts Options, logger logging.Logger) *Store {
	def := DefaultOptions()
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = def.HistoryCap
	}
	if opts.HistoryKeep <= 0 || opts.HistoryKeep > opts.HistoryCap {
		opts.HistoryKeep = min(def.HistoryKeep, opts.HistoryCap)
	}
	if opts.FollowupCap <= 0 {
		opts.FollowupCap = def.FollowupCap
	}
	if opts.FollowupKeep <= 0 || opts.FollowupKeep > opts.FollowupCap {
		opts.FollowupKeep = min(def.FollowupKeep, opts.FollowupCap)
	}
	if opts.TranscriptTail <= 0 {
		opts.TranscriptTail = def.TranscriptTail
	}
	if opts.Matcher.MinOverlap <= 0 && opts.Matcher.MinRatio <= 0 {
		opts.Matcher = def.Matcher
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if backend == nil {
		backend = NewMemoryBackend(0)
	}
	return &Store{backend: backend, opts: opts, logger: logging.OrNop(logger)}
}

// update loads (or creates) the state for key, applies fn and saves it.
func (s *Store) update(ctx context.Context, key Key, fn func(st *State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadOrCreate(ctx, key)
	if err != nil {
		return err
	}
	fn(st)
	return s.backend.Save(ctx, key, st)
}

// view runs fn against the current state without saving. A missing key
// is created first.
func (s *Store) view(ctx context.Context, key Key, fn func(st *State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadOrCreate(ctx, key)
	if err != nil {
		return err
	}
	fn(st)
	return nil
}

func (s *Store) loadOrCreate(ctx context.Context, key Key) (*State, error) {
	st, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		st.ensure()
		return st, nil
	}
	st = newState(s.opts.Now())
	if err := s.backend.Save(ctx, key, st); err != nil {
		return nil, err
	}
	s.logger.Debug("LiveStore", "Session created", map[string]interface{}{
		"conversation": key.Conversation,
	})
	return st, nil
}

// GetOrCreate returns a copy of the state for key, creating it if absent.
func (s *Store) GetOrCreate(ctx context.Context, key Key) (*State, error) {
	var out *State
	err := s.view(ctx, key, func(st *State) {
		out = st.Clone()
	})
	return out, err
}

// Reset removes all state for key. Resetting an absent key is a no-op.
func (s *Store) Reset(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(ctx, key)
}

// AddQuestions inserts questions whose normalized text is not yet in the
// plan. It returns how many were added and the plan size afterwards.
// Paraphrases are kept here and only collapsed by the ranker's fuzzy dedup.
func (s *Store) AddQuestions(ctx context.Context, key Key, questions []string) (added, total int, err error) {
	err = s.update(ctx, key, func(st *State) {
		now := s.opts.Now()
		for _, q := range questions {
			text := strings.TrimSpace(q)
			if text == "" {
				continue
			}
			norm := textmatch.Normalize(text)
			if norm == "" {
				continue
			}
			if _, exists := st.Plan[norm]; exists {
				continue
			}
			st.Plan[norm] = &PlanItem{Question: text, AddedAt: now}
			st.Order = append(st.Order, norm)
			added++
		}
		total = len(st.Plan)
	})
	return added, total, err
}

// MarkAsked marks every unasked plan question detected in finalText as
// asked and returns how many were newly matched. Asked entries are never
// revisited.
func (s *Store) MarkAsked(ctx context.Context, key Key, finalText string) (int, error) {
	normFinal := textmatch.Normalize(finalText)
	if normFinal == "" {
		return 0, nil
	}

	matched := 0
	err := s.update(ctx, key, func(st *State) {
		now := s.opts.Now()
		for _, norm := range st.Order {
			item := st.Plan[norm]
			if item == nil || item.Asked {
				continue
			}
			if s.opts.Matcher.Asked(norm, normFinal) {
				item.Asked = true
				at := now
				item.AskedAt = &at
				matched++
			}
		}
	})
	return matched, err
}

// AppendHistory appends a trimmed transcript turn. Empty messages are
// ignored.
func (s *Store) AppendHistory(ctx context.Context, key Key, role, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	return s.update(ctx, key, func(st *State) {
		st.History = appendBounded(st.History, Turn{
			Role:    strings.TrimSpace(role),
			Message: message,
			At:      s.opts.Now(),
		}, s.opts.HistoryCap, s.opts.HistoryKeep)
	})
}

// SnapshotPostStop replaces the post-stop context. The transcript is cut
// to its last TranscriptTail characters. The follow-up history is trimmed
// to its keep size if it has grown past its cap.
func (s *Store) SnapshotPostStop(ctx context.Context, key Key, snap PostStop) error {
	snap.TranscriptTail = tail(snap.TranscriptTail, s.opts.TranscriptTail)
	snap.Unasked = append([]RankedQuestion(nil), snap.Unasked...)
	if snap.SavedAt.IsZero() {
		snap.SavedAt = s.opts.Now()
	}
	return s.update(ctx, key, func(st *State) {
		st.PostStop = &snap
		if len(st.Followup) > s.opts.FollowupCap {
			st.Followup = append([]Turn(nil), st.Followup[len(st.Followup)-s.opts.FollowupKeep:]...)
		}
	})
}

// RecordFollowup appends a turn of the post-stop follow-up chat.
func (s *Store) RecordFollowup(ctx context.Context, key Key, role, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	return s.update(ctx, key, func(st *State) {
		st.Followup = appendBounded(st.Followup, Turn{
			Role:    strings.ToLower(strings.TrimSpace(role)),
			Message: message,
			At:      s.opts.Now(),
		}, s.opts.FollowupCap, s.opts.FollowupKeep)
	})
}

// Unasked returns the original text of every unasked plan question in
// insertion order.
func (s *Store) Unasked(ctx context.Context, key Key) ([]string, error) {
	var out []string
	err := s.view(ctx, key, func(st *State) {
		out = unasked(st)
	})
	return out, err
}

// Transcript renders the history as "role: message" lines.
func (s *Store) Transcript(ctx context.Context, key Key) (string, error) {
	var out string
	err := s.view(ctx, key, func(st *State) {
		out = RenderTranscript(st.History)
	})
	return out, err
}

// RankingInput reads the unasked questions and transcript as one
// consistent snapshot.
func (s *Store) RankingInput(ctx context.Context, key Key) (questions []string, transcript string, err error) {
	err = s.view(ctx, key, func(st *State) {
		questions = unasked(st)
		transcript = RenderTranscript(st.History)
	})
	return questions, transcript, err
}

// SetScores writes ranking scores back to the matching plan items.
// Questions no longer in the plan are ignored.
func (s *Store) SetScores(ctx context.Context, key Key, ranked []RankedQuestion) error {
	return s.update(ctx, key, func(st *State) {
		for _, r := range ranked {
			item, ok := st.Plan[textmatch.Normalize(r.Question)]
			if !ok {
				continue
			}
			score := r.Score
			item.Score = &score
		}
	})
}

// PostStop returns a copy of the post-stop snapshot, or nil if the
// session was never stopped.
func (s *Store) PostStop(ctx context.Context, key Key) (*PostStop, error) {
	var out *PostStop
	err := s.view(ctx, key, func(st *State) {
		if st.PostStop == nil {
			return
		}
		ps := *st.PostStop
		ps.Unasked = append([]RankedQuestion(nil), st.PostStop.Unasked...)
		out = &ps
	})
	return out, err
}

func (s *Store) FollowupHistory(ctx context.Context, key Key) ([]Turn, error) {
	var out []Turn
	err := s.view(ctx, key, func(st *State) {
		out = append([]Turn(nil), st.Followup...)
	})
	return out, err
}

// RenderTranscript joins turns as "role: message" lines.
func RenderTranscript(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Message)
	}
	return strings.Join(lines, "\n")
}

func unasked(st *State) []string {
	out := make([]string, 0, len(st.Order))
	for _, norm := range st.Order {
		if item := st.Plan[norm]; item != nil && !item.Asked {
			out = append(out, item.Question)
		}
	}
	return out
}

func appendBounded(turns []Turn, t Turn, limit, keep int) []Turn {
	turns = append(turns, t)
	if len(turns) > limit {
		turns = append([]Turn(nil), turns[len(turns)-keep:]...)
	}
	return turns
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
