package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/repository/contract"
	"clinical-assistant-be/internal/repository/specification"
	"clinical-assistant-be/internal/repository/unitofwork"
	"clinical-assistant-be/pkg/events"
	"clinical-assistant-be/pkg/live"
	"clinical-assistant-be/pkg/llm"
)

type fakeDB struct {
	mu        sync.Mutex
	messages  []*entity.Message
	snapshots map[string]*entity.LikelihoodSnapshot
	failWrite error
}

func newFakeDB() *fakeDB {
	return &fakeDB{snapshots: map[string]*entity.LikelihoodSnapshot{}}
}

type fakeFactory struct{ db *fakeDB }

func (f fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return fakeUow{db: f.db} }

type fakeUow struct{ db *fakeDB }

func (fakeUow) Begin(context.Context) error { return nil }
func (fakeUow) Commit() error               { return nil }
func (fakeUow) Rollback() error             { return nil }
func (u fakeUow) MessageRepository() contract.MessageRepository {
	return fakeMessageRepo{db: u.db}
}
func (u fakeUow) LikelihoodRepository() contract.LikelihoodRepository {
	return fakeLikelihoodRepo{db: u.db}
}
func (fakeUow) CaseEmbeddingRepository() contract.CaseEmbeddingRepository { return nil }

type fakeMessageRepo struct{ db *fakeDB }

func (r fakeMessageRepo) Create(_ context.Context, m *entity.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWrite != nil {
		return r.db.failWrite
	}
	cp := *m
	r.db.messages = append(r.db.messages, &cp)
	return nil
}

func (r fakeMessageRepo) FindAll(_ context.Context, _ ...specification.Specification) ([]*entity.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]*entity.Message(nil), r.db.messages...), nil
}

func (r fakeMessageRepo) FindByConversation(_ context.Context, cid string) ([]*entity.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Message
	for _, m := range r.db.messages {
		if m.ConversationId == cid {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r fakeMessageRepo) Count(_ context.Context, _ ...specification.Specification) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(len(r.db.messages)), nil
}

type fakeLikelihoodRepo struct{ db *fakeDB }

func (r fakeLikelihoodRepo) FindByConversation(_ context.Context, cid string) (*entity.LikelihoodSnapshot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.snapshots[cid], nil
}

func (r fakeLikelihoodRepo) Upsert(_ context.Context, s *entity.LikelihoodSnapshot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWrite != nil {
		return r.db.failWrite
	}
	cp := *s
	r.db.snapshots[s.ConversationId] = &cp
	return nil
}

// scriptedLLM returns reply (or err) and records every call.
type scriptedLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	chats   [][]llm.Message
}

func (s *scriptedLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, history)
	return s.reply, s.err
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []dto.PublishAnalyzeConversationMessage
	err  error
}

func (p *recordingPublisher) SendAnalyzeConversation(_ context.Context, msg dto.PublishAnalyzeConversationMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return p.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingEvents) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return errors.New("nats unavailable")
}

type broadcast struct {
	key     live.Key
	msgType string
	data    interface{}
}

type recordingBroadcaster struct {
	mu  sync.Mutex
	got []broadcast
}

func (b *recordingBroadcaster) Publish(key live.Key, msgType string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, broadcast{key, msgType, data})
}

func (b *recordingBroadcaster) keys() []live.Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]live.Key, len(b.got))
	for i, g := range b.got {
		out[i] = g.key
	}
	return out
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.got))
	for i, g := range b.got {
		out[i] = g.msgType
	}
	return out
}
