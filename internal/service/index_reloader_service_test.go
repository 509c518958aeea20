package service

import (
	"context"
	"path/filepath"
	"testing"

	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/embedding"
	"clinical-assistant-be/pkg/events"
	pktNats "clinical-assistant-be/pkg/nats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSubscriber struct {
	eventType string
	durable   string
	handler   pktNats.EventHandler
}

func (s *capturingSubscriber) Subscribe(_ context.Context, eventType, durableName string, handler pktNats.EventHandler) error {
	s.eventType, s.durable, s.handler = eventType, durableName, handler
	return nil
}

func TestIndexReloader_SwapsOnEvent(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "cases.index")
	metaPath := filepath.Join(dir, "cases.msgpack")
	require.NoError(t, buildTestIndex(t).Save(indexPath, metaPath))

	handle := corpus.NewHandle(nil)
	sub := &capturingSubscriber{}
	reloader := NewIndexReloaderService(handle, embedding.NewHashProvider(256), sub, indexPath, metaPath, "api-reloader", logger.NewNopLogger())

	require.NoError(t, reloader.Start(context.Background()))
	assert.Equal(t, events.TypeCorpusIndexUpdated, sub.eventType)
	assert.Equal(t, "api-reloader", sub.durable)

	err := sub.handler(context.Background(), events.CorpusIndexUpdated(indexPath, metaPath, 2))
	require.NoError(t, err)

	require.NotNil(t, handle.Current())
	assert.Equal(t, 2, handle.Stats().TotalCases)
	_, ok := handle.GetCase("tb-1")
	assert.True(t, ok)
}

func TestIndexReloader_KeepsCurrentOnFailure(t *testing.T) {
	current := buildTestIndex(t)
	handle := corpus.NewHandle(current)
	dir := t.TempDir()
	reloader := NewIndexReloaderService(handle, embedding.NewHashProvider(256), nil,
		filepath.Join(dir, "missing.index"), filepath.Join(dir, "missing.msgpack"), "api", logger.NewNopLogger())

	assert.Error(t, reloader.Reload(context.Background()))
	assert.Same(t, current, handle.Current())

	assert.Error(t, reloader.Start(context.Background()), "no subscriber configured")
}

func TestIndexReloader_IgnoresAnnouncedPaths(t *testing.T) {
	configuredDir := t.TempDir()
	elsewhere := t.TempDir()
	indexPath := filepath.Join(elsewhere, "cases.index")
	metaPath := filepath.Join(elsewhere, "cases.msgpack")
	require.NoError(t, buildTestIndex(t).Save(indexPath, metaPath))

	current := buildTestIndex(t)
	handle := corpus.NewHandle(current)
	sub := &capturingSubscriber{}
	reloader := NewIndexReloaderService(handle, embedding.NewHashProvider(256), sub,
		filepath.Join(configuredDir, "cases.index"), filepath.Join(configuredDir, "cases.msgpack"), "api", logger.NewNopLogger())
	require.NoError(t, reloader.Start(context.Background()))

	err := sub.handler(context.Background(), events.CorpusIndexUpdated(indexPath, metaPath, 2))
	assert.Error(t, err, "configured files do not exist")
	assert.Same(t, current, handle.Current())
}

func TestIndexReloader_RejectsOtherEmbeddingModel(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "cases.index")
	metaPath := filepath.Join(dir, "cases.msgpack")
	require.NoError(t, buildTestIndex(t).Save(indexPath, metaPath))

	current := buildTestIndex(t)
	handle := corpus.NewHandle(current)
	reloader := NewIndexReloaderService(handle, embedding.NewHashProvider(128), nil, indexPath, metaPath, "api", logger.NewNopLogger())

	err := reloader.Reload(context.Background())
	assert.ErrorIs(t, err, corpus.ErrModelMismatch)
	assert.Same(t, current, handle.Current())
}
