package implementation

import (
	"context"
	"os"
	"testing"
	"time"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/model"
	"clinical-assistant-be/pkg/database"
	"clinical-assistant-be/pkg/likelihood"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("DB_CONNECTION_STRING not set")
	}
	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func TestMessageRepository_FindByConversationOrdered(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(db)
	cid := "it-" + uuid.NewString()
	t.Cleanup(func() { db.Where("conversation_id = ?", cid).Delete(&model.Message{}) })

	for i, line := range []string{"I have a cough", "For how long?", "Two weeks"} {
		role := "patient"
		if i == 1 {
			role = "clinician"
		}
		require.NoError(t, repo.Create(ctx, &entity.Message{ConversationId: cid, Role: role, Message: line}))
		time.Sleep(5 * time.Millisecond)
	}

	got, err := repo.FindByConversation(ctx, cid)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "I have a cough", got[0].Message)
	assert.Equal(t, "Two weeks", got[2].Message)
	assert.NotEqual(t, uuid.Nil, got[0].Id)
}

func TestLikelihoodRepository_Upsert(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewLikelihoodRepository(db)
	cid := "it-" + uuid.NewString()
	t.Cleanup(func() { db.Where("conversation_id = ?", cid).Delete(&model.ConversationDiseaseLikelihood{}) })

	none, err := repo.FindByConversation(ctx, cid)
	require.NoError(t, err)
	assert.Nil(t, none)

	snap := &entity.LikelihoodSnapshot{
		ConversationId: cid,
		AnalyzedAt:     time.Now().UTC().Truncate(time.Second),
		FlaggedRiskPct: 10,
		Symptoms:       []likelihood.SymptomCount{{Symptom: "cough", Count: 1}},
	}
	require.NoError(t, repo.Upsert(ctx, snap))

	snap.FlaggedRiskPct = 55
	require.NoError(t, repo.Upsert(ctx, snap))

	got, err := repo.FindByConversation(ctx, cid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 55.0, got.FlaggedRiskPct)
	assert.Equal(t, "cough", got.Symptoms[0].Symptom)
}

func TestCaseEmbeddingRepository_ReplaceAndSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewCaseEmbeddingRepository(db)

	rows := []*entity.CaseEmbedding{
		{CaseId: "it-a", Position: 0, Model: "hash/3", Embedding: []float32{1, 0, 0}},
		{CaseId: "it-b", Position: 1, Model: "hash/3", Embedding: []float32{0, 1, 0}},
		{CaseId: "it-c", Position: 2, Model: "hash/3", Embedding: []float32{0.6, 0.8, 0}},
	}
	require.NoError(t, repo.ReplaceAll(ctx, rows))
	t.Cleanup(func() { _ = repo.ReplaceAll(ctx, nil) })

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	got, err := repo.SearchSimilarWithScore(ctx, []float32{1, 0, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "it-a", got[0].CaseEmbedding.CaseId)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, "it-c", got[1].CaseEmbedding.CaseId)
}
