package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type row struct {
	ConversationId string
	Role           string
}

func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Skipf("gorm dry run unavailable: %v", err)
	}
	return db
}

func TestSpecificationsBuildSQL(t *testing.T) {
	db := dryRun(t)

	var rows []row
	specs := []Specification{
		ByConversationID{ConversationID: "conv-1"},
		ByRole{Role: "patient"},
		OrderBy{Field: "created_at"},
		Pagination{Limit: 10, Offset: 20},
	}
	q := db.Table("messages")
	for _, s := range specs {
		q = s.Apply(q)
	}
	stmt := q.Find(&rows).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "conversation_id = $1")
	assert.Contains(t, sql, "LOWER(role) = LOWER($2)")
	assert.Contains(t, sql, "ORDER BY created_at ASC")
	assert.Contains(t, sql, "LIMIT")
	assert.Contains(t, sql, "OFFSET")
	assert.Equal(t, []interface{}{"conv-1", "patient"}, stmt.Vars[:2])
}
