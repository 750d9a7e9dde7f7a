package migration

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{
		"credit_ledgers",
		"credit_transactions",
		"subscriptions",
		"invoices",
		"invoice_lines",
		"usage_anomalies",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestRunMigrations_RequiresHandle(t *testing.T) {
	require.Error(t, RunMigrations(nil))
}
