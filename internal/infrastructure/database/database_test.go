package database

import (
	"testing"

	"bankledger/internal/config"
	"bankledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	db := OpenTestDB(t)

	for _, table := range []interface{}{&model.Account{}, &model.LedgerEntry{}, &model.OutboxMessage{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&model.Account{}, "AccountNumber"))
	assert.True(t, db.Migrator().HasIndex(&model.LedgerEntry{}, "TransactionID"))
}

func TestUnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}
