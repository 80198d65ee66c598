package sql

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civium/ragline/helper"
)

// All tests in this package share one pgvector container; initDB hands
// each test a fresh connection with the extensions loaded.
var dbPort string

func TestMain(m *testing.M) {
	teardown, port, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}
	dbPort = port

	m.Run()

	if err := teardown(context.Background()); err != nil {
		log.Printf("error tearing down postgres container: %v", err)
	}
}

func initDB(t *testing.T) *helper.Database {
	t.Helper()
	helper.SetTestDatabaseConfigEnvs(t, dbPort)

	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)

	require.NoError(t, Init(db.Instance), "failed to load database extensions")

	return db
}
