package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenapple/dental/internal/domain/catalog"
	"github.com/greenapple/dental/internal/platform/db"
)

func TestMigrations_ApplyOnceAndSeed(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.Open(ctx, db.Options{
		Driver: db.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "schema.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	m := db.NewMigrator(gdb, Migrations())
	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Migrations()), n)

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run must be a no-op")

	for _, model := range Models() {
		assert.True(t, gdb.Migrator().HasTable(model), "missing table for %T", model)
	}

	svc := catalog.NewService(catalog.NewRepoGorm(gdb), 0)
	templates, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, len(defaultProcedures))

	options, err := svc.ListDiagnosisOptions(ctx)
	require.NoError(t, err)
	require.Len(t, options, len(defaultDiagnoses))
	assert.Equal(t, "Caries", options[0].Label)

	signers, err := svc.ListSigners(ctx)
	require.NoError(t, err)
	assert.Len(t, signers, len(defaultSigners))

	methods, err := svc.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, len(defaultMethods))

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", settings["theme"])

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %d not applied", s.Version)
	}
}

func TestSeedReferenceData_Idempotent(t *testing.T) {
	gdb, err := db.Open(context.Background(), db.Options{
		Driver: db.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "seed.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	require.NoError(t, createTables(gdb))
	require.NoError(t, seedReferenceData(gdb))
	require.NoError(t, seedReferenceData(gdb))

	var signers int64
	require.NoError(t, gdb.Model(&catalog.Signer{}).Count(&signers).Error)
	assert.Equal(t, int64(len(defaultSigners)), signers)

	var procs int64
	require.NoError(t, gdb.Model(&catalog.ProcedureTemplate{}).Count(&procs).Error)
	assert.Equal(t, int64(len(defaultProcedures)), procs)
}
