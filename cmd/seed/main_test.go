package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
	"github.com/hackgods/opd-token-allocation/internal/roster"
)

func TestGeneratedRosterRegisters(t *testing.T) {
	r := generate(gofakeit.New(42), 5)
	require.Len(t, r.Doctors, 5)

	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, r.Save(path))

	loaded, err := roster.Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Doctors, loaded.Doctors)

	svc := allocation.NewService(zerolog.Nop())
	n, err := loaded.Register(context.Background(), svc, 15*time.Minute, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, d := range svc.ListDoctors(context.Background()) {
		assert.NotEmpty(t, d.Slots)
		assert.Contains(t, specialties, d.Specialty)
	}
}
