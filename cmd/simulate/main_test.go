package main

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
	"github.com/hackgods/opd-token-allocation/internal/config"
)

func TestPickClassCoversEveryClass(t *testing.T) {
	faker := gofakeit.New(1)
	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		class := pickClass(faker)
		_, err := allocation.ParseTokenClass(class)
		require.NoError(t, err)
		seen[class] = true
	}
	assert.Len(t, seen, len(classWeights))
}

func TestSimulatorRunsADay(t *testing.T) {
	ctx := context.Background()
	clock := &simClock{t: time.Date(2026, time.March, 2, 8, 30, 0, 0, time.UTC), step: 20 * time.Second}

	sim := &Simulator{
		config: SimConfig{Doctors: 2, Patients: 30, DelayMinutes: 45, Seed: 7},
		logger: zerolog.Nop(),
	}
	sim.svc = allocation.NewService(zerolog.Nop(), allocation.WithClock(clock.Now))

	doctors, err := sim.registerDoctors(ctx, config.Config{SlotDuration: 15 * time.Minute, SlotCapacity: 2})
	require.NoError(t, err)
	require.Len(t, doctors, 2)

	sim.Run(ctx, doctors)

	for _, id := range doctors {
		sum, err := sim.svc.Summary(ctx, id)
		require.NoError(t, err)

		total := 0
		for _, n := range sum.Tokens {
			total += n
		}
		assert.Equal(t, 30, total)
		assert.LessOrEqual(t, sum.Occupied, sum.Capacity)
		assert.LessOrEqual(t, sum.EmergencyQuotaUsed, 4)
	}

	sim.disruptions.mu.Lock()
	defer sim.disruptions.mu.Unlock()
	assert.Equal(t, 2, sim.disruptions.counts["delay"])
	assert.Equal(t, 2, sim.disruptions.counts["resume"])
}
