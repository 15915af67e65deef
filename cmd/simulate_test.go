package cmd

import (
	"bytes"
	"testing"

	"rafflepool/domain"
	"rafflepool/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateDraws(t *testing.T) {
	t.Parallel()

	const trials = 20000
	result, err := simulateDraws("uniformity", 5, trials)
	require.NoError(t, err)

	for place := range result.Counts {
		var total int64
		for _, count := range result.Counts[place] {
			total += count
		}
		assert.Equal(t, int64(trials), total, "place %d", place+1)
	}

	var anyPlace int64
	for _, count := range result.AnyPlace {
		anyPlace += count
	}
	assert.Equal(t, int64(trials*entities.WinnerCount), anyPlace)

	// 99.99% quantile for 4 degrees of freedom is about 23.5
	for place, chi := range result.ChiSquared {
		assert.Less(t, chi, 30.0, "place %d", place+1)
	}
	assert.InDelta(t, 9.49, result.CriticalValue95, 0.1)
}

func TestSimulateDraws_IsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := simulateDraws("repeat", 7, 500)
	require.NoError(t, err)
	second, err := simulateDraws("repeat", 7, 500)
	require.NoError(t, err)
	assert.Equal(t, first.Counts, second.Counts)
}

func TestSimulateDraws_Rejects(t *testing.T) {
	t.Parallel()

	_, err := simulateDraws("small", 2, 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientParticipants)

	_, err = simulateDraws("none", 5, 0)
	assert.Error(t, err)
}

func TestChiSquaredCritical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		df   float64
		want float64
	}{
		{df: 4, want: 9.49},
		{df: 9, want: 16.92},
		{df: 30, want: 43.77},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, chiSquaredCritical(tt.df, z95), 0.1, "df %v", tt.df)
	}
	assert.Zero(t, chiSquaredCritical(0, z95))
}

func TestPrintSimulation(t *testing.T) {
	t.Parallel()

	result, err := simulateDraws("print", 3, 300)
	require.NoError(t, err)

	var out bytes.Buffer
	printSimulation(&out, result)
	assert.Contains(t, out.String(), "300 draws over 3 participants")
	assert.Contains(t, out.String(), "place 3")
}
