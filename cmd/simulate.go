package cmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// z-score of the one-sided 95% normal quantile
const z95 = 1.6449

type simulationResult struct {
	RosterSize int64
	Trials     int
	// Counts[place][index] is how often index won the given place
	Counts     [entities.WinnerCount][]int64
	ChiSquared [entities.WinnerCount]float64
	// AnyPlace counts how often each index won any of the prizes
	AnyPlace        []int64
	AnyChiSquared   float64
	CriticalValue95 float64
}

func newSimulateCommand() *cobra.Command {
	var (
		rosterSize int64
		trials     int
		seedLabel  string
	)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Check winner selection uniformity over many seeded draws",
		Args:  cobra.NoArgs,
		// Pure computation, no configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := simulateDraws(seedLabel, rosterSize, trials)
			if err != nil {
				return err
			}
			printSimulation(cmd.OutOrStdout(), result)
			return nil
		},
	}

	simulateCmd.Flags().Int64Var(&rosterSize, "roster", 10, "roster size to draw from")
	simulateCmd.Flags().IntVar(&trials, "trials", 100000, "number of draws")
	simulateCmd.Flags().StringVar(&seedLabel, "seed", "rafflepool", "label the per-draw seeds are derived from")
	return simulateCmd
}

// simulateDraws runs trials draws with seeds keccak256(label || trial) and tallies
// how often each roster index lands in each prize place
func simulateDraws(seedLabel string, rosterSize int64, trials int) (*simulationResult, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}
	if rosterSize < entities.WinnerCount {
		return nil, fmt.Errorf("%w: roster of %d", domain.ErrInsufficientParticipants, rosterSize)
	}

	result := &simulationResult{
		RosterSize: rosterSize,
		Trials:     trials,
		AnyPlace:   make([]int64, rosterSize),
	}
	for place := range result.Counts {
		result.Counts[place] = make([]int64, rosterSize)
	}

	var counter [8]byte
	for trial := 0; trial < trials; trial++ {
		binary.BigEndian.PutUint64(counter[:], uint64(trial))
		seed := crypto.Keccak256Hash([]byte(seedLabel), counter[:])

		indices, err := services.SelectWinners(seed, rosterSize, entities.WinnerCount)
		if err != nil {
			return nil, err
		}
		if err := checkDistinct(seed, indices); err != nil {
			return nil, err
		}
		for place, index := range indices {
			result.Counts[place][index]++
			result.AnyPlace[index]++
		}
	}

	expected := float64(trials) / float64(rosterSize)
	for place := range result.Counts {
		result.ChiSquared[place] = chiSquared(result.Counts[place], expected)
	}
	result.AnyChiSquared = chiSquared(result.AnyPlace, expected*entities.WinnerCount)
	result.CriticalValue95 = chiSquaredCritical(float64(rosterSize-1), z95)
	return result, nil
}

func checkDistinct(seed common.Hash, indices []int64) error {
	seen := make(map[int64]struct{}, len(indices))
	for _, index := range indices {
		if _, dup := seen[index]; dup {
			return fmt.Errorf("seed %s selected index %d twice", seed.Hex(), index)
		}
		seen[index] = struct{}{}
	}
	return nil
}

func chiSquared(observed []int64, expected float64) float64 {
	var sum float64
	for _, count := range observed {
		diff := float64(count) - expected
		sum += diff * diff / expected
	}
	return sum
}

// chiSquaredCritical approximates the chi-squared quantile with the Wilson-Hilferty transform
func chiSquaredCritical(df, z float64) float64 {
	if df <= 0 {
		return 0
	}
	k := 2 / (9 * df)
	return df * math.Pow(1-k+z*math.Sqrt(k), 3)
}

func printSimulation(out io.Writer, r *simulationResult) {
	fmt.Fprintf(out, "=== Winner Selection Uniformity: %d draws over %d participants ===\n\n", r.Trials, r.RosterSize)

	expected := float64(r.Trials) / float64(r.RosterSize)
	fmt.Fprintf(out, "%-6s", "index")
	for place := range r.Counts {
		fmt.Fprintf(out, " %12s", fmt.Sprintf("place %d", place+1))
	}
	fmt.Fprintf(out, " %12s\n", "any")
	for index := int64(0); index < r.RosterSize; index++ {
		fmt.Fprintf(out, "%-6d", index)
		for place := range r.Counts {
			fmt.Fprintf(out, " %12d", r.Counts[place][index])
		}
		bar := strings.Repeat("█", int(float64(r.AnyPlace[index])/(expected*entities.WinnerCount)*20))
		fmt.Fprintf(out, " %12d %s\n", r.AnyPlace[index], bar)
	}

	fmt.Fprintf(out, "\nExpected per place: %.1f\n", expected)
	fmt.Fprintf(out, "χ² critical value (95%%, %d df): %.2f\n", r.RosterSize-1, r.CriticalValue95)
	for place, chi := range r.ChiSquared {
		fmt.Fprintf(out, "  place %d χ²: %8.2f %s\n", place+1, chi, verdict(chi, r.CriticalValue95))
	}
	fmt.Fprintf(out, "  any     χ²: %8.2f %s\n", r.AnyChiSquared, verdict(r.AnyChiSquared, r.CriticalValue95))
}

func verdict(chi, critical float64) string {
	if chi <= critical {
		return "✓ PASS"
	}
	return "✗ FAIL"
}
