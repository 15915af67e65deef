package entities

import (
	"fmt"

	"rafflepool/domain"
)

// StorageLayout is the ordered list of persistent fields for one ledger version
type StorageLayout struct {
	Version int
	Fields  []string
}

var (
	LayoutV1 = StorageLayout{
		Version: 1,
		Fields: []string{
			"operator",
			"minimum_threshold",
			"pool_balance",
			"unallocated",
			"participant_count",
			"draw_count",
			"initialized",
			"participants",
			"roster",
		},
	}

	// LayoutV2 adds the price getter and records when the upgrade happened
	LayoutV2 = StorageLayout{
		Version: 2,
		Fields:  append(append([]string{}, LayoutV1.Fields...), "upgraded_at"),
	}

	layouts = []StorageLayout{LayoutV1, LayoutV2}
)

// InitialSchemaVersion is the version newly deployed ledgers start at
const InitialSchemaVersion = 1

// LatestSchemaVersion returns the highest known layout version
func LatestSchemaVersion() int {
	return layouts[len(layouts)-1].Version
}

// LayoutFor returns the layout of a version
func LayoutFor(version int) (StorageLayout, bool) {
	for _, layout := range layouts {
		if layout.Version == version {
			return layout, true
		}
	}
	return StorageLayout{}, false
}

// Extends reports whether l keeps every field of prev at the same position
func (l StorageLayout) Extends(prev StorageLayout) bool {
	if l.Version <= prev.Version || len(l.Fields) < len(prev.Fields) {
		return false
	}
	for i, field := range prev.Fields {
		if l.Fields[i] != field {
			return false
		}
	}
	return true
}

// ValidateUpgradePath checks every step from one version to another is an append-only extension
func ValidateUpgradePath(from, to int) error {
	if to <= from {
		return fmt.Errorf("%w: %d is not newer than %d", domain.ErrInvalidUpgrade, to, from)
	}
	prev, ok := LayoutFor(from)
	if !ok {
		return fmt.Errorf("%w: unknown version %d", domain.ErrInvalidUpgrade, from)
	}
	for v := from + 1; v <= to; v++ {
		next, ok := LayoutFor(v)
		if !ok {
			return fmt.Errorf("%w: unknown version %d", domain.ErrInvalidUpgrade, v)
		}
		if !next.Extends(prev) {
			return fmt.Errorf("%w: v%d over v%d", domain.ErrIncompatibleLayout, v, prev.Version)
		}
		prev = next
	}
	return nil
}
