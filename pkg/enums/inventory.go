package enums

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InventoryAction labels a row of an inventory item's audit trail.
type InventoryAction string

const (
	InventoryActionAdd    InventoryAction = "Add"
	InventoryActionUpdate InventoryAction = "Update"
	InventoryActionDeduct InventoryAction = "Deduct"
)

var validInventoryActions = []InventoryAction{
	InventoryActionAdd,
	InventoryActionUpdate,
	InventoryActionDeduct,
}

func (a InventoryAction) String() string {
	return string(a)
}

func (a InventoryAction) IsValid() bool {
	for _, candidate := range validInventoryActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// Unit is a stock unit. Only the canonical units are persisted; kilograms and
// liters are accepted on input and converted.
type Unit string

const (
	UnitGrams       Unit = "grams"
	UnitMilliliters Unit = "milliliters"
	UnitPieces      Unit = "pieces"
	UnitBoxes       Unit = "boxes"
	UnitKilograms   Unit = "kilograms"
	UnitLiters      Unit = "liters"
)

var canonicalUnits = []Unit{
	UnitGrams,
	UnitMilliliters,
	UnitPieces,
	UnitBoxes,
}

var unitConversions = map[Unit]struct {
	base   Unit
	factor int64
}{
	UnitKilograms: {base: UnitGrams, factor: 1000},
	UnitLiters:    {base: UnitMilliliters, factor: 1000},
}

func (u Unit) String() string {
	return string(u)
}

// IsCanonical reports whether the unit is stored as-is.
func (u Unit) IsCanonical() bool {
	for _, candidate := range canonicalUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnit accepts canonical and convertible units, ignoring case.
func ParseUnit(value string) (Unit, error) {
	trimmed := Unit(strings.ToLower(strings.TrimSpace(value)))
	if trimmed.IsCanonical() {
		return trimmed, nil
	}
	if _, ok := unitConversions[trimmed]; ok {
		return trimmed, nil
	}
	return "", fmt.Errorf("invalid unit %q", value)
}

// NormalizeQuantity converts quantity expressed in u into its canonical unit.
func NormalizeQuantity(quantity decimal.Decimal, u Unit) (decimal.Decimal, Unit, error) {
	if u.IsCanonical() {
		return quantity, u, nil
	}
	conv, ok := unitConversions[u]
	if !ok {
		return decimal.Zero, "", fmt.Errorf("invalid unit %q", u)
	}
	return quantity.Mul(decimal.NewFromInt(conv.factor)), conv.base, nil
}
