package gold

import (
	"encoding/json"
	"fmt"
)

// Category is the closed set of item kinds. Each value has its own pricing
// rule in ItemProcessor; adding one means adding a case to every switch on
// Category (TestCategories_AllHavePricing fails otherwise).
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMelted
	CategoryManufactured
	CategoryCoin
	CategoryBullion
	CategoryJewelry
)

// AllCategories lists every valid category.
var AllCategories = []Category{
	CategoryMelted,
	CategoryManufactured,
	CategoryCoin,
	CategoryBullion,
	CategoryJewelry,
}

var categoryNames = map[Category]string{
	CategoryMelted:       "melted",
	CategoryManufactured: "manufactured",
	CategoryCoin:         "coin",
	CategoryBullion:      "bullion",
	CategoryJewelry:      "jewelry",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return "unknown"
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// WeightPriced reports whether value is weight × unit price.
func (c Category) WeightPriced() bool {
	switch c {
	case CategoryMelted, CategoryManufactured, CategoryBullion:
		return true
	case CategoryCoin, CategoryJewelry:
		return false
	default:
		return false
	}
}

// ParseCategory maps a stored or wire name to its Category.
func ParseCategory(s string) (Category, error) {
	for c, n := range categoryNames {
		if n == s {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
