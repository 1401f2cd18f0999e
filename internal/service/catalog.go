package service

// defaultUnitPrice applies to any SKU without a catalogue entry.
const defaultUnitPrice = 29.99

// PriceCatalog is the static per-SKU pricing used when converting a
// reservation into an order. Pricing is not owned by this service; the
// catalogue is fixed at construction.
type PriceCatalog map[string]float64

// DefaultCatalog returns the built-in flash-sale catalogue.
func DefaultCatalog() PriceCatalog {
	return PriceCatalog{
		"FLASH-001": 29.99,
		"FLASH-002": 49.99,
		"FLASH-003": 99.99,
	}
}

// Price returns the unit price for a SKU, falling back to the default.
func (c PriceCatalog) Price(sku string) float64 {
	if price, ok := c[sku]; ok {
		return price
	}
	return defaultUnitPrice
}
