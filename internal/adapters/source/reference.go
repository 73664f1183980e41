package source

// streetCircuits are the curated urban circuits, used when circuits.csv has
// no urban column.
var streetCircuits = map[int]struct{}{
	6:  {}, // Monaco
	12: {}, // Valencia
	15: {}, // Marina Bay
	29: {}, // Adelaide
	32: {}, // Mexico City
	33: {}, // Phoenix
	37: {}, // Detroit
	42: {}, // Dallas
	43: {}, // Long Beach
	44: {}, // Las Vegas (Caesars Palace)
	49: {}, // Montjuic
	71: {}, // Sochi
	73: {}, // Baku
	77: {}, // Jeddah
	79: {}, // Miami
	80: {}, // Las Vegas Strip
}

// IsStreetCircuit reports whether circuitID is in the curated urban set.
func IsStreetCircuit(circuitID int) bool {
	_, ok := streetCircuits[circuitID]
	return ok
}
