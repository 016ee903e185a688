package pricing

import "github.com/Simplici0/costcalc/internal/catalog"

// Report contains every intermediate and final value of one estimate.
type Report struct {
	Volume         float64 // cm3
	Density        float64 // g/cm3
	Mass           float64 // g
	CostPerKg      float64
	MOQ            int
	WastagePercent float64
	MOQMass        float64 // g, mass including wastage allowance
	TotalCost      float64
}

// Calculate prices a part of the given volume. No bounds are enforced: a zero
// or negative volume yields a zero or negative cost.
func Calculate(volume float64, m catalog.Material, w catalog.Wastage) Report {
	mass := m.Density * volume
	moqMass := mass + mass*w.Percent/100.0
	totalCost := moqMass * m.CostPerKg / 1000.0

	return Report{
		Volume:         volume,
		Density:        m.Density,
		Mass:           mass,
		CostPerKg:      m.CostPerKg,
		MOQ:            w.MOQ,
		WastagePercent: w.Percent,
		MOQMass:        moqMass,
		TotalCost:      totalCost,
	}
}
