// Package report renders a priced estimate as the labeled lines shown to users.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Simplici0/costcalc/internal/pricing"
)

// LoadedMessage is shown once a model has been parsed.
const LoadedMessage = "STEP file loaded successfully."

// ShapeVolume is the line shown for the parsed volume before pricing.
func ShapeVolume(cm3 float64) string {
	return fmt.Sprintf("Volume of the shape: %.2f cubic units", cm3)
}

// Lines returns the report in display order. Dataset values are echoed as
// read; derived values are rounded to two decimals.
func Lines(r pricing.Report) []string {
	return []string{
		"Density: " + raw(r.Density) + " g/cm³",
		fmt.Sprintf("Volume: %.2f cm³", r.Volume),
		fmt.Sprintf("Mass: %.2f g", r.Mass),
		"Cost of material per kg: " + raw(r.CostPerKg) + " INR",
		fmt.Sprintf("MOQ: %d units", r.MOQ),
		"Raw Material Wastage Percentage: " + raw(r.WastagePercent) + "%",
		fmt.Sprintf("Total Cost: %.2f INR", r.TotalCost),
	}
}

// Text joins Lines with newlines and a trailing newline.
func Text(r pricing.Report) string {
	return strings.Join(Lines(r), "\n") + "\n"
}

func raw(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
