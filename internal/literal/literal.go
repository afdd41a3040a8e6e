// Package literal renders a VehicleSnapshot as a DispatchableVehicle
// object-construction expression.
package literal

import (
	"fmt"
	"strings"
	"time"

	"github.com/vehicle-extractor/extension/pkg/core"
)

// TimestampLayout formats the comment line written before each literal.
const TimestampLayout = "1/2/2006 3:04:05 PM"

const indent = "    "

// Render returns the literal for s. Field order is fixed; absent optional
// fields and empty lists produce no output at all. The result ends with a
// newline.
func Render(s core.VehicleSnapshot) string {
	var b strings.Builder

	line(&b, 0, "new DispatchableVehicle() {")
	line(&b, 1, fmt.Sprintf("DebugName = %s,", csString(s.DebugName)))
	line(&b, 1, fmt.Sprintf("ModelName = %s,", csString(s.ModelName)))
	intField(&b, 1, "AmbientSpawnChance", s.AmbientSpawnChance)
	intField(&b, 1, "WantedSpawnChance", s.WantedSpawnChance)
	optionalField(&b, 1, "MinOccupants", s.MinOccupants)
	optionalField(&b, 1, "MaxOccupants", s.MaxOccupants)
	optionalField(&b, 1, "RequiredPrimaryColorID", s.RequiredPrimaryColorID)
	optionalField(&b, 1, "RequiredSecondaryColorID", s.RequiredSecondaryColorID)

	v := s.RequiredVariation
	line(&b, 1, "RequiredVariation = new VehicleVariation() {")
	intField(&b, 2, "PrimaryColor", v.PrimaryColor)
	intField(&b, 2, "SecondaryColor", v.SecondaryColor)
	intField(&b, 2, "PearlescentColor", v.PearlescentColor)
	intField(&b, 2, "InteriorColor", v.InteriorColor)
	intField(&b, 2, "DashboardColor", v.DashboardColor)
	intField(&b, 2, "WheelColor", v.WheelColor)
	intField(&b, 2, "WheelType", v.WheelType)
	intField(&b, 2, "WindowTint", v.WindowTint)

	if len(v.Extras) > 0 {
		line(&b, 2, "VehicleExtras = new List<VehicleExtra>() {")
		for _, e := range v.Extras {
			line(&b, 3, fmt.Sprintf("new VehicleExtra() { ID = %d, IsTurnedOn = %t },", e.ID, e.IsTurnedOn))
		}
		line(&b, 2, "},")
	}

	if len(v.Toggles) > 0 {
		line(&b, 2, "VehicleToggles = new List<VehicleToggle>() {")
		for _, t := range v.Toggles {
			line(&b, 3, fmt.Sprintf("new VehicleToggle() { ID = %d, IsTurnedOn = %t },", t.ID, t.IsTurnedOn))
		}
		line(&b, 2, "},")
	}

	if len(v.Mods) > 0 {
		line(&b, 2, "VehicleMods = new List<VehicleMod>() {")
		for _, m := range v.Mods {
			line(&b, 3, fmt.Sprintf("new VehicleMod() { ID = %d, Output = %d },", m.ID, m.Output))
		}
		line(&b, 2, "},")
	}

	line(&b, 1, "},")
	line(&b, 1, fmt.Sprintf("RequiresDLC = %t,", s.RequiresDLC))
	line(&b, 0, "}")

	return b.String()
}

// Entry wraps a rendered literal for the output file: a timestamp comment,
// the literal and a trailing blank line.
func Entry(ts time.Time, literal string) string {
	var b strings.Builder
	b.WriteString("// Extracted at ")
	b.WriteString(ts.Format(TimestampLayout))
	b.WriteByte('\n')
	b.WriteString(literal)
	if !strings.HasSuffix(literal, "\n") {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

var csEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// csString writes s as a C# regular string literal. Only the backslash and
// the double quote are escaped; everything else is copied as is.
func csString(s string) string {
	return `"` + csEscaper.Replace(s) + `"`
}

func line(b *strings.Builder, depth int, s string) {
	b.WriteString(strings.Repeat(indent, depth))
	b.WriteString(s)
	b.WriteByte('\n')
}

func intField(b *strings.Builder, depth int, name string, v int) {
	line(b, depth, fmt.Sprintf("%s = %d,", name, v))
}

func optionalField(b *strings.Builder, depth int, name string, o core.Optional[int]) {
	if v, ok := o.Get(); ok {
		intField(b, depth, name, v)
	}
}
