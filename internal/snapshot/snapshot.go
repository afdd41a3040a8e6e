// Package snapshot assembles reader output into an immutable VehicleSnapshot.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/vehicle-extractor/extension/internal/colors"
	"github.com/vehicle-extractor/extension/internal/reader"
	"github.com/vehicle-extractor/extension/pkg/core"
)

// Policy controls which optional parts of the raw state end up in a snapshot.
type Policy struct {
	Name string
	// TrackOccupants adds MinOccupants and MaxOccupants.
	TrackOccupants bool
	// KeepOffExtras records extras that exist but are turned off.
	KeepOffExtras bool
	// MapColors passes every colour through colors.Map.
	MapColors bool
}

var (
	// PolicyDispatch records everything the host reports, with raw paint indices.
	PolicyDispatch = Policy{Name: "dispatch", TrackOccupants: true, KeepOffExtras: true}
	// PolicyCompact drops occupancy and off extras and maps colours.
	PolicyCompact = Policy{Name: "compact", MapColors: true}
)

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyDispatch.Name:
		return PolicyDispatch, nil
	case PolicyCompact.Name:
		return PolicyCompact, nil
	default:
		return Policy{}, fmt.Errorf("unknown extract policy: %s", name)
	}
}

// DebugName derives the debug identifier for a model.
func DebugName(modelName string) string {
	return modelName + "_PB"
}

// Build creates a snapshot from raw state. It performs no I/O and always
// returns the same snapshot for the same inputs.
func Build(raw reader.RawState, p Policy) core.VehicleSnapshot {
	modelName := strings.ToUpper(raw.ModelName)
	color := func(c int) int {
		if p.MapColors {
			return colors.Map(c)
		}
		return c
	}

	s := core.VehicleSnapshot{
		DebugName:          DebugName(modelName),
		ModelName:          modelName,
		AmbientSpawnChance: core.DefaultAmbientSpawnChance,
		WantedSpawnChance:  core.DefaultWantedSpawnChance,
		RequiresDLC:        raw.IsDLC,
	}

	if p.TrackOccupants {
		s.MinOccupants = core.Some(core.DefaultMinOccupants)
		s.MaxOccupants = core.Some(raw.SeatCount)
	}

	primary, primaryOK := raw.Primary.Get()
	secondary, secondaryOK := raw.Secondary.Get()
	if primaryOK {
		s.RequiredPrimaryColorID = core.Some(color(primary))
	}
	if secondaryOK {
		s.RequiredSecondaryColorID = core.Some(color(secondary))
	}

	s.RequiredVariation = core.VehicleVariation{
		PrimaryColor:     color(primary),
		SecondaryColor:   color(secondary),
		InteriorColor:    color(raw.Interior),
		DashboardColor:   color(raw.Dashboard),
		WheelColor:       color(raw.Wheel),
		PearlescentColor: color(raw.Pearlescent),
		WheelType:        raw.WheelType,
		WindowTint:       raw.WindowTint,
		Extras:           extras(raw.Extras, p.KeepOffExtras),
		Toggles:          toggles(raw.Toggles),
		Mods:             mods(raw.Mods),
	}
	return s
}

// extras copies valid, unique extras. Off extras are kept only when asked.
func extras(in []core.VehicleExtra, keepOff bool) []core.VehicleExtra {
	seen := make(map[int]bool, len(in))
	out := make([]core.VehicleExtra, 0, len(in))
	for _, e := range in {
		if !core.IsExtraSlot(e.ID) || seen[e.ID] || (!keepOff && !e.IsTurnedOn) {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

func toggles(in []core.VehicleToggle) []core.VehicleToggle {
	seen := make(map[int]bool, len(in))
	out := make([]core.VehicleToggle, 0, len(in))
	for _, t := range in {
		if !core.IsToggleSlot(t.ID) || seen[t.ID] || !t.IsTurnedOn {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func mods(in []core.VehicleMod) []core.VehicleMod {
	seen := make(map[int]bool, len(in))
	out := make([]core.VehicleMod, 0, len(in))
	for _, m := range in {
		if !core.IsModSlot(m.ID) || seen[m.ID] || m.Output < 0 {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}
