package core

// Default spawn weighting written into every snapshot.
const (
	DefaultAmbientSpawnChance = 75
	DefaultWantedSpawnChance  = 75
	DefaultMinOccupants       = 1
)

// Slot ranges. All bounds are inclusive.
const (
	ExtraSlotMin  = 1
	ExtraSlotMax  = 12
	ToggleSlotMin = 17
	ToggleSlotMax = 22
	ModSlotMin    = 0
	ModSlotMax    = 48
)

// IsExtraSlot reports whether id is a valid extra slot.
func IsExtraSlot(id int) bool { return id >= ExtraSlotMin && id <= ExtraSlotMax }

// IsToggleSlot reports whether id is a valid toggle slot.
func IsToggleSlot(id int) bool { return id >= ToggleSlotMin && id <= ToggleSlotMax }

// IsModSlot reports whether id is a valid mod slot. Toggle slots share the
// mod index space but are never mods.
func IsModSlot(id int) bool {
	return id >= ModSlotMin && id <= ModSlotMax && !IsToggleSlot(id)
}

// VehicleSnapshot is a point-in-time record of one vehicle configuration.
// It is built once per extraction and never mutated afterwards.
type VehicleSnapshot struct {
	DebugName                string           `json:"debugName"`
	ModelName                string           `json:"modelName"`
	AmbientSpawnChance       int              `json:"ambientSpawnChance"`
	WantedSpawnChance        int              `json:"wantedSpawnChance"`
	MinOccupants             Optional[int]    `json:"minOccupants"`
	MaxOccupants             Optional[int]    `json:"maxOccupants"`
	RequiredPrimaryColorID   Optional[int]    `json:"requiredPrimaryColorId"`
	RequiredSecondaryColorID Optional[int]    `json:"requiredSecondaryColorId"`
	RequiredVariation        VehicleVariation `json:"requiredVariation"`
	RequiresDLC              bool             `json:"requiresDlc"`
}

// VehicleVariation holds paint, wheel and slot state.
type VehicleVariation struct {
	PrimaryColor     int             `json:"primaryColor"`
	SecondaryColor   int             `json:"secondaryColor"`
	InteriorColor    int             `json:"interiorColor"`
	DashboardColor   int             `json:"dashboardColor"`
	WheelColor       int             `json:"wheelColor"`
	PearlescentColor int             `json:"pearlescentColor"`
	WheelType        int             `json:"wheelType"`
	WindowTint       int             `json:"windowTint"`
	Extras           []VehicleExtra  `json:"extras"`
	Toggles          []VehicleToggle `json:"toggles"`
	Mods             []VehicleMod    `json:"mods"`
}

// VehicleExtra is a model extra (slots 1-12).
type VehicleExtra struct {
	ID         int  `json:"id"`
	IsTurnedOn bool `json:"isTurnedOn"`
}

// VehicleToggle is a toggle mod (slots 17-22).
type VehicleToggle struct {
	ID         int  `json:"id"`
	IsTurnedOn bool `json:"isTurnedOn"`
}

// VehicleMod is an installed mod index for a mod slot.
type VehicleMod struct {
	ID     int `json:"id"`
	Output int `json:"output"`
}
