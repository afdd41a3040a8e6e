package reader

// Handle identifies a vehicle entity in the host runtime.
type Handle uint32

// StateSource is the read-only capability boundary to the host runtime. Every
// method maps to a single host query.
type StateSource interface {
	IsPlayerInAnyVehicle() (bool, error)
	CurrentVehicle() (Handle, error)
	VehicleExists(v Handle) (bool, error)

	ModelHash(v Handle) (uint32, error)
	ModelName(v Handle) (string, error)
	DisplayNameFromModel(hash uint32) (string, error)
	ModelSeatCount(hash uint32) (int, error)

	VehicleColours(v Handle) (primary, secondary int, err error)
	InteriorColour(v Handle) (int, error)
	DashboardColour(v Handle) (int, error)
	ExtraColours(v Handle) (pearlescent, wheel int, err error)
	WheelType(v Handle) (int, error)
	WindowTint(v Handle) (int, error)

	NumDLCVehicles() (int, error)
	// DLCVehicleData fills out with the registry record at index and reports
	// whether the host returned one.
	DLCVehicleData(index int, out []byte) (bool, error)

	ExtraExists(v Handle, id int) (bool, error)
	ExtraTurnedOn(v Handle, id int) (bool, error)
	ToggleModOn(v Handle, id int) (bool, error)
	VehicleMod(v Handle, slot int) (int, error)
}
