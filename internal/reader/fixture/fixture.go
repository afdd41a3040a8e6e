// Package fixture provides a StateSource backed by fixed values, used by tests
// and by the offline render command.
package fixture

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/vehicle-extractor/extension/internal/reader"
)

// Vehicle describes one vehicle as the host would report it. The zero value is
// a player sitting in an existing vehicle with nothing installed.
type Vehicle struct {
	NotInVehicle bool   `json:"notInVehicle"`
	Missing      bool   `json:"missing"`
	Handle       uint32 `json:"handle"`

	Hash        uint32 `json:"modelHash"`
	Name        string `json:"modelName"`
	DisplayName string `json:"displayName"`
	Seats       int    `json:"seats"`

	Primary     int `json:"primary"`
	Secondary   int `json:"secondary"`
	Interior    int `json:"interior"`
	Dashboard   int `json:"dashboard"`
	Pearlescent int `json:"pearlescent"`
	Wheel       int `json:"wheel"`
	WheelStyle  int `json:"wheelType"`
	Tint        int `json:"windowTint"`

	// DLCHashes is the host's DLC registry, in index order.
	DLCHashes []uint32 `json:"dlcHashes"`

	// Extras maps each extra present on the model to its on/off state.
	Extras map[int]bool `json:"extras"`
	// Toggles maps toggle slots to their state. Missing slots are off.
	Toggles map[int]bool `json:"toggles"`
	// Mods maps mod slots to installed indices. Missing slots report -1.
	Mods map[int]int `json:"mods"`

	// Fail makes the named query return an error with the given message.
	Fail map[string]string `json:"fail"`
}

// Load reads a Vehicle from a JSON file.
func Load(path string) (*Vehicle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading fixture: %w", err)
	}
	var v Vehicle
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("error parsing fixture: %w", err)
	}
	return &v, nil
}

var _ reader.StateSource = (*Vehicle)(nil)

func (f *Vehicle) fail(query string) error {
	if msg, ok := f.Fail[query]; ok {
		return errors.New(msg)
	}
	return nil
}

func (f *Vehicle) IsPlayerInAnyVehicle() (bool, error) {
	if err := f.fail("IsPlayerInAnyVehicle"); err != nil {
		return false, err
	}
	return !f.NotInVehicle, nil
}

func (f *Vehicle) CurrentVehicle() (reader.Handle, error) {
	if err := f.fail("CurrentVehicle"); err != nil {
		return 0, err
	}
	return reader.Handle(f.Handle), nil
}

func (f *Vehicle) VehicleExists(reader.Handle) (bool, error) {
	if err := f.fail("VehicleExists"); err != nil {
		return false, err
	}
	return !f.Missing, nil
}

func (f *Vehicle) ModelHash(reader.Handle) (uint32, error) {
	if err := f.fail("ModelHash"); err != nil {
		return 0, err
	}
	return f.Hash, nil
}

func (f *Vehicle) ModelName(reader.Handle) (string, error) {
	if err := f.fail("ModelName"); err != nil {
		return "", err
	}
	return f.Name, nil
}

func (f *Vehicle) DisplayNameFromModel(uint32) (string, error) {
	if err := f.fail("DisplayNameFromModel"); err != nil {
		return "", err
	}
	return f.DisplayName, nil
}

func (f *Vehicle) ModelSeatCount(uint32) (int, error) {
	if err := f.fail("ModelSeatCount"); err != nil {
		return 0, err
	}
	return f.Seats, nil
}

func (f *Vehicle) VehicleColours(reader.Handle) (int, int, error) {
	if err := f.fail("VehicleColours"); err != nil {
		return 0, 0, err
	}
	return f.Primary, f.Secondary, nil
}

func (f *Vehicle) InteriorColour(reader.Handle) (int, error) {
	if err := f.fail("InteriorColour"); err != nil {
		return 0, err
	}
	return f.Interior, nil
}

func (f *Vehicle) DashboardColour(reader.Handle) (int, error) {
	if err := f.fail("DashboardColour"); err != nil {
		return 0, err
	}
	return f.Dashboard, nil
}

func (f *Vehicle) ExtraColours(reader.Handle) (int, int, error) {
	if err := f.fail("ExtraColours"); err != nil {
		return 0, 0, err
	}
	return f.Pearlescent, f.Wheel, nil
}

func (f *Vehicle) WheelType(reader.Handle) (int, error) {
	if err := f.fail("WheelType"); err != nil {
		return 0, err
	}
	return f.WheelStyle, nil
}

func (f *Vehicle) WindowTint(reader.Handle) (int, error) {
	if err := f.fail("WindowTint"); err != nil {
		return 0, err
	}
	return f.Tint, nil
}

func (f *Vehicle) NumDLCVehicles() (int, error) {
	if err := f.fail("NumDLCVehicles"); err != nil {
		return 0, err
	}
	return len(f.DLCHashes), nil
}

// DLCVehicleData writes a registry record with the model hash at byte 8.
func (f *Vehicle) DLCVehicleData(index int, out []byte) (bool, error) {
	if err := f.fail("DLCVehicleData"); err != nil {
		return false, err
	}
	if index < 0 || index >= len(f.DLCHashes) || len(out) < 16 {
		return false, nil
	}
	binary.LittleEndian.PutUint64(out[8:16], uint64(f.DLCHashes[index]))
	return true, nil
}

func (f *Vehicle) ExtraExists(_ reader.Handle, id int) (bool, error) {
	if err := f.fail("ExtraExists"); err != nil {
		return false, err
	}
	_, ok := f.Extras[id]
	return ok, nil
}

func (f *Vehicle) ExtraTurnedOn(_ reader.Handle, id int) (bool, error) {
	if err := f.fail("ExtraTurnedOn"); err != nil {
		return false, err
	}
	return f.Extras[id], nil
}

func (f *Vehicle) ToggleModOn(_ reader.Handle, id int) (bool, error) {
	if err := f.fail("ToggleModOn"); err != nil {
		return false, err
	}
	return f.Toggles[id], nil
}

func (f *Vehicle) VehicleMod(_ reader.Handle, slot int) (int, error) {
	if err := f.fail("VehicleMod"); err != nil {
		return 0, err
	}
	if idx, ok := f.Mods[slot]; ok {
		return idx, nil
	}
	return -1, nil
}

// Adder returns the reference vehicle used across tests.
func Adder() *Vehicle {
	return &Vehicle{
		Handle:      4242,
		Hash:        0xB779A091,
		Name:        "adder",
		DisplayName: "ADDER",
		Seats:       2,
		Primary:     12,
		Secondary:   0,
		Interior:    1,
		Dashboard:   1,
		WheelStyle:  5,
		Tint:        2,
		Extras:      map[int]bool{1: true, 3: false},
		Toggles:     map[int]bool{18: true},
		Mods:        map[int]int{0: 3},
	}
}
