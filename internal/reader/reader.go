// Package reader queries the host runtime for the state of the occupied vehicle.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vehicle-extractor/extension/pkg/core"
)

var (
	// ErrNotInVehicle is returned when the local player is not in a vehicle.
	ErrNotInVehicle = errors.New("player is not in a vehicle")
	// ErrInvalidVehicle is returned when the current vehicle handle does not exist.
	ErrInvalidVehicle = errors.New("no valid vehicle found")
)

const (
	// DLCRecordSize is the size of one DLC vehicle registry record.
	DLCRecordSize = 24
	// dlcHashOffset is where the model hash sits inside a DLC record.
	dlcHashOffset = 8

	// displayNameNotFound is what the host returns for unknown display names.
	displayNameNotFound = "CARNOTFOUND"
)

// RawState is everything read from the host for one vehicle, before any
// policy is applied.
type RawState struct {
	ModelName   string
	ModelHash   uint32
	SeatCount   int
	Primary     core.Optional[int]
	Secondary   core.Optional[int]
	Interior    int
	Dashboard   int
	Pearlescent int
	Wheel       int
	WheelType   int
	WindowTint  int
	IsDLC       bool

	// Extras holds every extra present on the model, on or off.
	Extras []core.VehicleExtra
	// Toggles holds only toggles that are on.
	Toggles []core.VehicleToggle
	// Mods holds only slots with an installed mod.
	Mods []core.VehicleMod
}

// Reader issues the fixed sequence of host queries for a vehicle.
type Reader struct {
	src    StateSource
	alloc  Allocator
	logger *slog.Logger
}

// New creates a Reader. A nil allocator falls back to HeapAllocator.
func New(src StateSource, alloc Allocator, logger *slog.Logger) *Reader {
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{src: src, alloc: alloc, logger: logger}
}

// Target checks the two hard preconditions and returns the vehicle to read.
func (r *Reader) Target() (Handle, error) {
	inVehicle, err := r.src.IsPlayerInAnyVehicle()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotInVehicle, err)
	}
	if !inVehicle {
		return 0, ErrNotInVehicle
	}

	v, err := r.src.CurrentVehicle()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVehicle, err)
	}
	exists, err := r.src.VehicleExists(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVehicle, err)
	}
	if !exists {
		return 0, ErrInvalidVehicle
	}
	return v, nil
}

// Read collects the vehicle state. Failed queries are logged and replaced with
// defaults; Read itself never fails.
func (r *Reader) Read(v Handle) RawState {
	var st RawState

	hash, err := r.src.ModelHash(v)
	hashOK := err == nil
	if err != nil {
		r.logger.Warn("Failed to get model hash", "vehicle", v, "error", err)
	}
	st.ModelHash = hash

	st.ModelName = r.modelName(v, hash, hashOK)
	if hashOK {
		st.SeatCount = r.seatCount(hash)
	}

	if primary, secondary, err := r.src.VehicleColours(v); err != nil {
		r.logger.Warn("Failed to get vehicle colours", "vehicle", v, "error", err)
	} else {
		st.Primary = core.Some(primary)
		st.Secondary = core.Some(secondary)
	}

	st.Interior = r.intField("interior colour", v, r.src.InteriorColour)
	st.Dashboard = r.intField("dashboard colour", v, r.src.DashboardColour)

	if pearl, wheel, err := r.src.ExtraColours(v); err != nil {
		r.logger.Warn("Failed to get extra colours", "vehicle", v, "error", err)
	} else {
		st.Pearlescent = pearl
		st.Wheel = wheel
	}

	st.WheelType = r.intField("wheel type", v, r.src.WheelType)
	st.WindowTint = r.intField("window tint", v, r.src.WindowTint)

	if hashOK {
		st.IsDLC = r.isDLCVehicle(hash)
	}

	st.Extras = r.extras(v)
	st.Toggles = r.toggles(v)
	st.Mods = r.mods(v)

	return st
}

func (r *Reader) intField(name string, v Handle, query func(Handle) (int, error)) int {
	val, err := query(v)
	if err != nil {
		r.logger.Warn("Failed to get "+name, "vehicle", v, "error", err)
		return 0
	}
	return val
}

// modelName prefers the display name and falls back to the internal model
// name. The result is uppercased.
func (r *Reader) modelName(v Handle, hash uint32, hashOK bool) string {
	if hashOK {
		name, err := r.src.DisplayNameFromModel(hash)
		switch {
		case err != nil:
			r.logger.Warn("Failed to get vehicle display name", "hash", hash, "error", err)
		case name == "" || name == displayNameNotFound:
			r.logger.Debug("No display name for model, using model name", "hash", hash)
		default:
			return strings.ToUpper(name)
		}
	}

	name, err := r.src.ModelName(v)
	if err != nil {
		r.logger.Warn("Failed to get vehicle model name", "vehicle", v, "error", err)
		return ""
	}
	return strings.ToUpper(name)
}

func (r *Reader) seatCount(hash uint32) int {
	seats, err := r.src.ModelSeatCount(hash)
	if err != nil {
		r.logger.Warn("Failed to get seat count", "hash", hash, "error", err)
		return 0
	}
	return seats
}

// isDLCVehicle walks the DLC registry and stops at the first record whose
// model hash matches.
func (r *Reader) isDLCVehicle(hash uint32) bool {
	count, err := r.src.NumDLCVehicles()
	if err != nil {
		r.logger.Warn("Failed to get DLC vehicle count", "error", err)
		return false
	}

	for i := 0; i < count; i++ {
		match, err := r.probeDLCRecord(i, hash)
		if err != nil {
			r.logger.Debug("DLC record probe failed", "index", i, "error", err)
			continue
		}
		if match {
			return true
		}
	}
	return false
}

// probeDLCRecord reads one registry record into a scratch buffer that lives
// exactly as long as this call.
func (r *Reader) probeDLCRecord(index int, hash uint32) (bool, error) {
	scratch, err := r.alloc.Alloc(DLCRecordSize)
	if err != nil {
		return false, fmt.Errorf("allocating DLC record buffer: %w", err)
	}
	defer scratch.Release()

	buf := scratch.Bytes()
	ok, err := r.src.DLCVehicleData(index, buf)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if len(buf) < dlcHashOffset+8 {
		return false, fmt.Errorf("DLC record too short: %d bytes", len(buf))
	}

	dlcHash := uint32(binary.LittleEndian.Uint64(buf[dlcHashOffset:]))
	return dlcHash == hash, nil
}

func (r *Reader) extras(v Handle) []core.VehicleExtra {
	var extras []core.VehicleExtra
	for id := core.ExtraSlotMin; id <= core.ExtraSlotMax; id++ {
		exists, err := r.src.ExtraExists(v, id)
		if err != nil {
			r.logger.Warn("Failed to check extra", "id", id, "error", err)
			continue
		}
		if !exists {
			continue
		}
		on, err := r.src.ExtraTurnedOn(v, id)
		if err != nil {
			r.logger.Warn("Failed to get extra state", "id", id, "error", err)
			continue
		}
		extras = append(extras, core.VehicleExtra{ID: id, IsTurnedOn: on})
	}
	return extras
}

func (r *Reader) toggles(v Handle) []core.VehicleToggle {
	var toggles []core.VehicleToggle
	for id := core.ToggleSlotMin; id <= core.ToggleSlotMax; id++ {
		on, err := r.src.ToggleModOn(v, id)
		if err != nil {
			r.logger.Warn("Failed to get toggle state", "id", id, "error", err)
			continue
		}
		if on {
			toggles = append(toggles, core.VehicleToggle{ID: id, IsTurnedOn: true})
		}
	}
	return toggles
}

func (r *Reader) mods(v Handle) []core.VehicleMod {
	var mods []core.VehicleMod
	for slot := core.ModSlotMin; slot <= core.ModSlotMax; slot++ {
		if core.IsToggleSlot(slot) {
			continue
		}
		index, err := r.src.VehicleMod(v, slot)
		if err != nil {
			r.logger.Warn("Failed to get vehicle mod", "slot", slot, "error", err)
			continue
		}
		if index >= 0 {
			mods = append(mods, core.VehicleMod{ID: slot, Output: index})
		}
	}
	return mods
}
