// Package natives implements the reader, trigger and notifier capabilities on
// top of the host's native-call function.
//
// Every call goes over a small text wire: arguments are joined with commas and
// the host writes its result into an output buffer. Scalars come back as
// decimal text, booleans as "1"/"0" (or "true"/"false"), pairs as "a,b" or
// "[a,b]". Text results may be quoted with doubled inner quotes.
// GET_DLC_VEHICLE_DATA is the exception: the host copies the raw registry
// record into the caller's buffer and returns the number of bytes written.
package natives

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vehicle-extractor/extension/internal/reader"
	"github.com/vehicle-extractor/extension/internal/util"
)

// Native names understood by the host.
const (
	NativeIsPlayerInAnyVehicle = "IS_PLAYER_IN_ANY_VEHICLE"
	NativeCurrentVehicle       = "GET_CURRENT_VEHICLE"
	NativeVehicleExists        = "DOES_ENTITY_EXIST"
	NativeModelHash            = "GET_ENTITY_MODEL"
	NativeModelName            = "GET_MODEL_NAME"
	NativeDisplayName          = "GET_DISPLAY_NAME_FROM_VEHICLE_MODEL"
	NativeSeatCount            = "GET_VEHICLE_MODEL_NUMBER_OF_SEATS"
	NativeColours              = "GET_VEHICLE_COLOURS"
	NativeInteriorColour       = "GET_VEHICLE_INTERIOR_COLOR"
	NativeDashboardColour      = "GET_VEHICLE_DASHBOARD_COLOR"
	NativeExtraColours         = "GET_VEHICLE_EXTRA_COLOURS"
	NativeWheelType            = "GET_VEHICLE_WHEEL_TYPE"
	NativeWindowTint           = "GET_VEHICLE_WINDOW_TINT"
	NativeNumDLCVehicles       = "GET_NUM_DLC_VEHICLES"
	NativeDLCVehicleData       = "GET_DLC_VEHICLE_DATA"
	NativeExtraExists          = "DOES_EXTRA_EXIST"
	NativeExtraTurnedOn        = "IS_VEHICLE_EXTRA_TURNED_ON"
	NativeToggleModOn          = "IS_TOGGLE_MOD_ON"
	NativeVehicleMod           = "GET_VEHICLE_MOD"
	NativeIsKeyDown            = "IS_KEY_DOWN"
	NativeNotify               = "NOTIFY"
)

// resultSize is the output buffer used for text results.
const resultSize = 256

// ErrNoInvoker is returned when no native-call function has been registered.
var ErrNoInvoker = errors.New("no native invoker registered")

// Invoker calls one host native. It writes the raw result into out and
// returns the number of bytes written.
type Invoker interface {
	Invoke(name, args string, out []byte) (int, error)
}

// Source answers reader, trigger and notifier queries through an Invoker.
type Source struct {
	inv    Invoker
	logger *slog.Logger
}

// New creates a Source. A nil logger falls back to slog.Default.
func New(inv Invoker, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{inv: inv, logger: logger}
}

var _ reader.StateSource = (*Source)(nil)

func (s *Source) call(name string, args ...string) (string, error) {
	if s.inv == nil {
		return "", ErrNoInvoker
	}
	buf := make([]byte, resultSize)
	n, err := s.inv.Invoke(name, strings.Join(args, ","), buf)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if n < 0 || n > len(buf) {
		return "", fmt.Errorf("%s: invalid result length %d", name, n)
	}
	return util.Unquote(string(buf[:n])), nil
}

func (s *Source) callInt(name string, args ...string) (int, error) {
	out, err := s.call(name, args...)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("%s: parsing %q: %w", name, out, err)
	}
	return v, nil
}

func (s *Source) callBool(name string, args ...string) (bool, error) {
	out, err := s.call(name, args...)
	if err != nil {
		return false, err
	}
	return parseBool(name, out)
}

func (s *Source) callPair(name string, args ...string) (int, int, error) {
	out, err := s.call(name, args...)
	if err != nil {
		return 0, 0, err
	}
	parts := util.SplitArray(out)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%s: expected pair, got %q", name, out)
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: parsing %q: %w", name, parts[0], err)
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: parsing %q: %w", name, parts[1], err)
	}
	return a, b, nil
}

func parseBool(name, s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	default:
		return false, fmt.Errorf("%s: parsing %q as bool", name, s)
	}
}

func handleArg(v reader.Handle) string {
	return strconv.FormatUint(uint64(v), 10)
}

func (s *Source) IsPlayerInAnyVehicle() (bool, error) {
	return s.callBool(NativeIsPlayerInAnyVehicle)
}

func (s *Source) CurrentVehicle() (reader.Handle, error) {
	out, err := s.call(NativeCurrentVehicle)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(out, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: parsing %q: %w", NativeCurrentVehicle, out, err)
	}
	return reader.Handle(v), nil
}

func (s *Source) VehicleExists(v reader.Handle) (bool, error) {
	return s.callBool(NativeVehicleExists, handleArg(v))
}

// ModelHash accepts both signed and unsigned decimal hashes; the host's
// natives report them as signed 32-bit integers.
func (s *Source) ModelHash(v reader.Handle) (uint32, error) {
	out, err := s.call(NativeModelHash, handleArg(v))
	if err != nil {
		return 0, err
	}
	if h, err := strconv.ParseUint(out, 10, 32); err == nil {
		return uint32(h), nil
	}
	h, err := strconv.ParseInt(out, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: parsing %q: %w", NativeModelHash, out, err)
	}
	return uint32(int32(h)), nil
}

func (s *Source) ModelName(v reader.Handle) (string, error) {
	return s.call(NativeModelName, handleArg(v))
}

func (s *Source) DisplayNameFromModel(hash uint32) (string, error) {
	return s.call(NativeDisplayName, strconv.FormatUint(uint64(hash), 10))
}

func (s *Source) ModelSeatCount(hash uint32) (int, error) {
	return s.callInt(NativeSeatCount, strconv.FormatUint(uint64(hash), 10))
}

func (s *Source) VehicleColours(v reader.Handle) (int, int, error) {
	return s.callPair(NativeColours, handleArg(v))
}

func (s *Source) InteriorColour(v reader.Handle) (int, error) {
	return s.callInt(NativeInteriorColour, handleArg(v))
}

func (s *Source) DashboardColour(v reader.Handle) (int, error) {
	return s.callInt(NativeDashboardColour, handleArg(v))
}

func (s *Source) ExtraColours(v reader.Handle) (int, int, error) {
	return s.callPair(NativeExtraColours, handleArg(v))
}

func (s *Source) WheelType(v reader.Handle) (int, error) {
	return s.callInt(NativeWheelType, handleArg(v))
}

func (s *Source) WindowTint(v reader.Handle) (int, error) {
	return s.callInt(NativeWindowTint, handleArg(v))
}

func (s *Source) NumDLCVehicles() (int, error) {
	return s.callInt(NativeNumDLCVehicles)
}

// DLCVehicleData has the host copy record index into out. A short write
// means there is no record at that index.
func (s *Source) DLCVehicleData(index int, out []byte) (bool, error) {
	if s.inv == nil {
		return false, ErrNoInvoker
	}
	n, err := s.inv.Invoke(NativeDLCVehicleData, strconv.Itoa(index), out)
	if err != nil {
		return false, fmt.Errorf("%s: %w", NativeDLCVehicleData, err)
	}
	if n < 0 || n > len(out) {
		return false, fmt.Errorf("%s: invalid result length %d", NativeDLCVehicleData, n)
	}
	return n >= reader.DLCRecordSize, nil
}

func (s *Source) ExtraExists(v reader.Handle, id int) (bool, error) {
	return s.callBool(NativeExtraExists, handleArg(v), strconv.Itoa(id))
}

func (s *Source) ExtraTurnedOn(v reader.Handle, id int) (bool, error) {
	return s.callBool(NativeExtraTurnedOn, handleArg(v), strconv.Itoa(id))
}

func (s *Source) ToggleModOn(v reader.Handle, id int) (bool, error) {
	return s.callBool(NativeToggleModOn, handleArg(v), strconv.Itoa(id))
}

func (s *Source) VehicleMod(v reader.Handle, slot int) (int, error) {
	return s.callInt(NativeVehicleMod, handleArg(v), strconv.Itoa(slot))
}

// IsKeyDown reports false when the query fails.
func (s *Source) IsKeyDown(key string) bool {
	down, err := s.callBool(NativeIsKeyDown, key)
	if err != nil {
		s.logger.Debug("Key query failed", "key", key, "error", err)
		return false
	}
	return down
}

// Notify shows message on screen. The host takes the whole argument string
// as the message, so commas are allowed.
func (s *Source) Notify(message string) error {
	_, err := s.call(NativeNotify, message)
	return err
}
