package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vehicle.json")
	data := `{
		"modelName": "police3",
		"seats": 4,
		"primary": 111,
		"extras": {"1": true, "2": false},
		"mods": {"11": 2},
		"fail": {"WindowTint": "native crashed"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	v, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "police3", v.Name)
	assert.Equal(t, 4, v.Seats)
	assert.Equal(t, 111, v.Primary)
	assert.Equal(t, map[int]bool{1: true, 2: false}, v.Extras)
	assert.Equal(t, map[int]int{11: 2}, v.Mods)

	_, err = v.WindowTint(0)
	assert.EqualError(t, err, "native crashed")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading fixture")
}

func TestDLCVehicleData_OutOfRange(t *testing.T) {
	v := &Vehicle{DLCHashes: []uint32{1}}
	buf := make([]byte, 24)

	ok, err := v.DLCVehicleData(5, buf)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdder_ModelQueries(t *testing.T) {
	v := Adder()

	hash, err := v.ModelHash(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xB779A091), hash)

	name, err := v.ModelName(0)
	require.NoError(t, err)
	assert.Equal(t, "adder", name)

	wheelType, err := v.WheelType(0)
	require.NoError(t, err)
	assert.Equal(t, 5, wheelType)

	tint, err := v.WindowTint(0)
	require.NoError(t, err)
	assert.Equal(t, 2, tint)
}

func TestLoad_HostFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicle.json")
	data := `{"modelHash": 7, "modelName": "sultan", "wheelType": 3, "windowTint": 1}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	v, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), v.Hash)
	assert.Equal(t, "sultan", v.Name)
	assert.Equal(t, 3, v.WheelStyle)
	assert.Equal(t, 1, v.Tint)
}
