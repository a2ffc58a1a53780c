package ejectart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", `{
		"seed": 1,
		"numPackets": 100,
		"numTimesteps": 2,
		"grid": {"mode": "cartesian3d", "nx": 2, "ny": 2, "nz": 2, "tMinDays": 1},
		"elements": [{"z": 26, "name": "Fe", "maxCharge": 1, "ionPotEv": [7.9, 16.2]}]
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.NumWorkers)
	require.Equal(t, 1, cfg.NumRanks)
	require.Equal(t, DefaultNonThermalGridN, cfg.NonThermalGridN)
	require.Equal(t, Real(DefaultEMinEV), cfg.EMinEV)
	require.Equal(t, Real(DefaultEMaxEV), cfg.EMaxEV)
}

func TestLoadConfigRejectsNoElements(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", `{"numPackets": 10}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadConfigRunControlOverride(t *testing.T) {
	dir := t.TempDir()
	inipath := writeTempFile(t, dir, "run.ini", "[run]\nseed=99\nnumWorkers=8\n")
	path := writeTempFile(t, dir, "run.json", `{
		"seed": 1,
		"numPackets": 100,
		"numTimesteps": 2,
		"grid": {"mode": "cartesian3d", "nx": 1, "ny": 1, "nz": 1, "tMinDays": 1},
		"elements": [{"z": 26, "name": "Fe", "maxCharge": 1, "ionPotEv": [7.9, 16.2]}],
		"runControl": "`+inipath+`"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, int64(99), cfg.Seed)
	require.Equal(t, 8, cfg.NumWorkers)
}

func TestBuildAtomicDataFromConfig(t *testing.T) {
	cfg := &Config{Elements: []ElementCfg{
		{Z: 26, Name: "Fe", MaxCharge: 1, IonPotEV: []Real{7.9, 16.2}},
	}}
	atomic, err := cfg.BuildAtomicData()
	require.NoError(t, err)
	require.Len(t, atomic.Elements, 1)
	require.GreaterOrEqual(t, len(atomic.Ions), 2)
}

func TestBuildAtomicDataRejectsInvalidZ(t *testing.T) {
	cfg := &Config{Elements: []ElementCfg{{Z: 0, Name: "bad"}}}
	_, err := cfg.BuildAtomicData()
	require.Error(t, err)
}
