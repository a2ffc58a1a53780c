package ejectart

import (
	"encoding/json"
	"fmt"
	"os"

	gcfg "gopkg.in/gcfg.v1"
)

// GridCfg describes the propagation grid a run builds.
type GridCfg struct {
	Mode string `json:"mode"` // "cartesian3d" or "spherical1d"
	Nx   int    `json:"nx,omitempty"`
	Ny   int    `json:"ny,omitempty"`
	Nz   int    `json:"nz,omitempty"`
	NCellsRadial int `json:"nCellsRadial,omitempty"`
	TMinDays     Real `json:"tMinDays"`
}

// ElementCfg configures one synthetic element's level structure.
type ElementCfg struct {
	Z            int    `json:"z"`
	Name         string `json:"name"`
	MaxCharge    int    `json:"maxCharge"`
	IonPotEV     []Real `json:"ionPotEv"`
	LevelsPerIon int    `json:"levelsPerIon,omitempty"`
	TopLevelEV   Real   `json:"topLevelEv,omitempty"`
}

// Config is the full JSON-configured description of one run: grid,
// atomic model, timestep schedule and output binning. Most numeric
// fields fall back to the package defaults in const.go when left at
// their zero value.
type Config struct {
	Seed         int64        `json:"seed"`
	NumPackets   int          `json:"numPackets"`
	NumTimesteps int          `json:"numTimesteps"`
	NumWorkers   int          `json:"numWorkers,omitempty"`
	NumRanks     int          `json:"numRanks,omitempty"`

	Grid     GridCfg      `json:"grid"`
	Elements []ElementCfg `json:"elements"`

	NonThermalGridN int  `json:"nonThermalGridN,omitempty"`
	EMinEV          Real `json:"eMinEv,omitempty"`
	EMaxEV          Real `json:"eMaxEv,omitempty"`

	SpectrumNuMin  Real `json:"spectrumNuMin,omitempty"`
	SpectrumNuMax  Real `json:"spectrumNuMax,omitempty"`
	SpectrumNuBins int  `json:"spectrumNuBins,omitempty"`
	SpectrumDirBins int `json:"spectrumDirBins,omitempty"`
	SpectrumDRefCm Real `json:"spectrumDRefCm,omitempty"` // reference distance spectra are normalised to, cm

	CheckpointPath string `json:"checkpointPath,omitempty"`

	// RunControl, when non-empty, names a gcfg INI file that overrides a
	// handful of operational knobs without touching the JSON scene
	// description: useful for restart/cluster-queue scripts that only
	// ever need to flip the worker count or seed.
	RunControl string `json:"runControl,omitempty"`
}

// runControlINI mirrors the subset of Config a gcfg override file may
// touch. gcfg's section/key-per-field mapping is the same idiom used
// for INI-style run control elsewhere in the dependency pack.
type runControlINI struct {
	Run struct {
		Seed       int64
		NumWorkers int
		NumRanks   int
	}
}

// LoadConfig reads and validates a JSON run configuration from path,
// filling unset numeric fields with package defaults, then applies an
// optional gcfg RunControl override on top.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Field: path, Msg: err.Error()}
	}

	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.NumRanks <= 0 {
		cfg.NumRanks = 1
	}
	if cfg.NonThermalGridN <= 0 {
		cfg.NonThermalGridN = DefaultNonThermalGridN
	}
	if cfg.EMinEV <= 0 {
		cfg.EMinEV = DefaultEMinEV
	}
	if cfg.EMaxEV <= 0 {
		cfg.EMaxEV = DefaultEMaxEV
	}
	if cfg.SpectrumNuBins <= 0 {
		cfg.SpectrumNuBins = 1000
	}
	if cfg.SpectrumDirBins <= 0 {
		cfg.SpectrumDirBins = 1
	}
	if cfg.SpectrumDRefCm <= 0 {
		cfg.SpectrumDRefCm = DefaultDRefCm
	}
	if len(cfg.Elements) == 0 {
		return nil, &ConfigError{Field: "elements", Msg: "run has no elements configured"}
	}
	if cfg.NumPackets <= 0 {
		return nil, &ConfigError{Field: "numPackets", Msg: "must be positive"}
	}

	if cfg.RunControl != "" {
		var rc runControlINI
		if err := gcfg.ReadFileInto(&rc, cfg.RunControl); err != nil {
			return nil, &ConfigError{Field: cfg.RunControl, Msg: err.Error()}
		}
		if rc.Run.Seed != 0 {
			cfg.Seed = rc.Run.Seed
		}
		if rc.Run.NumWorkers > 0 {
			cfg.NumWorkers = rc.Run.NumWorkers
		}
		if rc.Run.NumRanks > 0 {
			cfg.NumRanks = rc.Run.NumRanks
		}
	}

	DebugLog("loaded config from %s: packets=%d timesteps=%d workers=%d ranks=%d",
		path, cfg.NumPackets, cfg.NumTimesteps, cfg.NumWorkers, cfg.NumRanks)
	return &cfg, nil
}

// BuildAtomicData constructs the run's AtomicData from its element
// configuration.
func (c *Config) BuildAtomicData() (*AtomicData, error) {
	specs := make([]SyntheticSpec, len(c.Elements))
	for i, ec := range c.Elements {
		if ec.Z <= 0 {
			return nil, &AtomicDataError{Context: ec.Name, Msg: fmt.Sprintf("invalid atomic number %d", ec.Z)}
		}
		lpi := ec.LevelsPerIon
		if lpi <= 0 {
			lpi = 5
		}
		top := ec.TopLevelEV
		if top <= 0 {
			top = 10
		}
		specs[i] = SyntheticSpec{
			Z: ec.Z, Name: ec.Name, MaxCharge: ec.MaxCharge,
			IonPotEV: ec.IonPotEV, LevelsPerIon: lpi, TopLevelEV: top,
		}
	}
	return NewSyntheticAtomicData(specs), nil
}
