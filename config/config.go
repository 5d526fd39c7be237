// Package config loads the JSON run configuration of the PSD pipeline.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/bytedance/sonic"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/ifcbpsd/flags"
	"github.com/carbocation/ifcbpsd/powerfit"
	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/carbocation/ifcbpsd/units"
	"github.com/carbocation/pfx"
)

// Threshold is one rule's threshold list. In JSON a single number may stand
// in for a one-element list.
type Threshold []float64

func (t *Threshold) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []float64
		if err := sonic.Unmarshal(b, &list); err != nil {
			return err
		}
		*t = list
		return nil
	}

	var v float64
	if err := sonic.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Threshold{v}

	return nil
}

type RunConfig struct {
	ConfigPath string `json:"-"`

	FeatureDir string `json:"feature_dir"`
	HeaderDir  string `json:"hdr_dir"`
	OutputDir  string `json:"output_dir"`
	Name       string `json:"name"`

	MicronFactor  float64 `json:"micron_factor"`
	StartFit      int     `json:"start_fit"`
	SigFigs       int     `json:"sig_figs"`
	MaxIterations int     `json:"max_iterations"`

	RSquared float64              `json:"r_sqr"`
	Flags    map[string]Threshold `json:"flags"`

	Concurrency int `json:"concurrency"`

	Graphs    bool `json:"graphs"`
	UseMarker bool `json:"use_marker"`

	// Processed samples are read from SamplesPath instead of the raw files
	// when it is set, and written to SaveSamplesPath when that is set.
	SamplesPath     string `json:"samples_path"`
	SaveSamplesPath string `json:"save_samples_path"`
}

// Default is the configuration used for any value a file leaves out.
func Default() RunConfig {
	fit := powerfit.DefaultOptions()

	return RunConfig{
		OutputDir:     ".",
		Name:          "psd",
		MicronFactor:  units.DefaultMicronFactor,
		StartFit:      fit.StartFit,
		SigFigs:       fit.SigFigs,
		MaxIterations: fit.MaxIterations,
		RSquared:      0.5,
		Flags:         map[string]Threshold{},
	}
}

// ParseJSONConfigFromPath reads a RunConfig from path on top of Default.
func ParseJSONConfigFromPath(path string) (RunConfig, error) {
	out := Default()
	out.ConfigPath = path

	b, err := os.ReadFile(path)
	if err != nil {
		return out, pfx.Err(err)
	}

	if err := sonic.Unmarshal(b, &out); err != nil {
		return out, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	// Interpret ~ if present
	out.ConfigPath = ifcbpsd.ExpandHome(out.ConfigPath)
	out.FeatureDir = ifcbpsd.ExpandHome(out.FeatureDir)
	out.HeaderDir = ifcbpsd.ExpandHome(out.HeaderDir)
	out.OutputDir = ifcbpsd.ExpandHome(out.OutputDir)
	out.SamplesPath = ifcbpsd.ExpandHome(out.SamplesPath)
	out.SaveSamplesPath = ifcbpsd.ExpandHome(out.SaveSamplesPath)

	return out, nil
}

// Thresholds converts Flags into the form flags.New takes.
func (c RunConfig) Thresholds() map[string][]float64 {
	out := make(map[string][]float64, len(c.Flags))
	for k, v := range c.Flags {
		out[k] = []float64(v)
	}

	return out
}

// Engine builds the flag engine, which also validates the flag thresholds.
func (c RunConfig) Engine() (*flags.Engine, error) {
	return flags.New(c.RSquared, c.Thresholds())
}

func (c RunConfig) FitOptions() powerfit.Options {
	opts := powerfit.DefaultOptions()
	opts.StartFit = c.StartFit
	opts.SigFigs = c.SigFigs
	opts.MaxIterations = c.MaxIterations

	return opts
}

func (c RunConfig) ProcessOptions() psd.ProcessOptions {
	return psd.ProcessOptions{Fit: c.FitOptions(), Concurrency: c.Concurrency}
}

func (c RunConfig) Converter() units.Converter {
	return units.NewConverter(c.MicronFactor)
}

// Validate reports the first invalid setting.
func (c RunConfig) Validate() error {
	if c.SamplesPath == "" && (c.FeatureDir == "" || c.HeaderDir == "") {
		return fmt.Errorf("feature_dir and hdr_dir are required unless samples_path is set")
	}
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !(c.MicronFactor > 0) || math.IsInf(c.MicronFactor, 0) {
		return fmt.Errorf("micron_factor must be positive, got %g", c.MicronFactor)
	}
	if c.StartFit < 0 || c.StartFit >= tables.NBins {
		return fmt.Errorf("start_fit must be between 0 and %d, got %d", tables.NBins-1, c.StartFit)
	}
	if c.SigFigs < 0 {
		return fmt.Errorf("sig_figs must be non-negative, got %d", c.SigFigs)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", c.MaxIterations)
	}
	if math.IsNaN(c.RSquared) {
		return fmt.Errorf("r_sqr must be a number")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative, got %d", c.Concurrency)
	}
	if _, err := c.Engine(); err != nil {
		return err
	}

	return nil
}
