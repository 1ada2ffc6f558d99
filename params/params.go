// Package params reads and writes restrained-ensemble parameter files. A
// file carries three sections: the restraint parameters proper, the pair of
// site indices the restraint binds, and the knobs of the in-process demo
// runner. The package also implements typed key=value overrides so a CLI
// can patch single parameters without touching the file, with unknown keys
// and mistyped values rejected the way a typed parameter table should.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ensrest"
)

// Restraint mirrors ensrest.Config field by field, with yaml tags.
type Restraint struct {
	NBins        int       `yaml:"nbins"`
	BinWidth     float64   `yaml:"binwidth"`
	MinDist      float64   `yaml:"mindist"`
	MaxDist      float64   `yaml:"maxdist"`
	Experimental []float64 `yaml:"experimental"`
	NSamples     int       `yaml:"nsamples"`
	SamplePeriod float64   `yaml:"sampleperiod"`
	NWindows     int       `yaml:"nwindows"`
	K            float64   `yaml:"k"`
	Sigma        float64   `yaml:"sigma"`
}

// Run holds the in-process runner's knobs. They mean nothing to a real host
// engine, which brings its own integrator and ensemble.
type Run struct {
	Replicas  int     `yaml:"replicas"`
	Steps     int     `yaml:"steps"`
	Dt        float64 `yaml:"dt"`
	Seed      int64   `yaml:"seed"`
	StartDist float64 `yaml:"startdist"`
	Diffusion float64 `yaml:"diffusion"`
	KT        float64 `yaml:"kt"`
	Label     string  `yaml:"label"`
}

// File is one parameter file.
type File struct {
	Restraint Restraint `yaml:"restraint"`
	Sites     []int     `yaml:"sites"`
	Run       Run       `yaml:"run"`
}

// Default returns a parameter file that validates and runs: a 10 nm grid of
// 50 bins, a flat experimental reference over the middle of the grid, and a
// small 4-replica run. It is a starting point to edit, not a recommendation
// for any particular system.
func Default() *File {
	f := &File{
		Restraint: Restraint{
			NBins:        50,
			BinWidth:     0.2,
			MinDist:      0.5,
			MaxDist:      9.0,
			NSamples:     50,
			SamplePeriod: 1.0,
			NWindows:     10,
			K:            100.0,
			Sigma:        0.2,
		},
		Sites: []int{0, 1},
		Run: Run{
			Replicas:  4,
			Steps:     20000,
			Dt:        0.02,
			Seed:      42,
			StartDist: 3.0,
			Diffusion: 0.05,
			KT:        2.494, //kJ/mol, ~300 K
			Label:     "demo",
		},
	}
	f.Restraint.Experimental = make([]float64, f.Restraint.NBins)
	//a flat band between the bounds; real runs replace this with measured data
	lo := int(f.Restraint.MinDist / f.Restraint.BinWidth)
	hi := int(f.Restraint.MaxDist / f.Restraint.BinWidth)
	for i := lo; i < hi && i < f.Restraint.NBins; i++ {
		f.Restraint.Experimental[i] = 1.0 / (float64(hi-lo) * f.Restraint.BinWidth)
	}
	return f
}

// Load reads a parameter file. It does not validate the restraint section;
// Config does that, so a file can be loaded, patched and only then checked.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := new(File)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("params: parsing %s: %w", path, err)
	}
	return f, nil
}

// Save writes the file as YAML.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("params: encoding: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// YAML returns the file as YAML text, the same bytes Save writes.
func (f *File) YAML() (string, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("params: encoding: %w", err)
	}
	return string(data), nil
}

// Config converts the restraint section into a validated ensrest.Config.
func (f *File) Config() (ensrest.Config, error) {
	c := ensrest.Config{
		NBins:        f.Restraint.NBins,
		BinWidth:     f.Restraint.BinWidth,
		MinDist:      f.Restraint.MinDist,
		MaxDist:      f.Restraint.MaxDist,
		Experimental: append([]float64{}, f.Restraint.Experimental...),
		NSamples:     f.Restraint.NSamples,
		SamplePeriod: f.Restraint.SamplePeriod,
		NWindows:     f.Restraint.NWindows,
		K:            f.Restraint.K,
		Sigma:        f.Restraint.Sigma,
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

//kinds of the typed parameter table
type kind int

const (
	kindInt kind = iota
	kindInt64
	kindFloat
	kindFloatList
	kindIntList
	kindString
)

//every settable key, with its type. The names match the yaml tags, dotted
//with the section for the non-restraint ones.
var keys = map[string]kind{
	"nbins":         kindInt,
	"binwidth":      kindFloat,
	"mindist":       kindFloat,
	"maxdist":       kindFloat,
	"experimental":  kindFloatList,
	"nsamples":      kindInt,
	"sampleperiod":  kindFloat,
	"nwindows":      kindInt,
	"k":             kindFloat,
	"sigma":         kindFloat,
	"sites":         kindIntList,
	"run.replicas":  kindInt,
	"run.steps":     kindInt,
	"run.dt":        kindFloat,
	"run.seed":      kindInt64,
	"run.startdist": kindFloat,
	"run.diffusion": kindFloat,
	"run.kt":        kindFloat,
	"run.label":     kindString,
}

// Set patches one parameter from its string form, as a CLI --set flag
// provides it. Lists are comma-separated. Unknown keys and values that
// don't parse as the key's type are errors; nothing is patched in that
// case.
func (f *File) Set(key, value string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("params: unknown parameter %q", key)
	}
	switch k {
	case kindInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("params: %s wants an integer, got %q", key, value)
		}
		switch key {
		case "nbins":
			f.Restraint.NBins = v
		case "nsamples":
			f.Restraint.NSamples = v
		case "nwindows":
			f.Restraint.NWindows = v
		case "run.replicas":
			f.Run.Replicas = v
		case "run.steps":
			f.Run.Steps = v
		}
	case kindInt64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("params: %s wants an integer, got %q", key, value)
		}
		f.Run.Seed = v
	case kindFloat:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("params: %s wants a number, got %q", key, value)
		}
		switch key {
		case "binwidth":
			f.Restraint.BinWidth = v
		case "mindist":
			f.Restraint.MinDist = v
		case "maxdist":
			f.Restraint.MaxDist = v
		case "sampleperiod":
			f.Restraint.SamplePeriod = v
		case "k":
			f.Restraint.K = v
		case "sigma":
			f.Restraint.Sigma = v
		case "run.dt":
			f.Run.Dt = v
		case "run.startdist":
			f.Run.StartDist = v
		case "run.diffusion":
			f.Run.Diffusion = v
		case "run.kt":
			f.Run.KT = v
		}
	case kindFloatList:
		fields := strings.Split(value, ",")
		list := make([]float64, 0, len(fields))
		for _, s := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("params: %s wants comma-separated numbers, got %q", key, value)
			}
			list = append(list, v)
		}
		f.Restraint.Experimental = list
	case kindIntList:
		fields := strings.Split(value, ",")
		list := make([]int, 0, len(fields))
		for _, s := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("params: %s wants comma-separated integers, got %q", key, value)
			}
			list = append(list, v)
		}
		f.Sites = list
	case kindString:
		f.Run.Label = value
	}
	return nil
}

// Get returns the string form of one parameter, in the same format Set
// accepts.
func (f *File) Get(key string) (string, error) {
	k, ok := keys[key]
	if !ok {
		return "", fmt.Errorf("params: unknown parameter %q", key)
	}
	switch k {
	case kindInt:
		switch key {
		case "nbins":
			return strconv.Itoa(f.Restraint.NBins), nil
		case "nsamples":
			return strconv.Itoa(f.Restraint.NSamples), nil
		case "nwindows":
			return strconv.Itoa(f.Restraint.NWindows), nil
		case "run.replicas":
			return strconv.Itoa(f.Run.Replicas), nil
		case "run.steps":
			return strconv.Itoa(f.Run.Steps), nil
		}
	case kindInt64:
		return strconv.FormatInt(f.Run.Seed, 10), nil
	case kindFloat:
		var v float64
		switch key {
		case "binwidth":
			v = f.Restraint.BinWidth
		case "mindist":
			v = f.Restraint.MinDist
		case "maxdist":
			v = f.Restraint.MaxDist
		case "sampleperiod":
			v = f.Restraint.SamplePeriod
		case "k":
			v = f.Restraint.K
		case "sigma":
			v = f.Restraint.Sigma
		case "run.dt":
			v = f.Run.Dt
		case "run.startdist":
			v = f.Run.StartDist
		case "run.diffusion":
			v = f.Run.Diffusion
		case "run.kt":
			v = f.Run.KT
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case kindFloatList:
		fields := make([]string, len(f.Restraint.Experimental))
		for i, v := range f.Restraint.Experimental {
			fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(fields, ","), nil
	case kindIntList:
		fields := make([]string, len(f.Sites))
		for i, v := range f.Sites {
			fields[i] = strconv.Itoa(v)
		}
		return strings.Join(fields, ","), nil
	case kindString:
		return f.Run.Label, nil
	}
	return "", fmt.Errorf("params: unknown parameter %q", key) //unreachable
}

// Keys returns every settable parameter name, for help output.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out
}
