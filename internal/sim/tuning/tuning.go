package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/vm"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	World  World  `yaml:"world" toml:"world" json:"world"`
	VM     VM     `yaml:"vm" toml:"vm" json:"vm"`
	Atoms  Atoms  `yaml:"atoms" toml:"atoms" json:"atoms"`
	Runner Runner `yaml:"runner" toml:"runner" json:"runner"`
	Seed   Seed   `yaml:"seed" toml:"seed" json:"seed"`
}

type World struct {
	Width  int `yaml:"width" toml:"width" json:"width"`
	Height int `yaml:"height" toml:"height" json:"height"`
}

type VM struct {
	PoolSize      int `yaml:"pool_size" toml:"pool_size" json:"pool_size"`
	InitialEnergy int `yaml:"initial_energy" toml:"initial_energy" json:"initial_energy"`
}

// Atoms holds the per-instruction energy amounts.
type Atoms struct {
	MovEnergy int `yaml:"mov_energy" toml:"mov_energy" json:"mov_energy"`
	FixEnergy int `yaml:"fix_energy" toml:"fix_energy" json:"fix_energy"`
	SplEnergy int `yaml:"spl_energy" toml:"spl_energy" json:"spl_energy"`
	IfEnergy  int `yaml:"if_energy" toml:"if_energy" json:"if_energy"`
}

type Runner struct {
	TickRateHz    int  `yaml:"tick_rate_hz" toml:"tick_rate_hz" json:"tick_rate_hz"`
	CullExhausted bool `yaml:"cull_exhausted" toml:"cull_exhausted" json:"cull_exhausted"`
	LogEveryTicks int  `yaml:"log_every_ticks" toml:"log_every_ticks" json:"log_every_ticks"`
}

// Seed is the grid content placed before the first tick.
type Seed struct {
	Atoms []AtomSeed `yaml:"atoms" toml:"atoms" json:"atoms"`
	VMs   []VMSeed   `yaml:"vms" toml:"vms" json:"vms"`
}

type AtomSeed struct {
	X        int    `yaml:"x" toml:"x" json:"x"`
	Y        int    `yaml:"y" toml:"y" json:"y"`
	Type     string `yaml:"type" toml:"type" json:"type"`
	VMDir    int    `yaml:"vm_dir" toml:"vm_dir" json:"vm_dir"`
	VMBond   bool   `yaml:"vm_bond" toml:"vm_bond" json:"vm_bond"`
	Dir1     int    `yaml:"dir1" toml:"dir1" json:"dir1"`
	Dir1Bond bool   `yaml:"dir1_bond" toml:"dir1_bond" json:"dir1_bond"`
	Dir2     int    `yaml:"dir2" toml:"dir2" json:"dir2"`
	Dir2Bond bool   `yaml:"dir2_bond" toml:"dir2_bond" json:"dir2_bond"`
}

// VMSeed places a VM. Energy 0 means vm.initial_energy.
type VMSeed struct {
	X      int `yaml:"x" toml:"x" json:"x"`
	Y      int `yaml:"y" toml:"y" json:"y"`
	Energy int `yaml:"energy" toml:"energy" json:"energy"`
}

func Defaults() Tuning {
	return Tuning{
		World: World{Width: 64, Height: 64},
		VM:    VM{PoolSize: 1024, InitialEnergy: 1000},
		Atoms: Atoms{MovEnergy: 1, FixEnergy: 2, SplEnergy: 2, IfEnergy: 1},
		Runner: Runner{
			TickRateHz:    10,
			CullExhausted: true,
			LogEveryTicks: 100,
		},
	}
}

// Load reads path over Defaults. Files ending in .toml are decoded as TOML,
// everything else as YAML. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(raw), &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	} else if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("tuning.schema.json", schemaJSON)
})

// Validate checks t against the embedded JSON schema, then checks the seed
// against the grid and pool it will be placed into.
func (t Tuning) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return err
	}

	if len(t.Seed.VMs) > t.VM.PoolSize {
		return fmt.Errorf("seed has %d vms, pool_size is %d", len(t.Seed.VMs), t.VM.PoolSize)
	}
	seen := map[[2]int]int{}
	for i, a := range t.Seed.Atoms {
		if !t.inBounds(a.X, a.Y) {
			return fmt.Errorf("seed.atoms[%d]: (%d,%d) outside %dx%d", i, a.X, a.Y, t.World.Width, t.World.Height)
		}
		if j, dup := seen[[2]int{a.X, a.Y}]; dup {
			return fmt.Errorf("seed.atoms[%d]: (%d,%d) already set by seed.atoms[%d]", i, a.X, a.Y, j)
		}
		seen[[2]int{a.X, a.Y}] = i
		if _, err := a.Atom(); err != nil {
			return fmt.Errorf("seed.atoms[%d]: %w", i, err)
		}
	}
	for i, v := range t.Seed.VMs {
		if !t.inBounds(v.X, v.Y) {
			return fmt.Errorf("seed.vms[%d]: (%d,%d) outside %dx%d", i, v.X, v.Y, t.World.Width, t.World.Height)
		}
	}
	return nil
}

func (t Tuning) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < t.World.Width && y < t.World.Height
}

func (t Tuning) Costs() vm.Costs {
	return vm.Costs{
		Mov: t.Atoms.MovEnergy,
		Fix: t.Atoms.FixEnergy,
		Spl: t.Atoms.SplEnergy,
		If:  t.Atoms.IfEnergy,
	}
}

// Atom packs the seed entry into its 16-bit form.
func (s AtomSeed) Atom() (atom.Atom, error) {
	typ, err := atom.ParseType(s.Type)
	if err != nil {
		return atom.Empty, err
	}
	if typ == atom.TypeEmpty {
		return atom.Empty, fmt.Errorf("seed atom at (%d,%d) is empty", s.X, s.Y)
	}
	a := atom.New(typ).
		WithVMDir(atom.Dir(s.VMDir)).
		WithDir1(atom.Dir(s.Dir1)).
		WithDir2(atom.Dir(s.Dir2))
	if s.VMBond {
		a = a.WithVMBond()
	}
	if s.Dir1Bond {
		a = a.WithDir1Bond()
	}
	if s.Dir2Bond {
		a = a.WithDir2Bond()
	}
	return a, nil
}
