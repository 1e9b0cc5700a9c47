package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"irma.ai/internal/sim/atom"
)

func TestDefaults_Validate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.World != Defaults().World || got.Atoms != Defaults().Atoms {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestLoad_ConfigsTuningYAML(t *testing.T) {
	cfg, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if cfg.World.Width != 64 || cfg.World.Height != 64 {
		t.Fatalf("world: got %dx%d want 64x64", cfg.World.Width, cfg.World.Height)
	}
	if len(cfg.Seed.Atoms) == 0 || len(cfg.Seed.VMs) == 0 {
		t.Fatalf("expected a seeded grid")
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.yaml")
	writeFile(t, path, "world:\n  width: 8\n  height: 4\natoms:\n  mov_energy: 5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Width != 8 || cfg.World.Height != 4 {
		t.Fatalf("world: got %dx%d want 8x4", cfg.World.Width, cfg.World.Height)
	}
	if cfg.Atoms.MovEnergy != 5 || cfg.Atoms.FixEnergy != Defaults().Atoms.FixEnergy {
		t.Fatalf("atoms: got %+v", cfg.Atoms)
	}
	if cfg.VM != Defaults().VM {
		t.Fatalf("vm section should keep defaults, got %+v", cfg.VM)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.toml")
	writeFile(t, path, `
[world]
width = 16
height = 16

[runner]
tick_rate_hz = 50
cull_exhausted = false

[[seed.atoms]]
x = 1
y = 2
type = "fix"
vm_dir = 3
vm_bond = true

[[seed.vms]]
x = 1
y = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.TickRateHz != 50 || cfg.Runner.CullExhausted {
		t.Fatalf("runner: got %+v", cfg.Runner)
	}
	if len(cfg.Seed.Atoms) != 1 || cfg.Seed.Atoms[0].Type != "fix" {
		t.Fatalf("seed atoms: got %+v", cfg.Seed.Atoms)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Tuning)
		want string
	}{
		{"zero width", func(c *Tuning) { c.World.Width = 0 }, ""},
		{"negative cost", func(c *Tuning) { c.Atoms.SplEnergy = -1 }, ""},
		{"bad dir", func(c *Tuning) {
			c.Seed.Atoms = []AtomSeed{{X: 0, Y: 0, Type: "mov", Dir1: 8}}
		}, ""},
		{"unknown type", func(c *Tuning) {
			c.Seed.Atoms = []AtomSeed{{X: 0, Y: 0, Type: "nop"}}
		}, ""},
		{"atom out of bounds", func(c *Tuning) {
			c.Seed.Atoms = []AtomSeed{{X: c.World.Width, Y: 0, Type: "mov"}}
		}, "outside"},
		{"duplicate atom", func(c *Tuning) {
			c.Seed.Atoms = []AtomSeed{{X: 1, Y: 1, Type: "mov"}, {X: 1, Y: 1, Type: "fix"}}
		}, "already set"},
		{"vm out of bounds", func(c *Tuning) {
			c.Seed.VMs = []VMSeed{{X: 0, Y: c.World.Height}}
		}, "outside"},
		{"pool too small", func(c *Tuning) {
			c.VM.PoolSize = 1
			c.Seed.VMs = []VMSeed{{X: 0, Y: 0}, {X: 1, Y: 0}}
		}, "pool_size"},
	}
	for _, tc := range cases {
		cfg := Defaults()
		tc.mut(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %v want substring %q", tc.name, err, tc.want)
		}
	}
}

func TestAtomSeed_Atom(t *testing.T) {
	s := AtomSeed{Type: "if", VMDir: 7, VMBond: true, Dir1: 1, Dir2: 3, Dir2Bond: true}
	got, err := s.Atom()
	if err != nil {
		t.Fatalf("atom: %v", err)
	}
	want := atom.New(atom.TypeIf).
		WithVMDir(atom.DirLeft).WithVMBond().
		WithDir1(atom.DirUp).
		WithDir2(atom.DirRight).WithDir2Bond()
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCosts(t *testing.T) {
	c := Defaults()
	c.Atoms = Atoms{MovEnergy: 1, FixEnergy: 2, SplEnergy: 3, IfEnergy: 4}
	got := c.Costs()
	if got.Mov != 1 || got.Fix != 2 || got.Spl != 3 || got.If != 4 {
		t.Fatalf("costs: got %+v", got)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
