package moves_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

func ptr(f float64) *float64 { return &f }

func TestCompile_DamagingMove(t *testing.T) {
	m, err := moves.Compile(&moves.MoveDef{
		ID: "flare-blitz", Type: "Fire", Category: "physical", Power: 120,
		Accuracy: ptr(1), PP: 15, Flags: []string{"contact"}, Recoil: 0.33,
		Secondary: &moves.SecondaryDef{Status: "BRN", Chance: 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, "Flare Blitz", m.Name)
	assert.Equal(t, combat.Fire, m.Type)
	assert.True(t, m.Contact)
	assert.False(t, m.AlwaysHits)
	assert.Equal(t, 1, m.Hits)
	require.NotNil(t, m.Secondary)
	assert.Equal(t, combat.Burned, m.Secondary.Status)
	assert.Equal(t, moves.NoEffect{}, m.Effect)
}

func TestCompile_NullAccuracyAlwaysHits(t *testing.T) {
	m, err := moves.Compile(&moves.MoveDef{ID: "swift", Type: "Normal", Category: "special", Power: 60})
	require.NoError(t, err)
	assert.True(t, m.AlwaysHits)
	assert.Equal(t, 10, m.PP, "pp defaults when omitted")
}

func TestCompile_Effects(t *testing.T) {
	cases := []struct {
		def  moves.EffectDef
		want moves.Effect
	}{
		{moves.EffectDef{Kind: "stat-change", Stat: "atk", Stages: 2}, moves.StatChange{Target: moves.TargetSelf, Stat: combat.Atk, Stages: 2}},
		{moves.EffectDef{Kind: "stat-change", Target: "foe", Stat: "def", Stages: -1}, moves.StatChange{Target: moves.TargetFoe, Stat: combat.Def, Stages: -1}},
		{moves.EffectDef{Kind: "inflict-status", Status: "PAR"}, moves.InflictStatus{Status: combat.Paralysis}},
		{moves.EffectDef{Kind: "substitute"}, moves.Substitute{}},
		{moves.EffectDef{Kind: "protect"}, moves.Protect{}},
		{moves.EffectDef{Kind: "field-timer", Timer: "light-screen"}, moves.FieldTimer{Timer: moves.TimerLightScreen}},
		{moves.EffectDef{Kind: "perish-song"}, moves.PerishSong{}},
		{moves.EffectDef{Kind: "heal"}, moves.Heal{Fraction: 0.5}},
		{moves.EffectDef{Kind: "hazard", Hazard: "spikes"}, moves.SetHazard{Hazard: moves.HazardSpikes}},
		{moves.EffectDef{Kind: "taunt"}, moves.Taunt{Turns: 3}},
		{moves.EffectDef{Kind: "encore", Turns: 2}, moves.Encore{Turns: 2}},
		{moves.EffectDef{Kind: "disable"}, moves.Disable{Turns: 4}},
	}
	for _, tc := range cases {
		t.Run(tc.def.Kind, func(t *testing.T) {
			def := tc.def
			m, err := moves.Compile(&moves.MoveDef{ID: "x", Type: "Normal", Category: "status", Effect: &def})
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Effect)
			assert.Equal(t, tc.want.Kind(), m.Effect.Kind())
		})
	}
}

func TestCompile_RejectsInvalid(t *testing.T) {
	cases := map[string]*moves.MoveDef{
		"empty id":          {Type: "Normal", Category: "physical", Power: 40},
		"reserved id":       {ID: "struggle", Type: "Normal", Category: "physical", Power: 50},
		"bad type":          {ID: "x", Type: "Sound", Category: "physical", Power: 40},
		"bad category":      {ID: "x", Type: "Normal", Category: "other", Power: 40},
		"zero power":        {ID: "x", Type: "Normal", Category: "special"},
		"bad accuracy":      {ID: "x", Type: "Normal", Category: "special", Power: 40, Accuracy: ptr(1.5)},
		"unknown flag":      {ID: "x", Type: "Normal", Category: "special", Power: 40, Flags: []string{"spin"}},
		"effect on attack":  {ID: "x", Type: "Normal", Category: "special", Power: 40, Effect: &moves.EffectDef{Kind: "protect"}},
		"unknown effect":    {ID: "x", Type: "Normal", Category: "status", Effect: &moves.EffectDef{Kind: "weather"}},
		"bad secondary":     {ID: "x", Type: "Normal", Category: "special", Power: 40, Secondary: &moves.SecondaryDef{Status: "ZZZ", Chance: 0.1}},
		"stat change zero":  {ID: "x", Type: "Normal", Category: "status", Effect: &moves.EffectDef{Kind: "stat-change", Stat: "atk"}},
		"bad hazard":        {ID: "x", Type: "Normal", Category: "status", Effect: &moves.EffectDef{Kind: "hazard", Hazard: "lava"}},
		"drain range":       {ID: "x", Type: "Normal", Category: "special", Power: 40, Drain: 2},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := moves.Compile(def)
			assert.Error(t, err)
		})
	}
}

func TestTargetsFoe(t *testing.T) {
	assert.True(t, moves.TargetsFoe(moves.InflictStatus{Status: combat.Burned}))
	assert.True(t, moves.TargetsFoe(moves.StatChange{Target: moves.TargetFoe, Stat: combat.Atk, Stages: -1}))
	assert.False(t, moves.TargetsFoe(moves.StatChange{Target: moves.TargetSelf, Stat: combat.Atk, Stages: 2}))
	assert.False(t, moves.TargetsFoe(moves.Heal{Fraction: 0.5}))
	assert.False(t, moves.TargetsFoe(moves.SetHazard{Hazard: moves.HazardStealthRock}))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tackle.yaml"), []byte(`
id: tackle
type: Normal
category: physical
power: 40
accuracy: 1.0
pp: 35
flags: [contact]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "protect.yaml"), []byte(`
id: protect
type: Normal
category: status
priority: 4
effect:
  kind: protect
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg, err := moves.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	p, ok := reg.Lookup("protect")
	require.True(t, ok)
	assert.Equal(t, 4, p.Priority)
	assert.Equal(t, moves.Protect{}, p.Effect)

	all := reg.All()
	assert.Equal(t, "protect", all[0].ID)
	assert.Equal(t, "tackle", all[1].ID)
}

func TestLoadDirectory_UnknownFieldFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: x\ntype: Normal\ncategory: status\nweather: rain\n"), 0o644))
	_, err := moves.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_DuplicateIDFails(t *testing.T) {
	dir := t.TempDir()
	body := []byte("id: splash\ntype: Normal\ncategory: status\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), body, 0o644))
	_, err := moves.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_ShippedContent(t *testing.T) {
	reg, err := moves.LoadDirectory("../../../content/moves")
	require.NoError(t, err)
	for _, id := range []string{"tackle", "pursuit", "protect", "stealth-rock", "knock-off", "perish-song"} {
		_, ok := reg.Lookup(id)
		assert.True(t, ok, "missing %s", id)
	}
	p, _ := reg.Lookup("pursuit")
	assert.True(t, p.Interrupt)
	w, _ := reg.Lookup("will-o-wisp")
	assert.Equal(t, "Will-O-Wisp", w.Name)
}

func TestRegistry_Fetch_Unknown(t *testing.T) {
	_, err := moves.NewRegistry().Fetch("nope")
	assert.True(t, errors.Is(err, moves.ErrUnknownMove))
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	reg   *moves.Registry
}

func (c *countingFetcher) Fetch(id string) (*moves.Move, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.reg.Fetch(id)
}

func TestCache_ReadThrough(t *testing.T) {
	reg := moves.NewRegistry()
	reg.Register(&moves.Move{ID: "tackle", Name: "Tackle", Effect: moves.NoEffect{}})
	f := &countingFetcher{reg: reg}
	c := moves.NewCache(f, zap.NewNop())

	m1, ok := c.Lookup("tackle")
	require.True(t, ok)
	m2, ok := c.Lookup("tackle")
	require.True(t, ok)
	assert.Same(t, m1, m2)
	assert.Equal(t, 1, f.calls)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
	_, ok = c.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 3, f.calls, "misses are not cached")

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCache_ConcurrentLookups(t *testing.T) {
	reg := moves.NewRegistry()
	reg.Register(&moves.Move{ID: "tackle", Effect: moves.NoEffect{}})
	c := moves.NewCache(reg, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.Lookup("tackle")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

func TestDisplayName_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.StringMatching(`[a-z]{1,8}(-[a-z]{1,8}){0,2}`).Draw(rt, "id")
		name := moves.DisplayName(id)
		if len(name) != len(id) {
			rt.Fatalf("DisplayName(%q) = %q changed length", id, name)
		}
		if name[0] < 'A' || name[0] > 'Z' {
			rt.Fatalf("DisplayName(%q) = %q not title-cased", id, name)
		}
	})
}

func TestDisplayName_MultibyteNames(t *testing.T) {
	assert.Equal(t, "Éclair Band", moves.DisplayName("éclair band"))
	assert.Equal(t, "Full Metal Body", moves.DisplayName("full metal body"))
	assert.Equal(t, "Knock Off", moves.DisplayName("knock-off"))
}
