package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigsync/pkg/rig"
)

func fullCaps() rig.Capabilities {
	return rig.Capabilities{
		ModelID:               3073,
		SupportsPowerToggle:   true,
		CanGetPower:           true,
		SupportsPTT:           true,
		SupportsBandSelect:    true,
		SubVFOFreqAddressable: true,
		SubVFOModeAddressable: true,
		CanGetAntenna:         true,
		CanSetAntenna:         true,
		CanRIT:                true,
		Modes:                 []rig.Mode{rig.ModeUSB, rig.ModeCW},
		CTCSSTones:            []int{885},
		GetLevels:             rig.LevelSet{rig.LevelAGC, rig.LevelSWR},
		SetLevels:             rig.LevelSet{rig.LevelAGC},
		GetFuncs:              rig.FuncSet{rig.FuncNB},
		SetFuncs:              rig.FuncSet{rig.FuncNB},
		VFOOps:                rig.VFOOpSet{rig.OpExchange},
	}
}

func TestGateDecide(t *testing.T) {
	g := NewGate(fullCaps())

	tests := []struct {
		op   Operation
		want Decision
	}{
		{SetPower, Supported},
		{SetPTT, Supported},
		{SetFreqSub, Supported},
		{BandSelect, Supported},
		{GetLevel(rig.LevelAGC), Supported},
		{SetLevel(rig.LevelSWR), Unsupported},
		{SetFunc(rig.FuncNB), Supported},
		{SetFunc(rig.FuncTuner), Unsupported},
		{VFOOp(rig.OpExchange), Supported},
		{VFOOp(rig.OpCopy), Unsupported},
		{SetMode(rig.ModeCW), Supported},
		{SetMode(rig.ModeFM), Unsupported},
		{Meter(rig.MeterSWR), Supported},
		{Meter(rig.MeterALC), Unsupported},
		{Tone(rig.ToneCTCSS), Supported},
		{Tone(rig.ToneDCS), Unsupported},
		{RIT, Supported},
		{XIT, Unsupported},
		{Raw, Unsupported},
		{Operation{Kind: "warp_drive"}, Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, g.Decide(tt.op))
			assert.Equal(t, tt.want == Supported, g.Allowed(tt.op))
		})
	}
}

func TestGateSubVFO(t *testing.T) {
	caps := fullCaps()
	caps.SubVFOFreqAddressable = false
	caps.SubVFOModeAddressable = false
	caps.SupportsPowerToggle = false
	g := NewGate(caps)

	assert.Equal(t, RequiresActiveVFOOnly, g.Decide(SetFreqSub))
	assert.Equal(t, RequiresActiveVFOOnly, g.Decide(GetModeSub))
	assert.False(t, g.Allowed(SetFreqSub))
	assert.Equal(t, Unsupported, g.Decide(SetPower))
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("get_level AGC")
	require.NoError(t, err)
	assert.Equal(t, GetLevel(rig.LevelAGC), op)

	op, err = ParseOperation("set_power")
	require.NoError(t, err)
	assert.Equal(t, SetPower, op)

	_, err = ParseOperation("explode")
	assert.Error(t, err)
}

const ic7300Profile = `
name: ic7300
models: [3073]
capabilities:
  sub_vfo_freq_addressable: false
  antennas: 1
operations:
  get_level AGC: unsupported
  set_antenna: unsupported
  vfo_op: supported
`

func TestProfiles(t *testing.T) {
	t.Run("applies to matching model", func(t *testing.T) {
		p, err := ParseProfile([]byte(ic7300Profile))
		require.NoError(t, err)

		g := NewGate(fullCaps(), p)
		assert.Equal(t, RequiresActiveVFOOnly, g.Decide(SetFreqSub))
		assert.Equal(t, Unsupported, g.Decide(GetLevel(rig.LevelAGC)))
		assert.Equal(t, Supported, g.Decide(SetLevel(rig.LevelAGC)))
		assert.Equal(t, Unsupported, g.Decide(SetAntenna))
		// a kind-wide pin covers every argument
		assert.Equal(t, Supported, g.Decide(VFOOp(rig.OpCopy)))
		assert.Equal(t, 1, g.Capabilities().Antennas)
	})

	t.Run("ignored for other models", func(t *testing.T) {
		p, err := ParseProfile([]byte(ic7300Profile))
		require.NoError(t, err)

		caps := fullCaps()
		caps.ModelID = 1
		g := NewGate(caps, p)
		assert.Equal(t, Supported, g.Decide(SetFreqSub))
		assert.Equal(t, Supported, g.Decide(GetLevel(rig.LevelAGC)))
	})

	t.Run("rejects bad documents", func(t *testing.T) {
		_, err := ParseProfile([]byte("models: [1]\n"))
		assert.Error(t, err, "name is required")

		_, err = ParseProfile([]byte("name: x\nmodels: [1]\noperations:\n  fly: supported\n"))
		assert.Error(t, err)

		_, err = ParseProfile([]byte("name: x\nmodels: [1]\noperations:\n  set_power: maybe\n"))
		assert.Error(t, err)
	})

	t.Run("load directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ic7300.yaml"), []byte(ic7300Profile), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a profile"), 0644))

		profiles, err := LoadProfiles(dir)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, "ic7300", profiles[0].Name)

		none, err := LoadProfiles(filepath.Join(dir, "missing"))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
