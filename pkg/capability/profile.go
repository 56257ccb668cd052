package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dougsko/rigsync/pkg/rig"
)

// Profile records the quirks of one or more device models: capability
// flags the probe gets wrong and individual operations to pin
type Profile struct {
	Name         string            `yaml:"name"`
	Models       []int             `yaml:"models"`
	Capabilities CapabilityPatch   `yaml:"capabilities,omitempty"`
	Operations   map[string]string `yaml:"operations,omitempty"`

	decisions map[Operation]Decision
}

// CapabilityPatch overrides probed flags. Nil fields keep the probed value.
type CapabilityPatch struct {
	SupportsPowerToggle   *bool `yaml:"supports_power_toggle,omitempty"`
	CanGetPower           *bool `yaml:"can_get_power,omitempty"`
	SupportsPTT           *bool `yaml:"supports_ptt,omitempty"`
	SupportsBandSelect    *bool `yaml:"supports_band_select,omitempty"`
	SubVFOFreqAddressable *bool `yaml:"sub_vfo_freq_addressable,omitempty"`
	SubVFOModeAddressable *bool `yaml:"sub_vfo_mode_addressable,omitempty"`
	CanGetAntenna         *bool `yaml:"can_get_antenna,omitempty"`
	CanSetAntenna         *bool `yaml:"can_set_antenna,omitempty"`
	Antennas              *int  `yaml:"antennas,omitempty"`
}

// Matches reports whether the profile covers model
func (p Profile) Matches(model int) bool {
	return slices.Contains(p.Models, model)
}

func (p Profile) apply(c *rig.Capabilities) {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	pc := p.Capabilities
	set(&c.SupportsPowerToggle, pc.SupportsPowerToggle)
	set(&c.CanGetPower, pc.CanGetPower)
	set(&c.SupportsPTT, pc.SupportsPTT)
	set(&c.SupportsBandSelect, pc.SupportsBandSelect)
	set(&c.SubVFOFreqAddressable, pc.SubVFOFreqAddressable)
	set(&c.SubVFOModeAddressable, pc.SubVFOModeAddressable)
	set(&c.CanGetAntenna, pc.CanGetAntenna)
	set(&c.CanSetAntenna, pc.CanSetAntenna)
	if pc.Antennas != nil {
		c.Antennas = *pc.Antennas
	}
}

// compile parses the operation table
func (p *Profile) compile() error {
	if p.Name == "" {
		return fmt.Errorf("profile must have a name")
	}
	if len(p.Models) == 0 {
		return fmt.Errorf("profile %s lists no models", p.Name)
	}
	p.decisions = make(map[Operation]Decision, len(p.Operations))
	for key, value := range p.Operations {
		op, err := ParseOperation(key)
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
		d, err := ParseDecision(value)
		if err != nil {
			return fmt.Errorf("profile %s: operation %s: %w", p.Name, key, err)
		}
		p.decisions[op] = d
	}
	return nil
}

// ParseProfile decodes one YAML profile document
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	if err := p.compile(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfiles reads every .yaml/.yml file in dir. A missing directory is
// not an error and yields no profiles.
func LoadProfiles(dir string) ([]Profile, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory %s: %w", dir, err)
	}

	var profiles []Profile
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
		p, err := ParseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile %s: %w", path, err)
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}
