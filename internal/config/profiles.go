package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neurodeck/mindlink/internal/eeg"
)

// Profiles is the operator-edited tolerance cascade definition. A
// tolerance of 0 on any field means the field is ignored during
// matching (see eeg.FaultProfile).
type Profiles struct {
	Base       eeg.FaultProfile `yaml:"base"`
	Multiplier eeg.FaultProfile `yaml:"multiplier"`
	Levels     int              `yaml:"levels"`
}

// DefaultProfiles mirrors the tuning shipped with the original device
// tool: tight attention/meditation windows, wide delta/theta, and a ×3
// widening per level on the band powers.
func DefaultProfiles() Profiles {
	return Profiles{
		Base: eeg.FaultProfile{
			Attention:  5,
			Meditation: 10,
			Delta:      300,
			Theta:      300,
		},
		Multiplier: eeg.FaultProfile{
			Attention:  1,
			Meditation: 1,
			Signal:     1,
			Delta:      3,
			Theta:      3,
			LowAlpha:   3,
			HighAlpha:  3,
			LowBeta:    3,
			HighBeta:   3,
			LowGamma:   3,
			HighGamma:  3,
		},
		Levels: 1,
	}
}

// LoadProfiles reads the YAML cascade file. A missing file yields the
// defaults; a malformed file is an error.
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("config: no profile file at %s, using defaults", path)
		return DefaultProfiles(), nil
	}
	if err != nil {
		return Profiles{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	p := DefaultProfiles()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profiles{}, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return Profiles{}, fmt.Errorf("profile file %s: %w", path, err)
	}
	return p, nil
}

// Cascade expands the profile definition into the ordered tolerance
// levels the matcher consumes.
func (p Profiles) Cascade() []eeg.FaultProfile {
	return eeg.BuildCascade(p.Base, p.Multiplier, p.Levels)
}

func (p Profiles) validate() error {
	if p.Levels < 1 {
		return fmt.Errorf("levels must be >= 1, got %d", p.Levels)
	}
	for _, check := range []struct {
		name    string
		profile eeg.FaultProfile
	}{
		{"base", p.Base},
		{"multiplier", p.Multiplier},
	} {
		for _, v := range profileValues(check.profile) {
			if v < 0 {
				return fmt.Errorf("%s profile holds a negative tolerance", check.name)
			}
		}
	}

	// A zero multiplier is legal but collapses every derived level's
	// field to "ignore"; that is almost never what an operator wants.
	if p.Levels > 1 {
		for _, v := range profileValues(p.Multiplier) {
			if v == 0 {
				log.Println("config: multiplier profile holds a 0; derived cascade levels will ignore that field")
				break
			}
		}
	}
	return nil
}

func profileValues(f eeg.FaultProfile) []int {
	return []int{
		f.Attention, f.Meditation, f.Signal,
		f.Delta, f.Theta,
		f.LowAlpha, f.HighAlpha,
		f.LowBeta, f.HighBeta,
		f.LowGamma, f.HighGamma,
	}
}
