package eeg

// FaultProfile holds one per-field matching tolerance. A field value of
// 0 means "ignore this field entirely" when filtering history records,
// NOT "must match exactly". This convention is inherited from the
// device's original tuning tool and is relied on by saved profile
// files.
type FaultProfile struct {
	Attention  int `yaml:"attention" json:"attention"`
	Meditation int `yaml:"meditation" json:"meditation"`
	Signal     int `yaml:"signal" json:"signal"`
	Delta      int `yaml:"delta" json:"delta"`
	Theta      int `yaml:"theta" json:"theta"`
	LowAlpha   int `yaml:"low_alpha" json:"low_alpha"`
	HighAlpha  int `yaml:"high_alpha" json:"high_alpha"`
	LowBeta    int `yaml:"low_beta" json:"low_beta"`
	HighBeta   int `yaml:"high_beta" json:"high_beta"`
	LowGamma   int `yaml:"low_gamma" json:"low_gamma"`
	HighGamma  int `yaml:"high_gamma" json:"high_gamma"`
}

// BuildCascade derives the multi-level tolerance cascade: level 0 is the
// base profile, each following level multiplies the previous one
// elementwise by multi. Levels are ordered narrow to wide; the matcher
// consults them in reverse.
func BuildCascade(base, multi FaultProfile, levels int) []FaultProfile {
	if levels < 1 {
		levels = 1
	}
	cascade := make([]FaultProfile, 0, levels)
	cascade = append(cascade, base)
	for i := 1; i < levels; i++ {
		prev := cascade[i-1]
		cascade = append(cascade, FaultProfile{
			Attention:  prev.Attention * multi.Attention,
			Meditation: prev.Meditation * multi.Meditation,
			Signal:     prev.Signal * multi.Signal,
			Delta:      prev.Delta * multi.Delta,
			Theta:      prev.Theta * multi.Theta,
			LowAlpha:   prev.LowAlpha * multi.LowAlpha,
			HighAlpha:  prev.HighAlpha * multi.HighAlpha,
			LowBeta:    prev.LowBeta * multi.LowBeta,
			HighBeta:   prev.HighBeta * multi.HighBeta,
			LowGamma:   prev.LowGamma * multi.LowGamma,
			HighGamma:  prev.HighGamma * multi.HighGamma,
		})
	}
	return cascade
}
