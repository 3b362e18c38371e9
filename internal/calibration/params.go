package calibration

import "fmt"

// Params are the anthropometric coefficients of the calibration heuristics.
// Offsets are in metres; *Coff values are fractions or distances along a limb.
type Params struct {
	ElbowDistanceCoff        float64 `json:"elbowDistanceCoff" mapstructure:"elbowDistanceCoff"`
	ArmDistanceCoff          float64 `json:"armDistanceCoff" mapstructure:"armDistanceCoff"`
	ShoulderOffsetX          float64 `json:"shoulderOffsetX" mapstructure:"shoulderOffsetX"`
	ShoulderOffsetY          float64 `json:"shoulderOffsetY" mapstructure:"shoulderOffsetY"`
	NeckOffset               float64 `json:"neckOffset" mapstructure:"neckOffset"`
	HipOffset                float64 `json:"hipOffset" mapstructure:"hipOffset"`
	UpperLegHorizontalOffset float64 `json:"upperLegHorizontalOffset" mapstructure:"upperLegHorizontalOffset"`
	UpperLegVerticalOffset   float64 `json:"upperLegVerticalOffset" mapstructure:"upperLegVerticalOffset"`
	LowerLegDistanceCoff     float64 `json:"lowerLegDistanceCoff" mapstructure:"lowerLegDistanceCoff"`
}

// DefaultParams returns the coefficients tuned for an adult rig.
func DefaultParams() Params {
	return Params{
		ElbowDistanceCoff:        0.28,
		ArmDistanceCoff:          0.05,
		ShoulderOffsetX:          0.1,
		ShoulderOffsetY:          0.05,
		NeckOffset:               0.17,
		HipOffset:                0.8,
		UpperLegHorizontalOffset: 0.1,
		UpperLegVerticalOffset:   0.1,
		LowerLegDistanceCoff:     0.5,
	}
}

// Validate rejects negative offsets and interpolation fractions outside [0, 1].
func (p Params) Validate() error {
	offsets := map[string]float64{
		"armDistanceCoff":          p.ArmDistanceCoff,
		"shoulderOffsetX":          p.ShoulderOffsetX,
		"shoulderOffsetY":          p.ShoulderOffsetY,
		"neckOffset":               p.NeckOffset,
		"hipOffset":                p.HipOffset,
		"upperLegHorizontalOffset": p.UpperLegHorizontalOffset,
		"upperLegVerticalOffset":   p.UpperLegVerticalOffset,
	}
	for name, v := range offsets {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, v)
		}
	}

	fractions := map[string]float64{
		"elbowDistanceCoff":    p.ElbowDistanceCoff,
		"lowerLegDistanceCoff": p.LowerLegDistanceCoff,
	}
	for name, v := range fractions {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	return nil
}
