// Package v1 contains the v1 session export format.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion  int           `json:"formatVersion"`
	ServiceVersion string        `json:"serviceVersion"`
	SessionName    string        `json:"sessionName"`
	Convention     string        `json:"convention"`
	AssetName      string        `json:"assetName"`
	StartTime      string        `json:"startTime"`
	EndFrame       int           `json:"endFrame"`
	Calibrations   []Calibration `json:"calibrations"`
	Frames         [][]any       `json:"frames"`
	Events         [][]any       `json:"events"`
}

// Calibration is one calibration pass.
// Anchors are keyed by landmark: [x, y, z, qx, qy, qz, qw].
// Joints are [name, parent, [x, y, z]] in walk order.
type Calibration struct {
	Frame      int                   `json:"frame"`
	LowerBody  bool                  `json:"lowerBody"`
	Degenerate []string              `json:"degenerate"`
	Anchors    map[string][7]float64 `json:"anchors"`
	Joints     [][]any               `json:"joints"`
}
