// Package config reads the optional nwbmatic.yaml sidecar that a user
// can drop into a session directory to supply information the raw
// acquisition files do not carry: the session name, epoch boundaries,
// tracking column names, or a sampling-rate override.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the sidecar file looked up inside a session directory.
const FileName = "nwbmatic.yaml"

// Epoch is one named recording epoch, in seconds.
type Epoch struct {
	Name  string  `yaml:"name"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Session is the sidecar contents. Every field is optional.
type Session struct {
	// Name overrides the session name derived from file names.
	Name string `yaml:"name"`

	// SamplingRate overrides the acquisition sampling rate in Hz.
	SamplingRate float64 `yaml:"sampling_rate"`

	// Epochs declares the session's epochs when the format stores none.
	Epochs []Epoch `yaml:"epochs"`

	// TrackingColumns names the position traces, in file column order.
	TrackingColumns []string `yaml:"tracking_columns"`
}

// Load reads dir's sidecar. A missing file is not an error: it returns
// (nil, nil) so callers can treat the sidecar as purely optional.
func Load(dir string) (*Session, error) {
	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	for i, ep := range s.Epochs {
		if ep.Name == "" {
			return nil, fmt.Errorf("%s: epoch %d has no name", FileName, i)
		}
		if ep.End < ep.Start {
			return nil, fmt.Errorf("%s: epoch %q ends before it starts", FileName, ep.Name)
		}
	}
	return &s, nil
}
