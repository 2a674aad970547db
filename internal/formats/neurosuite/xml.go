package neurosuite

import (
	"encoding/xml"
	"fmt"
	"os"
)

// sessionXML mirrors the subset of the neurosuite parameter file the
// parser needs. Neurosuite writes one <base>.xml per session describing
// the acquisition system and the spike-sorting channel groups.
type sessionXML struct {
	XMLName     xml.Name       `xml:"parameters"`
	Acquisition acquisitionXML `xml:"acquisitionSystem"`
	SpikeGroups []spikeGroup   `xml:"spikeDetection>channelGroups>group"`
}

type acquisitionXML struct {
	SamplingRate float64 `xml:"samplingRate"`
	NChannels    int     `xml:"nChannels"`
}

type spikeGroup struct {
	Channels []int `xml:"channels>channel"`
}

func readSessionXML(path string) (*sessionXML, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s sessionXML
	if err := xml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("bad parameter file: %w", err)
	}
	return &s, nil
}
