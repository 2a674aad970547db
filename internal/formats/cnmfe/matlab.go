package cnmfe

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

// Matlab reads MATLAB CNMF-E result files. v7.3 .mat files are HDF5
// underneath and open through the same container reader.
type Matlab struct{}

// NewMatlab returns the cnmfe-matlab parser.
func NewMatlab() *Matlab { return &Matlab{} }

// Tag returns "cnmfe-matlab".
func (p *Matlab) Tag() string { return "cnmfe-matlab" }

// Detect looks for any .mat file.
func (p *Matlab) Detect(dir string) bool {
	_, err := findMat(dir)
	return err == nil
}

// Manifest lists the result file.
func (p *Matlab) Manifest(dir string) ([]string, error) {
	path, err := findMat(dir)
	if err != nil {
		return nil, err
	}
	return []string{filepath.Base(path)}, nil
}

// Parse reads C, A and fs from the result file.
func (p *Matlab) Parse(dir string) (*record.Record, error) {
	path, err := findMat(dir)
	if err != nil {
		return nil, err
	}
	rec, err := readCalcium(path, "fs")
	if err != nil {
		return nil, &loader.SourceError{File: filepath.Base(path), Err: err}
	}
	rec.Name = filepath.Base(dir)
	return rec, nil
}

func findMat(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mat"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no .mat file in %s", dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}
