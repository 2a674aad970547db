// Package npyutil reads the NumPy .npy files produced by phy/kilosort,
// suite2p and inscopix exports.
package npyutil

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// ReadFloats reads an .npy file of float64 values, returning the flat
// data and its shape.
func ReadFloats(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("read npy %s: fortran order not supported", path)
	}
	var data []float64
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}

// ReadInts reads an .npy file of int64 values, returning the flat data
// and its shape.
func ReadInts(path string) ([]int64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("read npy %s: fortran order not supported", path)
	}
	var data []int64
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}
