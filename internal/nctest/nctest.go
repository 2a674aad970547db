// Package nctest writes small classic-CDF containers for parser tests.
// Production sessions carry HDF5-backed NWB files, but the reader
// sniffs the container magic, so fixtures written as classic CDF
// exercise the identical parser paths.
package nctest

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
)

// Var is one variable to write: Values may be a scalar, slice, or
// nested slices; Dims names one dimension per nesting level.
type Var struct {
	Name   string
	Values interface{}
	Dims   []string
}

// Write creates a CDF file containing the given variables.
func Write(path string, vars ...Var) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("open cdf writer %s: %w", path, err)
	}
	for _, v := range vars {
		err := cw.AddVar(v.Name, api.Variable{
			Values:     v.Values,
			Dimensions: v.Dims,
			Attributes: nil,
		})
		if err != nil {
			cw.Close()
			return fmt.Errorf("add variable %s: %w", v.Name, err)
		}
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close cdf writer %s: %w", path, err)
	}
	return nil
}
