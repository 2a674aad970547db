// Package ncutil wraps the go-native-netcdf reader with the small
// coercions the format parsers need: NWB files are HDF5 in the wild,
// while fixtures and some pipelines produce classic CDF, and the two
// backends hand back different integer widths for the same variable.
package ncutil

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Open opens a NetCDF/HDF5 container by sniffing its magic bytes, so
// both .nwb (HDF5), .nc and .mat v7.3 files go through the same path.
func Open(path string) (api.Group, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return g, nil
}

// List returns every variable path in the container in dotted form,
// walking subgroups depth-first. A flat classic-CDF file yields its
// root names unchanged; an HDF5 file's /units/spike_times comes back
// as "units.spike_times".
func List(g api.Group) []string {
	names := append([]string(nil), g.ListVariables()...)
	for _, sub := range g.ListSubgroups() {
		sg, err := g.GetGroup(sub)
		if err != nil {
			continue
		}
		for _, n := range List(sg) {
			names = append(names, sub+"."+n)
		}
	}
	return names
}

// lookup resolves a dotted name: first as a flat root variable (classic
// CDF keeps the dots in the name), then by descending subgroups (HDF5
// stores each dot segment as a group). Subgroup handles share the
// container; the root Close releases them.
func lookup(g api.Group, name string) (*api.Variable, error) {
	vr, flatErr := g.GetVariable(name)
	if flatErr == nil {
		return vr, nil
	}
	parts := strings.Split(name, ".")
	if len(parts) == 1 {
		return nil, fmt.Errorf("variable %s: %w", name, flatErr)
	}
	cur := g
	for _, p := range parts[:len(parts)-1] {
		sub, err := cur.GetGroup(p)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, flatErr)
		}
		cur = sub
	}
	vr, err := cur.GetVariable(parts[len(parts)-1])
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	return vr, nil
}

// Has reports whether the container defines the named variable, flat or
// nested.
func Has(g api.Group, name string) bool {
	for _, v := range List(g) {
		if v == name {
			return true
		}
	}
	return false
}

// Floats reads a 1-D variable as float64s, converting integer and
// float32 storage.
func Floats(g api.Group, name string) ([]float64, error) {
	vr, err := lookup(g, name)
	if err != nil {
		return nil, err
	}
	return toFloats(name, vr.Values)
}

// Ints reads a 1-D variable as int64s.
func Ints(g api.Group, name string) ([]int64, error) {
	vr, err := lookup(g, name)
	if err != nil {
		return nil, err
	}
	switch v := vr.Values.(type) {
	case []int64:
		return v, nil
	case []int32:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []int16:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []float64:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("variable %s: unsupported integer storage %T", name, vr.Values)
	}
}

// Scalar reads a scalar or single-element variable as a float64.
func Scalar(g api.Group, name string) (float64, error) {
	vr, err := lookup(g, name)
	if err != nil {
		return 0, err
	}
	switch v := vr.Values.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	vals, err := toFloats(name, vr.Values)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("variable %s: %d values, want scalar", name, len(vals))
	}
	return vals[0], nil
}

// Matrix reads a 2-D variable as a row-major flat slice.
func Matrix(g api.Group, name string) (rows, cols int, flat []float64, err error) {
	vr, err := lookup(g, name)
	if err != nil {
		return 0, 0, nil, err
	}
	switch v := vr.Values.(type) {
	case [][]float64:
		return flatten2(name, v, func(x float64) float64 { return x })
	case [][]float32:
		return flatten2(name, v, func(x float32) float64 { return float64(x) })
	default:
		return 0, 0, nil, fmt.Errorf("variable %s: unsupported matrix storage %T", name, vr.Values)
	}
}

// Cube reads a 3-D variable as a row-major flat slice plus its shape.
func Cube(g api.Group, name string) (shape []int, flat []float64, err error) {
	vr, err := lookup(g, name)
	if err != nil {
		return nil, nil, err
	}
	switch v := vr.Values.(type) {
	case [][][]float64:
		return flatten3(name, v, func(x float64) float64 { return x })
	case [][][]float32:
		return flatten3(name, v, func(x float32) float64 { return float64(x) })
	default:
		return nil, nil, fmt.Errorf("variable %s: unsupported cube storage %T", name, vr.Values)
	}
}

func toFloats(name string, values interface{}) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case float64:
		return []float64{v}, nil
	default:
		return nil, fmt.Errorf("variable %s: unsupported storage %T", name, values)
	}
}

func flatten2[T float32 | float64](name string, v [][]T, conv func(T) float64) (int, int, []float64, error) {
	rows := len(v)
	if rows == 0 {
		return 0, 0, nil, nil
	}
	cols := len(v[0])
	flat := make([]float64, 0, rows*cols)
	for i, row := range v {
		if len(row) != cols {
			return 0, 0, nil, fmt.Errorf("variable %s: ragged row %d", name, i)
		}
		for _, x := range row {
			flat = append(flat, conv(x))
		}
	}
	return rows, cols, flat, nil
}

func flatten3[T float32 | float64](name string, v [][][]T, conv func(T) float64) ([]int, []float64, error) {
	d0 := len(v)
	if d0 == 0 {
		return []int{0, 0, 0}, nil, nil
	}
	d1 := len(v[0])
	d2 := 0
	if d1 > 0 {
		d2 = len(v[0][0])
	}
	flat := make([]float64, 0, d0*d1*d2)
	for i, plane := range v {
		if len(plane) != d1 {
			return nil, nil, fmt.Errorf("variable %s: ragged plane %d", name, i)
		}
		for j, row := range plane {
			if len(row) != d2 {
				return nil, nil, fmt.Errorf("variable %s: ragged row %d,%d", name, i, j)
			}
			for _, x := range row {
				flat = append(flat, conv(x))
			}
		}
	}
	return []int{d0, d1, d2}, flat, nil
}
