package cnmfe

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/nctest"
)

func writeMinianFixture(t *testing.T, dir string, fps float64) {
	t.Helper()
	require.NoError(t, nctest.Write(filepath.Join(dir, "minian.nc"),
		nctest.Var{Name: "C", Values: [][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
		}, Dims: []string{"unit", "frame"}},
		nctest.Var{Name: "A", Values: [][][]float64{
			{{1, 0}, {0, 1}},
			{{0, 2}, {2, 0}},
		}, Dims: []string{"unit", "height", "width"}},
		nctest.Var{Name: "fps", Values: []float64{fps}, Dims: []string{"scalar"}},
	))
}

func TestMinianDetect(t *testing.T) {
	dir := t.TempDir()
	p := NewMinian()
	assert.False(t, p.Detect(dir))

	writeMinianFixture(t, dir, 20)
	assert.True(t, p.Detect(dir))
}

func TestMinianParse(t *testing.T) {
	dir := t.TempDir()
	writeMinianFixture(t, dir, 20)

	rec, err := NewMinian().Parse(dir)
	require.NoError(t, err)

	require.NotNil(t, rec.Traces)
	assert.Equal(t, []string{"0", "1"}, rec.Traces.Columns)
	assert.Equal(t, []float64{0, 0.05, 0.1, 0.15}, rec.Traces.Times)
	// C is stored unit-major and comes back frame-major
	assert.Equal(t, 1.0, rec.Traces.At(0, 0))
	assert.Equal(t, 5.0, rec.Traces.At(0, 1))
	assert.Equal(t, 4.0, rec.Traces.At(3, 0))

	require.NotNil(t, rec.Footprints)
	assert.Equal(t, []int{2, 2, 2}, rec.Footprints.Shape)
	assert.Equal(t, []float64{1, 0, 0, 1, 0, 2, 2, 0}, rec.Footprints.Values)
}

func TestMinianBadFPS(t *testing.T) {
	dir := t.TempDir()
	writeMinianFixture(t, dir, 0)

	_, err := NewMinian().Parse(dir)
	require.Error(t, err)
	var src *loader.SourceError
	require.True(t, errors.As(err, &src))
	assert.Equal(t, "minian.nc", src.File)
}

func TestMinianFootprintMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, nctest.Write(filepath.Join(dir, "minian.nc"),
		nctest.Var{Name: "C", Values: [][]float64{{1, 2}}, Dims: []string{"unit", "frame"}},
		nctest.Var{Name: "A", Values: [][][]float64{
			{{1}}, {{2}}, {{3}},
		}, Dims: []string{"unit", "height", "width"}},
		nctest.Var{Name: "fps", Values: []float64{10}, Dims: []string{"scalar"}},
	))

	_, err := NewMinian().Parse(dir)
	var src *loader.SourceError
	require.True(t, errors.As(err, &src))
}
