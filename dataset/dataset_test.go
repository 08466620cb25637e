package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web/kmeanslab/kmeans"
)

const irisSample = `sepal_length,sepal_width,species
5.1,3.5,setosa
4.9,3.0,setosa
6.3,3.3,virginica
`

func TestLoadPicksFirstNumericColumns(t *testing.T) {
	table, err := Load(strings.NewReader(irisSample))
	require.NoError(t, err)

	assert.Equal(t, "sepal_length", table.XCol)
	assert.Equal(t, "sepal_width", table.YCol)

	points, err := table.Points()
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, kmeans.Point{X: 5.1, Y: 3.5}, points[0])
	assert.Equal(t, kmeans.Point{X: 6.3, Y: 3.3}, points[2])
}

func TestLoadTooFewNumericColumns(t *testing.T) {
	csv := "name,species\nrose,plant\nfox,animal\n"
	_, err := Load(strings.NewReader(csv))
	require.ErrorIs(t, err, ErrTooFewNumericColumns)
}

func TestSelect(t *testing.T) {
	table, err := Load(strings.NewReader(irisSample))
	require.NoError(t, err)

	require.NoError(t, table.Select("sepal_width", "sepal_length"))
	points, err := table.Points()
	require.NoError(t, err)
	assert.Equal(t, kmeans.Point{X: 3.5, Y: 5.1}, points[0])

	assert.ErrorIs(t, table.Select("species", "sepal_width"), ErrNotNumeric)
	assert.ErrorIs(t, table.Select("petal_length", "sepal_width"), ErrUnknownColumn)
}

func TestNumericColumns(t *testing.T) {
	table, err := Load(strings.NewReader(irisSample))
	require.NoError(t, err)

	cols := NumericColumns(table.Frame)
	assert.Equal(t, []string{"sepal_length", "sepal_width"}, cols)
}

func TestPointsMissingValue(t *testing.T) {
	csv := "x,y\n1.0,2.0\n,3.0\n"
	table, err := Load(strings.NewReader(csv))
	if err != nil {
		// Depending on how the reader types the column this may fail at
		// load time instead; either way the bad row must not pass through.
		return
	}
	_, err = table.Points()
	assert.Error(t, err)
}
