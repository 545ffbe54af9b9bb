package mastercat

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/skymatch/internal/catalog"
	"github.com/banshee-data/skymatch/internal/sky"
)

func makeCatalog(survey string, pos []sky.Position) *catalog.Catalog {
	recs := make([]catalog.Record, len(pos))
	for i, p := range pos {
		recs[i] = catalog.Record{ID: survey + "-" + strconv.Itoa(i), RA: p.RA, Dec: p.Dec, HEALPix: int64(i)}
	}
	return catalog.New(survey, recs)
}

func scenarioOne() []Input {
	return []Input{
		{Survey: "sdss", Catalog: makeCatalog("sdss", []sky.Position{{RA: 10, Dec: 10}, {RA: 20, Dec: 20}, {RA: 30, Dec: 30}})},
		{Survey: "hsc", Catalog: makeCatalog("hsc", []sky.Position{{RA: 20, Dec: 20}, {RA: 40, Dec: 40}, {RA: 50, Dec: 50}})},
	}
}

func TestBuildCatalogue_TwoSurveys(t *testing.T) {
	cat, err := BuildCatalogue(scenarioOne(), 1.0)
	require.NoError(t, err)

	require.Equal(t, 5, cat.Len())
	assert.Equal(t, []string{"sdss", "hsc"}, cat.Surveys)
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, cat.RA)
	assert.Equal(t, []bool{true, true, true, false, false}, cat.Membership["sdss"])
	assert.Equal(t, []bool{false, true, false, true, true}, cat.Membership["hsc"])
	assert.Equal(t, []int{0, 1, 2, -1, -1}, cat.Index["sdss"])
	assert.Equal(t, []int{-1, 0, -1, 1, 2}, cat.Index["hsc"])
	assert.Equal(t, 1, cat.MatchedCount())
	assert.Equal(t, 3, cat.Count("sdss"))
	assert.Equal(t, 3, cat.Count("hsc"))
	assert.Equal(t, 0, cat.Count("gaia"))
}

func TestBuildCatalogue_SameSurveyTwice(t *testing.T) {
	in := scenarioOne()
	in = append(in, Input{Survey: "sdss", Catalog: in[0].Catalog})
	cat, err := BuildCatalogue(in, 1.0)
	assert.Nil(t, cat, "no partial catalog on error")
	var inErr *catalog.InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "sdss", inErr.Survey)
}

func TestBuildCatalogue_Idempotent(t *testing.T) {
	first, err := BuildCatalogue(scenarioOne(), 1.0)
	require.NoError(t, err)
	second, err := BuildCatalogue(scenarioOne(), 1.0)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("rebuild differs (-first +second):\n%s", diff)
	}
}

func TestBuildCatalogue_OrderSensitivity(t *testing.T) {
	centre := sky.Position{RA: 200, Dec: 45}
	a := makeCatalog("a", []sky.Position{centre, sky.Offset(centre, 30, 0), sky.Offset(centre, 0, 90)})
	b := makeCatalog("b", []sky.Position{sky.Offset(centre, 0.2, 0), sky.Offset(centre, 120, 0)})
	c := makeCatalog("c", []sky.Position{sky.Offset(centre, 30.4, 0), sky.Offset(centre, 0.1, 90)})

	ab, err := BuildCatalogue([]Input{{a, "a"}, {b, "b"}, {c, "c"}}, 1.0)
	require.NoError(t, err)
	ba, err := BuildCatalogue([]Input{{c, "c"}, {b, "b"}, {a, "a"}}, 1.0)
	require.NoError(t, err)

	assert.Equal(t, ab.MatchedCount(), ba.MatchedCount())
	assert.Equal(t, ab.Len(), ba.Len())
	assert.Equal(t, []float64{a.RA[0], a.RA[1], a.RA[2], b.RA[1]}, ab.RA)
	assert.Equal(t, c.RA[0], ba.RA[0], "row order follows the first survey added")
}

func TestBuildCatalogue_EmptyCatalogs(t *testing.T) {
	empty := makeCatalog("empty", nil)
	full := makeCatalog("full", []sky.Position{{RA: 1, Dec: 1}, {RA: 2, Dec: 2}})

	t.Run("empty first", func(t *testing.T) {
		cat, err := BuildCatalogue([]Input{{empty, "empty"}, {full, "full"}}, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 2, cat.Len())
		assert.Equal(t, []bool{false, false}, cat.Membership["empty"])
		assert.Equal(t, []int{-1, -1}, cat.Index["empty"])
		assert.Equal(t, []int{0, 1}, cat.Index["full"])
	})

	t.Run("empty later", func(t *testing.T) {
		cat, err := BuildCatalogue([]Input{{full, "full"}, {empty, "empty"}}, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 2, cat.Len())
		assert.Equal(t, 0, cat.Count("empty"))
		assert.Equal(t, 0, cat.MatchedCount())
	})

	t.Run("nothing", func(t *testing.T) {
		cat, err := BuildCatalogue(nil, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 0, cat.Len())
		assert.Empty(t, cat.Surveys)
	})
}

func TestBuilder_InvalidRadius(t *testing.T) {
	_, err := NewBuilder(-0.5)
	assert.Error(t, err)
}

func TestBuilder_FailedAddLeavesStateUntouched(t *testing.T) {
	b, err := NewBuilder(1.0)
	require.NoError(t, err)
	in := scenarioOne()
	require.NoError(t, b.Add(in[0].Catalog, in[0].Survey))
	before := b.Rows()

	bad := makeCatalog("bad", []sky.Position{{RA: 20, Dec: 20}})
	bad.Dec = nil
	err = b.Add(bad, "bad")
	var inErr *catalog.InputError
	require.True(t, errors.As(err, &inErr))

	assert.Equal(t, []string{"sdss"}, b.Surveys())
	assert.Equal(t, before, b.Rows())

	assert.Error(t, b.Add(in[1].Catalog, ""))
}

// An incoming object that lies inside the radius of a master row, but is not
// that row's nearest incoming object, is dropped: the forward pass records
// only the nearest, and the reverse pass sees a master neighbour in range.
func TestBuilder_ShadowedIncomingRowIsDropped(t *testing.T) {
	m := sky.Position{RA: 80, Dec: -30}
	b, err := NewBuilder(1.0)
	require.NoError(t, err)
	require.NoError(t, b.Add(makeCatalog("a", []sky.Position{m}), "a"))

	incoming := makeCatalog("b", []sky.Position{sky.Offset(m, 0.2, 0), sky.Offset(m, -0.6, 0)})
	require.NoError(t, b.Add(incoming, "b"))

	rows := b.Rows()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Observed("b"))
	assert.Equal(t, 0, rows[0].Index("b"))
}

// Each direction compares its own separation against the radius. With a
// pure declination offset both directions compute the same separation, so a
// radius equal to it rejects the pair both ways and the point is appended.
func TestBuilder_BoundaryDirectionsAreIndependent(t *testing.T) {
	m := sky.Position{RA: 33.3, Dec: 12.1}
	p := sky.Offset(m, 0, 0.4)
	radius := sky.SeparationArcsec(m, p)
	require.Equal(t, radius, sky.SeparationArcsec(p, m))

	b, err := NewBuilder(radius)
	require.NoError(t, err)
	require.NoError(t, b.Add(makeCatalog("a", []sky.Position{m}), "a"))
	require.NoError(t, b.Add(makeCatalog("b", []sky.Position{p}), "b"))

	rows := b.Rows()
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Observed("b"), "forward separation equals the radius")
	assert.False(t, rows[1].Observed("a"))
	assert.Equal(t, 0, rows[1].Index("b"))

	// Just inside the radius both directions agree on a match.
	b, err = NewBuilder(math.Nextafter(radius, math.Inf(1)))
	require.NoError(t, err)
	require.NoError(t, b.Add(makeCatalog("a", []sky.Position{m}), "a"))
	require.NoError(t, b.Add(makeCatalog("b", []sky.Position{p}), "b"))
	rows = b.Rows()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Observed("b"))
}

func TestRestore(t *testing.T) {
	in := scenarioOne()
	orig, err := NewBuilder(1.0)
	require.NoError(t, err)
	require.NoError(t, orig.Add(in[0].Catalog, in[0].Survey))

	rows := orig.Rows()
	delete(rows[0].Membership, "sdss")
	restored, err := Restore(1.0, orig.Surveys(), rows)
	require.NoError(t, err)
	assert.False(t, restored.Rows()[0].Observed("sdss"))
	assert.Equal(t, -1, restored.Rows()[0].Index("gaia"))

	require.NoError(t, restored.Add(in[1].Catalog, in[1].Survey))
	assert.Equal(t, 5, restored.Len())
	assert.Equal(t, []string{"sdss", "hsc"}, restored.Surveys())

	_, err = Restore(1.0, []string{"x", "x"}, nil)
	assert.Error(t, err)
}

func TestCatalog_WideColumns(t *testing.T) {
	cat, err := BuildCatalogue(scenarioOne(), 1.0)
	require.NoError(t, err)

	assert.Equal(t, []string{"ra", "dec", "healpix", "sdss", "sdss_idx", "hsc", "hsc_idx"}, cat.ColumnNames())
	assert.Equal(t, []string{"20", "20", "1", "true", "1", "true", "0"}, cat.Values(1))
	assert.Equal(t, []string{"40", "40", "1", "false", "-1", "true", "1"}, cat.Values(3))

	row := cat.Row(3)
	assert.Equal(t, 1, row.Index("hsc"))
	assert.False(t, row.Observed("sdss"))
	assert.Len(t, cat.Rows(), 5)
}
