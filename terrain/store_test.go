package terrain

import (
	"sync/atomic"
	"testing"

	"github.com/flybywiresim/ndterrain-core/log"
	ndmath "github.com/flybywiresim/ndterrain-core/math"
)

type fakeSource struct {
	calls atomic.Int64
}

func (f *fakeSource) DecodeTile(row, col int) (*ElevationMap, int, bool, error) {
	f.calls.Add(1)
	if row < 0 {
		return nil, 0, false, nil
	}
	m := NewElevationMap(4, 4)
	return m, row*1000 + col, true, nil
}

func testDEM() DEM {
	return DEM{SWLat: 40, SWLon: 10, LatStep: 1, LonStep: 1, NumRows: 60, NumCols: 60, ElevationResolution: 30}
}

func TestCreateGridLookupTableCentered(t *testing.T) {
	s := NewStore(testDEM(), &fakeSource{}, log.New("info", t.TempDir()))
	s.VisibilityRange = 60 // roughly one degree of latitude

	grid := s.CreateGridLookupTable(ndmath.Point2LL{10.5, 40.5})
	if len(grid) == 0 || len(grid[0]) == 0 {
		t.Fatalf("expected non-empty grid, got %dx%d", len(grid), len(grid[0]))
	}

	// the centre cell (row 0, col 0 of the DEM lattice) must be present.
	found := false
	for _, row := range grid {
		for _, key := range row {
			if key == (TileKey{0, 0}) {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected grid to include the lattice cell under the aircraft")
	}
}

func TestUpdatePositionDecodesOnce(t *testing.T) {
	src := &fakeSource{}
	s := NewStore(testDEM(), src, log.New("info", t.TempDir()))
	s.VisibilityRange = 60

	grid := s.CreateGridLookupTable(ndmath.Point2LL{10.5, 40.5})

	if !s.UpdatePosition(grid) {
		t.Error("expected first UpdatePosition to report newly decoded tiles")
	}
	callsAfterFirst := src.calls.Load()

	if s.UpdatePosition(grid) {
		t.Error("expected second UpdatePosition over the same grid to decode nothing new")
	}
	if got := src.calls.Load(); got != callsAfterFirst {
		t.Errorf("expected no further TileSource calls, got %d more", got-callsAfterFirst)
	}
}

// TestUpdatePositionDecodesLargeGridConcurrently exercises a grid wide
// enough to exceed maxConcurrentTileFetches, checking that every
// pending tile still gets decoded exactly once even though the fetches
// run concurrently.
func TestUpdatePositionDecodesLargeGridConcurrently(t *testing.T) {
	src := &fakeSource{}
	s := NewStore(testDEM(), src, log.New("info", t.TempDir()))

	const rows, cols = 5, 10 // > maxConcurrentTileFetches cells
	grid := make([][]TileKey, rows)
	for r := range grid {
		row := make([]TileKey, cols)
		for c := range row {
			row[c] = TileKey{r, c}
		}
		grid[r] = row
	}

	if !s.UpdatePosition(grid) {
		t.Fatal("expected newly decoded tiles")
	}
	if got := src.calls.Load(); got != rows*cols {
		t.Errorf("expected %d DecodeTile calls, got %d", rows*cols, got)
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			tile := s.GetTile(TileKey{r, c})
			if tile == nil || tile.Elevation == nil {
				t.Errorf("expected tile (%d,%d) to be decoded", r, c)
			}
		}
	}
}

func TestCleanupElevationCacheEvictsUnreferenced(t *testing.T) {
	src := &fakeSource{}
	s := NewStore(testDEM(), src, log.New("info", t.TempDir()))
	s.VisibilityRange = 60

	grid := s.CreateGridLookupTable(ndmath.Point2LL{10.5, 40.5})
	s.UpdatePosition(grid)

	key := grid[0][0]
	if s.GetTile(key) == nil {
		t.Fatal("expected tile to exist after UpdatePosition")
	}

	s.CleanupElevationCache([][]TileKey{{{999, 999}}})

	if s.GetTile(key) != nil {
		t.Error("expected tile outside the new grid to be evicted")
	}
}

func TestElevationMapOutOfRangeIsInvalid(t *testing.T) {
	m := NewElevationMap(2, 2)
	if v := m.At(5, 5); v != Invalid {
		t.Errorf("expected Invalid for out-of-range access, got %d", v)
	}
}
