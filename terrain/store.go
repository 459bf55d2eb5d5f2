package terrain

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/flybywiresim/ndterrain-core/log"
	ndmath "github.com/flybywiresim/ndterrain-core/math"
)

// maxConcurrentTileFetches bounds how many DecodeTile calls run at
// once, so a remote Backend-backed TileSource doesn't fan out one
// goroutine per tile in a large grid.
const maxConcurrentTileFetches = 16

// TileKey identifies a lattice cell as (row, col).
type TileKey [2]int

// TileSource decodes a single lattice cell into an ElevationMap. It is
// implemented by the (out-of-scope) terrain-map file decoder; a Store
// with a nil source treats every cell as present-but-undecoded
// (Unknown) forever, which is how the core degrades gracefully when the
// MissingTerrainFile error kind fires at startup.
type TileSource interface {
	// DecodeTile returns the tile's elevation samples and its file
	// TileIndex, or ok=false if the lattice cell has no tile at all
	// (rendered as Water).
	DecodeTile(row, col int) (m *ElevationMap, tileIndex int, ok bool, err error)
}

// Store owns the decoded-tile cache for the DEM lattice described by
// DEM and answers visibility queries against it.
type Store struct {
	dem    DEM
	source TileSource
	lg     *log.Logger

	// VisibilityRange is the disc radius, in nautical miles, that
	// CreateGridLookupTable covers. It is configured externally; the
	// caller typically sets it to the largest configured display range.
	VisibilityRange float32

	mu    sync.Mutex
	tiles map[TileKey]*Tile

	// decoded tracks which tiles currently hold a non-nil Elevation, so
	// a runaway pile of stale decodes (e.g. a client that never calls
	// CleanupElevationCache) is still bounded. The exact per-frame
	// eviction remains CleanupElevationCache's job; this is a backstop.
	decoded *lru.Cache[TileKey, struct{}]
}

const maxResidentDecodedTiles = 512

func NewStore(dem DEM, source TileSource, lg *log.Logger) *Store {
	s := &Store{
		dem:             dem,
		source:          source,
		lg:              lg,
		VisibilityRange: 10,
		tiles:           make(map[TileKey]*Tile),
	}
	s.decoded, _ = lru.NewWithEvict[TileKey, struct{}](maxResidentDecodedTiles, func(k TileKey, _ struct{}) {
		if t, ok := s.tiles[k]; ok {
			t.Elevation = nil
		}
	})
	return s
}

func (s *Store) DEM() DEM { return s.dem }

func (s *Store) latLonToCell(lat, lon float64) (row, col int) {
	row = int(ndmath.Floor(float32((lat - s.dem.SWLat) / s.dem.LatStep)))
	col = int(ndmath.Floor(float32((lon - s.dem.SWLon) / s.dem.LonStep)))
	return
}

func (s *Store) cellSW(row, col int) (lat, lon float64) {
	return s.dem.SWLat + float64(row)*s.dem.LatStep, s.dem.SWLon + float64(col)*s.dem.LonStep
}

// CreateGridLookupTable returns the smallest axis-aligned rectangle of
// lattice cells that contains the visibility disc of radius
// VisibilityRange centred at position, per spec §4.2: the disc's SW and
// NE corners are found by projecting along bearings 225° and 45°.
func (s *Store) CreateGridLookupTable(position ndmath.Point2LL) [][]TileKey {
	distMeters := s.VisibilityRange * 1852
	swLat, swLon := ndmath.ProjectWGS84(position.Latitude(), position.Longitude(), 225, distMeters)
	neLat, neLon := ndmath.ProjectWGS84(position.Latitude(), position.Longitude(), 45, distMeters)

	rowMin, colMin := s.latLonToCell(float64(swLat), float64(swLon))
	rowMax, colMax := s.latLonToCell(float64(neLat), float64(neLon))
	if rowMax < rowMin {
		rowMin, rowMax = rowMax, rowMin
	}
	if colMax < colMin {
		colMin, colMax = colMax, colMin
	}

	grid := make([][]TileKey, rowMax-rowMin+1)
	for r := range grid {
		row := make([]TileKey, colMax-colMin+1)
		for c := range row {
			row[c] = TileKey{rowMin + r, colMin + c}
		}
		grid[r] = row
	}
	return grid
}

// tileDecodeResult carries one DecodeTile outcome back to the merge
// pass; errored distinguishes "decode failed, retry next time" (the
// zero value would otherwise be indistinguishable from a genuine
// decode of tile key {0,0}).
type tileDecodeResult struct {
	key       TileKey
	m         *ElevationMap
	tileIndex int
	present   bool
	errored   bool
}

// UpdatePosition ensures every cell referenced by grid has a Tile
// (creating tile metadata and, via the TileSource, decoding its
// elevation samples if it is newly visible). It returns true iff at
// least one tile was newly decoded, which is the signal the world-map
// cache uses to decide whether it must rebuild.
//
// Newly visible tiles are decoded concurrently, bounded by
// maxConcurrentTileFetches: a Backend-backed TileSource turns each
// DecodeTile call into a network round trip, and a freshly opened grid
// can reference dozens of tiles at once.
func (s *Store) UpdatePosition(grid [][]TileKey) bool {
	s.mu.Lock()
	var pending []TileKey
	for _, row := range grid {
		for _, key := range row {
			t, ok := s.tiles[key]
			if !ok {
				swLat, swLon := s.cellSW(key[0], key[1])
				t = &Tile{Row: key[0], Col: key[1], SWLat: float32(swLat), SWLon: float32(swLon), TileIndex: -1}
				s.tiles[key] = t
			}
			if t.DecodePending() && s.source != nil {
				pending = append(pending, key)
			}
		}
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return false
	}

	results := make([]tileDecodeResult, len(pending))
	var eg errgroup.Group
	eg.SetLimit(maxConcurrentTileFetches)
	for i, key := range pending {
		i, key := i, key
		eg.Go(func() error {
			m, idx, present, err := s.source.DecodeTile(key[0], key[1])
			if err != nil {
				s.lg.Warnf("terrain: failed to decode tile (%d,%d): %v", key[0], key[1], err)
				results[i] = tileDecodeResult{key: key, errored: true}
				return nil
			}
			results[i] = tileDecodeResult{key: key, m: m, tileIndex: idx, present: present}
			return nil
		})
	}
	eg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	decodedSomething := false
	for _, r := range results {
		if r.errored {
			continue
		}
		t, ok := s.tiles[r.key]
		if !ok {
			continue
		}
		t.decodeAttempted = true
		if !r.present {
			t.TileIndex = -1
			continue
		}
		t.TileIndex = r.tileIndex
		t.Elevation = r.m
		s.decoded.Add(r.key, struct{}{})
		decodedSomething = true
	}
	return decodedSomething
}

// CleanupElevationCache evicts any cached ElevationMap not referenced
// by grid.
func (s *Store) CleanupElevationCache(grid [][]TileKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	referenced := make(map[TileKey]bool, len(grid)*len(grid[0]))
	for _, row := range grid {
		for _, key := range row {
			referenced[key] = true
		}
	}

	for key, t := range s.tiles {
		if !referenced[key] {
			t.Elevation = nil
			s.decoded.Remove(key)
			delete(s.tiles, key)
		}
	}
}

// GetTile returns the tile at key, or nil if it has never been visited.
func (s *Store) GetTile(key TileKey) *Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tiles[key]
}
