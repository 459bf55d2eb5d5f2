// Package worldmap assembles the tiles that are currently visible
// around the aircraft into one contiguous elevation grid, and tracks
// the aircraft's own sub-pixel location within that grid.
package worldmap

import (
	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/log"
	ndmath "github.com/flybywiresim/ndterrain-core/math"
	"github.com/flybywiresim/ndterrain-core/terrain"
	"github.com/flybywiresim/ndterrain-core/util"
)

const defaultSamplesPerTile = 300

// Pixel is a sub-pixel location within the world-map grid.
type Pixel struct {
	X, Y float32
}

// Cache is the single contiguous elevation grid covering the tiles
// around the aircraft's current position, plus the aircraft's location
// within it. It is owned exclusively by the render worker; the RPC
// server only ever reads a deep copy of derived state, never this
// struct itself.
type Cache struct {
	lg    *log.Logger
	store *terrain.Store
	tex   *Texture

	mu util.LoggingMutex

	Width, Height int
	Grid          []int16 // row-major, origin north-west, length Width*Height

	minSamplesPerTileX, minSamplesPerTileY int

	swLat, swLon float64
	latStep, lonStep float64 // per-sample steps, i.e. DEM step / samplesPerTile

	EgoPixel Pixel

	lastGrid [][]terrain.TileKey
}

func NewCache(store *terrain.Store, acc accel.Accelerator, lg *log.Logger) *Cache {
	return &Cache{store: store, lg: lg, tex: NewTexture(acc)}
}

// Rebuild assembles the contiguous grid from the tiles referenced by
// grid, per §4.3: absent tiles contribute WATER, present-but-undecoded
// tiles contribute UNKNOWN, decoded tiles contribute their top-left
// minSamplesPerTileY x minSamplesPerTileX sub-block.
func (c *Cache) Rebuild(grid [][]terrain.TileKey) {
	c.mu.Lock(c.lg)
	defer c.mu.Unlock(c.lg)

	sx, sy := c.samplesPerTile(grid)
	c.minSamplesPerTileX, c.minSamplesPerTileY = sx, sy

	rows, cols := len(grid), len(grid[0])
	c.Width, c.Height = sx*cols, sy*rows
	c.tex.Release() // dependent texture goes before the grid it samples
	c.Grid = make([]int16, c.Width*c.Height)

	dem := c.store.DEM()

	for r, row := range grid {
		for cc, key := range row {
			t := c.store.GetTile(key)
			baseRow, baseCol := (rows-1-r)*sy, cc*sx

			switch {
			case t == nil || t.Absent():
				c.fillBlock(baseRow, baseCol, sx, sy, terrain.Water)
			case t.Elevation == nil:
				c.fillBlock(baseRow, baseCol, sx, sy, terrain.Unknown)
			default:
				c.copyBlock(baseRow, baseCol, sx, sy, t.Elevation)
			}
		}
	}

	swKey := grid[0][0]
	neKey := grid[rows-1][cols-1]
	c.swLat = dem.SWLat + float64(swKey[0])*dem.LatStep
	c.swLon = dem.SWLon + float64(swKey[1])*dem.LonStep
	neLat := dem.SWLat + float64(neKey[0]+1)*dem.LatStep
	neLon := dem.SWLon + float64(neKey[1]+1)*dem.LonStep

	c.latStep = (neLat - c.swLat) / float64(c.Height)
	c.lonStep = (neLon - c.swLon) / float64(c.Width)

	if err := c.tex.Upload(c.Grid, c.Width, c.Height); err != nil {
		c.lg.Errorf("world-map cache: accelerator texture upload failed: %v", err)
	}
	c.store.CleanupElevationCache(grid)

	c.lastGrid = grid
}

func (c *Cache) samplesPerTile(grid [][]terrain.TileKey) (x, y int) {
	x, y = 0, 0
	for _, row := range grid {
		for _, key := range row {
			t := c.store.GetTile(key)
			if t == nil || t.Absent() || t.Elevation == nil {
				continue
			}
			if x == 0 || t.Elevation.Cols < x {
				x = t.Elevation.Cols
			}
			if y == 0 || t.Elevation.Rows < y {
				y = t.Elevation.Rows
			}
		}
	}
	if x == 0 {
		x = defaultSamplesPerTile
	}
	if y == 0 {
		y = defaultSamplesPerTile
	}
	return
}

func (c *Cache) fillBlock(baseRow, baseCol, w, h int, v int16) {
	for dy := 0; dy < h; dy++ {
		row := (baseRow + dy) * c.Width
		for dx := 0; dx < w; dx++ {
			c.Grid[row+baseCol+dx] = v
		}
	}
}

func (c *Cache) copyBlock(baseRow, baseCol, w, h int, m *terrain.ElevationMap) {
	for dy := 0; dy < h; dy++ {
		srcRow := m.Rows - 1 - dy // tile row 0 is southernmost; grid row 0 is northernmost
		row := (baseRow + dy) * c.Width
		for dx := 0; dx < w; dx++ {
			c.Grid[row+baseCol+dx] = m.At(srcRow, dx)
		}
	}
}

// RecomputeEgoPixel updates EgoPixel for the aircraft at position,
// given the tile lattice cell it currently occupies. It must be called
// after every position update, whether or not Rebuild ran.
func (c *Cache) RecomputeEgoPixel(position ndmath.Point2LL, grid [][]terrain.TileKey) {
	c.mu.Lock(c.lg)
	defer c.mu.Unlock(c.lg)

	if c.minSamplesPerTileX == 0 || c.minSamplesPerTileY == 0 {
		c.EgoPixel = Pixel{float32(c.Width) / 2, float32(c.Height) / 2}
		return
	}

	dem := c.store.DEM()
	posRow := int(ndmath.Floor(float32((float64(position.Latitude()) - dem.SWLat) / dem.LatStep)))
	posCol := int(ndmath.Floor(float32((float64(position.Longitude()) - dem.SWLon) / dem.LonStep)))

	rowIdx, colIdx := -1, -1
	for r, row := range grid {
		for cc, key := range row {
			if key[0] == posRow && key[1] == posCol {
				rowIdx, colIdx = r, cc
			}
		}
	}

	if rowIdx < 0 {
		c.EgoPixel = Pixel{float32(c.Width) / 2, float32(c.Height) / 2}
		return
	}

	swLat := dem.SWLat + float64(posRow)*dem.LatStep
	swLon := dem.SWLon + float64(posCol)*dem.LonStep
	latStep := dem.LatStep / float64(c.minSamplesPerTileY)
	lonStep := dem.LonStep / float64(c.minSamplesPerTileX)

	latDelta := float64(position.Latitude()) - swLat
	lonDelta := float64(position.Longitude()) - swLon

	x := float32(colIdx*c.minSamplesPerTileX) + float32(lonDelta/lonStep)
	y := float32((len(grid)-1-rowIdx)*c.minSamplesPerTileY) + float32(float64(c.minSamplesPerTileY)-latDelta/latStep)

	c.EgoPixel = Pixel{x, y}
}

// ExtractElevation samples the cached CPU-side grid at (lat, lon),
// relative to the aircraft's current EgoPixel.
func (c *Cache) ExtractElevation(aircraft ndmath.Point2LL, lat, lon float32) int16 {
	c.mu.Lock(c.lg)
	defer c.mu.Unlock(c.lg)

	if len(c.Grid) == 0 {
		return terrain.Invalid
	}
	if c.latStep == 0 || c.lonStep == 0 {
		return terrain.Unknown
	}

	dy := (float64(aircraft.Latitude()) - float64(lat)) / c.latStep
	dx := (float64(lon) - float64(aircraft.Longitude())) / c.lonStep

	x := int(ndmath.Floor(c.EgoPixel.X + float32(dx)))
	y := int(ndmath.Floor(c.EgoPixel.Y + float32(dy)))

	if x < 0 || x >= c.Width || y < 0 || y >= c.Height {
		return terrain.Unknown
	}
	return c.Grid[y*c.Width+x]
}

// Texture returns the accelerator-side handle backing this grid.
func (c *Cache) Texture() *Texture { return c.tex }

// LatStep and LonStep are the per-sample angular steps of the current
// grid; both are zero until the first Rebuild.
func (c *Cache) LatStep() float64 { return c.latStep }
func (c *Cache) LonStep() float64 { return c.lonStep }

// Release discards the CPU grid and the accelerator texture, per the
// ownership rule that the texture never outlives its CPU buffer.
func (c *Cache) Release() {
	c.mu.Lock(c.lg)
	defer c.mu.Unlock(c.lg)
	c.Grid = nil
	c.Width, c.Height = 0, 0
	c.tex.Release()
}
