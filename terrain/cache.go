package terrain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// diskElevationMap is the on-disk representation of an ElevationMap; it
// is kept separate from ElevationMap so the hot rendering path's struct
// never has to think about serialization.
type diskElevationMap struct {
	Rows, Cols int
	TileIndex  int
	Data       []int16
}

func cachePath(baseDir string, row, col int) string {
	return filepath.Join(baseDir, "tiles", fmt.Sprintf("%d", row), fmt.Sprintf("%d.zst", col))
}

// StoreTile writes a decoded tile's elevation samples under baseDir,
// msgpack-encoding it and zstd-compressing the result. Terrain tiles
// compress far better with zstd than with the flate codec util's
// generic object cache uses elsewhere, since elevation samples are
// highly autocorrelated, so tiles get their own on-disk format.
func StoreTile(baseDir string, row, col int, t *Tile) error {
	if t.Elevation == nil {
		return fmt.Errorf("terrain: tile (%d,%d) has no decoded elevation to cache", row, col)
	}

	p := cachePath(baseDir, row, col)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	d := diskElevationMap{Rows: t.Elevation.Rows, Cols: t.Elevation.Cols, TileIndex: t.TileIndex, Data: t.Elevation.Data}
	if err := msgpack.NewEncoder(zw).Encode(d); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// LoadTile reads a tile previously written by StoreTile. ok is false if
// no cached copy exists on disk.
func LoadTile(baseDir string, row, col int) (m *ElevationMap, tileIndex int, ok bool, err error) {
	p := cachePath(baseDir, row, col)
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, 0, false, err
	}
	defer zr.Close()

	var d diskElevationMap
	if err := msgpack.NewDecoder(zr).Decode(&d); err != nil {
		return nil, 0, false, err
	}

	return &ElevationMap{Rows: d.Rows, Cols: d.Cols, Data: d.Data}, d.TileIndex, true, nil
}

// CachingTileSource wraps a TileSource so decoded tiles are persisted
// to baseDir and re-read on subsequent process runs instead of being
// re-decoded from the raw terrain-map file every time.
type CachingTileSource struct {
	BaseDir string
	Source  TileSource
}

func (c *CachingTileSource) DecodeTile(row, col int) (*ElevationMap, int, bool, error) {
	if m, idx, ok, err := LoadTile(c.BaseDir, row, col); err != nil {
		return nil, 0, false, err
	} else if ok {
		return m, idx, true, nil
	}

	m, idx, present, err := c.Source.DecodeTile(row, col)
	if err != nil || !present {
		return m, idx, present, err
	}

	t := &Tile{Row: row, Col: col, Elevation: m, TileIndex: idx}
	if err := StoreTile(c.BaseDir, row, col, t); err != nil {
		return m, idx, present, nil // caching is best-effort; still return the decoded tile
	}
	return m, idx, present, nil
}
