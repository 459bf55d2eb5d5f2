package terrain

import (
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// BackendTileSource decodes tiles directly from a Backend, using the
// same zstd+msgpack wire format StoreTile writes to the local disk
// cache; a Backend-backed terrain-map file lays its tiles out
// identically, keyed by the path cachePath would produce relative to
// the bucket or directory root.
type BackendTileSource struct {
	Backend Backend
}

func (b *BackendTileSource) DecodeTile(row, col int) (*ElevationMap, int, bool, error) {
	r, err := b.Backend.OpenRead(tileObjectPath(row, col))
	if err != nil {
		return nil, 0, false, nil // absent tile: outside the terrain-map file's coverage
	}
	defer r.Close()

	zr, err := zstd.NewReader(r)
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

func tileObjectPath(row, col int) string {
	return cachePath("", row, col)
}
