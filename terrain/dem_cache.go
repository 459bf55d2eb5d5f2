package terrain

import (
	"time"

	"github.com/flybywiresim/ndterrain-core/util"
	"github.com/vmihailenco/msgpack/v5"
)

// demHeaderObjectPath is the terrain-map file's fixed grid-header
// entry, written by the out-of-scope terrain-map producer alongside
// the elevation tiles it lists via Backend.List.
const demHeaderObjectPath = "dem_header.msgpack"

// ParseDEMHeaderFromBackend reads and decodes the terrain-map file's
// DEM header from backend. The header format (grid origin, step, and
// resolution) is msgpack-encoded, matching every other on-disk object
// this package stores via util.CacheStoreObject.
func ParseDEMHeaderFromBackend(backend Backend) (DEM, error) {
	r, err := backend.OpenRead(demHeaderObjectPath)
	if err != nil {
		return DEM{}, err
	}
	defer r.Close()

	var dem DEM
	if err := msgpack.NewDecoder(r).Decode(&dem); err != nil {
		return DEM{}, err
	}
	return dem, nil
}

// demHeaderCacheTTL bounds how long a cached DEM header is trusted
// before parse is re-run, in case the underlying terrain-map file was
// replaced.
const demHeaderCacheTTL = 24 * time.Hour

// LoadDEMHeader returns the terrain-map file's DEM header, preferring a
// cached copy under baseDir if it is younger than demHeaderCacheTTL;
// otherwise it calls parse (which reads the actual terrain-map file
// header, a format owned by the out-of-scope terrain-map producer) and
// refreshes the cache. Grounded on mmp-vice/server/wx.go's
// fetch-with-TTL-cache pattern.
func LoadDEMHeader(baseDir string, parse func() (DEM, error)) (DEM, error) {
	var cached DEM
	if t, err := util.CacheRetrieveObject(baseDir, "dem_header.cache", &cached); err == nil && time.Since(t) < demHeaderCacheTTL {
		return cached, nil
	}

	dem, err := parse()
	if err != nil {
		return DEM{}, err
	}

	if err := util.CacheStoreObject(baseDir, "dem_header.cache", dem); err != nil {
		// caching is best-effort: a freshly parsed header is still usable.
		return dem, nil
	}
	return dem, nil
}
