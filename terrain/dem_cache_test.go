package terrain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func testDEMHeader() DEM {
	return DEM{SWLat: 40, SWLon: 10, LatStep: 0.5, LonStep: 0.5, NumRows: 120, NumCols: 90, ElevationResolution: 30}
}

func TestParseDEMHeaderFromBackend(t *testing.T) {
	backend := NewLocalDiskBackend(t.TempDir())

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(testDEMHeader()); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := backend.Store(demHeaderObjectPath, &buf); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	dem, err := ParseDEMHeaderFromBackend(backend)
	if err != nil {
		t.Fatalf("ParseDEMHeaderFromBackend failed: %v", err)
	}
	if dem != testDEMHeader() {
		t.Errorf("expected %+v, got %+v", testDEMHeader(), dem)
	}
}

func TestParseDEMHeaderFromBackendMissingObject(t *testing.T) {
	backend := NewLocalDiskBackend(t.TempDir())
	if _, err := ParseDEMHeaderFromBackend(backend); err == nil {
		t.Fatal("expected an error when the header object is absent")
	}
}

func TestLoadDEMHeaderCachesAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	parse := func() (DEM, error) {
		calls++
		return testDEMHeader(), nil
	}

	first, err := LoadDEMHeader(dir, parse)
	if err != nil {
		t.Fatalf("first LoadDEMHeader failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected parse to run once on a cold cache, got %d calls", calls)
	}

	second, err := LoadDEMHeader(dir, parse)
	if err != nil {
		t.Fatalf("second LoadDEMHeader failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the second call to hit the cache, parse ran %d times", calls)
	}
	if first != second {
		t.Errorf("expected the cached header to match the parsed one, got %+v vs %+v", first, second)
	}
}

func TestLoadDEMHeaderPropagatesParseError(t *testing.T) {
	dir := t.TempDir()
	wantErr := errors.New("parse failed")
	_, err := LoadDEMHeader(dir, func() (DEM, error) { return DEM{}, wantErr })
	if err != wantErr {
		t.Errorf("expected the parse error to propagate, got %v", err)
	}
}
