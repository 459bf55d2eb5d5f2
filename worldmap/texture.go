package worldmap

import "github.com/flybywiresim/ndterrain-core/accel"

// Texture wraps the accelerator-side handle of the current world-map
// grid. It exists as its own type (rather than storing accel.Texture
// directly on Cache) so Cache can release a stale handle before
// Upload's replacement is even attempted, matching the "dependent
// resource" ownership rule of §9: the texture is released before any
// reallocation of the grid it depends on.
type Texture struct {
	acc     accel.Accelerator
	current accel.Texture
}

func NewTexture(acc accel.Accelerator) *Texture {
	return &Texture{acc: acc}
}

// Upload replaces the current accelerator texture with one built from
// grid. The old texture, if any, is released only after the new one is
// successfully created.
func (t *Texture) Upload(grid []int16, width, height int) error {
	next, err := t.acc.UploadGrid(grid, width, height)
	if err != nil {
		return err
	}
	if t.current != nil {
		t.current.Release()
	}
	t.current = next
	return nil
}

func (t *Texture) Handle() accel.Texture { return t.current }

func (t *Texture) Release() {
	if t.current != nil {
		t.current.Release()
		t.current = nil
	}
}
