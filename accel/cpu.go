package accel

import (
	"runtime"
	"sync"
)

// CPUPool is the default Accelerator: a fixed-size worker pool that
// partitions each Dispatch call's row range evenly across at most its
// configured number of goroutines. It never returns ErrFallbackToCPU
// itself — it is the fallback.
type CPUPool struct {
	workers int
}

// NewCPUPool returns a CPUPool with the given number of workers. Pass 0
// to use runtime.NumCPU().
func NewCPUPool(workers int) *CPUPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUPool{workers: workers}
}

func (p *CPUPool) Name() string { return "cpu-pool" }

func (p *CPUPool) Init() error { return nil }

func (p *CPUPool) Close() {}

// cpuTexture just holds the grid slice; the CPU backend has no
// separate device memory to release.
type cpuTexture struct {
	grid          []int16
	width, height int
}

func (t *cpuTexture) Width() int  { return t.width }
func (t *cpuTexture) Height() int { return t.height }

func (t *cpuTexture) Sample(x, y int) int16 { return t.grid[y*t.width+x] }

func (t *cpuTexture) Release() {}

func (p *CPUPool) UploadGrid(grid []int16, width, height int) (Texture, error) {
	return &cpuTexture{grid: grid, width: width, height: height}, nil
}

func (p *CPUPool) Dispatch(rows int, kernel Kernel) error {
	if rows <= 0 {
		return nil
	}

	workers := p.workers
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		kernel(0, rows)
		return nil
	}

	chunk := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < rows; start += chunk {
		end := start + chunk
		if end > rows {
			end = rows
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			kernel(s, e)
		}(start, end)
	}
	wg.Wait()
	return nil
}
