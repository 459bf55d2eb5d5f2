package render

import (
	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/terrain"
)

const HistPatchSize = 128

// Histogram is the length-296 elevation histogram of a local map.
type Histogram [terrain.HistBinCount]int32

func binFor(e int16) (int, bool) {
	if e == terrain.Invalid || e == terrain.Unknown || e == terrain.Water {
		return 0, false
	}
	if e < terrain.HistMinElev || e > terrain.HistMaxElev {
		return 0, false
	}
	return int(e-terrain.HistMinElev) / terrain.HistBinSize, true
}

// ReduceHistogram runs C5's two-pass reduction: pass 1 tiles the local
// map into HistPatchSize x HistPatchSize patches and histograms each
// independently (in parallel, via acc.Dispatch); pass 2 sums the patch
// histograms columnwise.
func ReduceHistogram(acc accel.Accelerator, m *LocalMap) (Histogram, error) {
	patchCols := (m.Width + HistPatchSize - 1) / HistPatchSize
	patchRows := (m.Height + HistPatchSize - 1) / HistPatchSize
	patchCount := patchCols * patchRows

	patchHist := make([]int32, patchCount*terrain.HistBinCount)

	kernel := func(rowStart, rowEnd int) {
		for py := rowStart; py < rowEnd; py++ {
			for px := 0; px < patchCols; px++ {
				patchIdx := py*patchCols + px
				base := patchIdx * terrain.HistBinCount

				x0, y0 := px*HistPatchSize, py*HistPatchSize
				x1, y1 := min(x0+HistPatchSize, m.Width), min(y0+HistPatchSize, m.Height)

				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						if bin, ok := binFor(m.At(x, y)); ok {
							patchHist[base+bin]++
						}
					}
				}
			}
		}
	}

	if err := acc.Dispatch(patchRows, kernel); err != nil {
		return Histogram{}, err
	}

	var final Histogram
	for p := 0; p < patchCount; p++ {
		base := p * terrain.HistBinCount
		for b := 0; b < terrain.HistBinCount; b++ {
			final[b] += patchHist[base+b]
		}
	}
	return final, nil
}
