// SPDX-License-Identifier: MIT
package tui

import (
	"strings"

	"pitchscope/internal/display"
)

const markerRune = "●"

// grid is a frame downsampled to terminal cells. Row 0 is the top (highest
// frequency).
type grid struct {
	width, height int
	levels        []uint8 // Palette index per cell.
	marks         []bool  // Pitch marker per cell.
}

func (g grid) at(row, col int) int { return row*g.width + col }

// rasterize maps f onto a width x height grid covering 0..maxHz. Each cell
// takes the highest intensity of the bins and columns it covers.
func rasterize(f *display.Frame, width, height int, maxHz float64) grid {
	g := grid{width: width, height: height}
	if width < 1 || height < 1 {
		return grid{}
	}
	g.levels = make([]uint8, width*height)
	g.marks = make([]bool, width*height)

	data := f.Image.Data
	ext := f.Image.Extent
	if maxHz <= 0 || maxHz > ext.YMax {
		maxHz = ext.YMax
	}

	if len(data) > 0 && len(data[0]) > 0 && ext.YMax > 0 {
		bins, cols := len(data), len(data[0])
		hzPerBin := ext.YMax / float64(bins-1)
		for row := range height {
			// Frequency band covered by this row, top row highest.
			hiHz := maxHz * float64(height-row) / float64(height)
			loHz := maxHz * float64(height-row-1) / float64(height)
			loBin := min(int(loHz/hzPerBin+0.5), bins-1)
			hiBin := max(min(int(hiHz/hzPerBin+0.5), bins-1), loBin)

			for col := range width {
				loCol := col * cols / width
				hiCol := max((col+1)*cols/width, loCol+1)
				peak := 0.0
				for b := loBin; b <= hiBin; b++ {
					for c := loCol; c < hiCol && c < cols; c++ {
						peak = max(peak, data[b][c])
					}
				}
				g.levels[g.at(row, col)] = level(peak)
			}
		}
	}

	span := ext.XMax - ext.XMin
	for i := range f.PitchX {
		if i >= len(f.PitchY) || span <= 0 {
			break
		}
		x, y := f.PitchX[i], f.PitchY[i]
		if y < 0 || y > maxHz {
			continue
		}
		col := min(int((x-ext.XMin)/span*float64(width)), width-1)
		row := height - 1 - min(int(y/maxHz*float64(height)), height-1)
		if col < 0 {
			continue
		}
		g.marks[g.at(row, col)] = true
	}
	return g
}

func level(v float64) uint8 {
	v = max(0, min(1, v))
	return uint8(v*float64(len(magma)-1) + 0.5)
}

// render draws the grid, merging runs of identical cells into one styled
// string.
func (g grid) render() string {
	if g.width == 0 {
		return ""
	}
	var sb strings.Builder
	for row := range g.height {
		col := 0
		for col < g.width {
			i := g.at(row, col)
			lv, mark := g.levels[i], g.marks[i]
			if mark {
				sb.WriteString(cellStyles[lv][1].Render(markerRune))
				col++
				continue
			}
			run := 1
			for col+run < g.width {
				j := g.at(row, col+run)
				if g.levels[j] != lv || g.marks[j] {
					break
				}
				run++
			}
			sb.WriteString(cellStyles[lv][0].Render(strings.Repeat(" ", run)))
			col += run
		}
		if row < g.height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
