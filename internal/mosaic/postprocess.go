package mosaic

// PostProcessConfig configures the post-processor of spec.md §4.6,
// applied in this fixed order: hole-fill, DEM blur, erosion.
type PostProcessConfig struct {
	HoleFillLength int
	DEMBlurSigma   float64
	ErodeLength    int
}

// PostProcess mutates tile in place.
func PostProcess(tile *OutputTile, cfg PostProcessConfig) {
	if cfg.HoleFillLength > 0 {
		holeFill(tile, cfg.HoleFillLength)
	}
	if cfg.DEMBlurSigma > 0 {
		demBlur(tile, cfg.DEMBlurSigma)
	}
	if cfg.ErodeLength > 0 {
		erode(tile, cfg.ErodeLength)
	}
}

type point struct{ x, y int }

// holeFill identifies 4-connected no-data components whose bounding-box
// maximum dimension is <= maxLen, and fills each by repeatedly averaging,
// inverse-distance weighted, from already-resolved neighbors (the
// component's valid border, then the cells filled from it, working
// inward), per spec.md §4.6.
func holeFill(tile *OutputTile, maxLen int) {
	h, w := tile.Box.Height(), tile.Box.Width()
	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y][x] || !tile.IsNoData[y][x] {
				continue
			}
			component := floodFillNoData(tile, visited, x, y)
			if componentMaxDim(component) <= maxLen {
				fillComponent(tile, component)
			}
		}
	}
}

func floodFillNoData(tile *OutputTile, visited [][]bool, startX, startY int) []point {
	h, w := tile.Box.Height(), tile.Box.Width()
	stack := []point{{startX, startY}}
	visited[startY][startX] = true
	var component []point
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		component = append(component, p)
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := p.x+d[0], p.y+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h || visited[ny][nx] {
				continue
			}
			if !tile.IsNoData[ny][nx] {
				continue
			}
			visited[ny][nx] = true
			stack = append(stack, point{nx, ny})
		}
	}
	return component
}

func componentMaxDim(component []point) int {
	if len(component) == 0 {
		return 0
	}
	minX, minY := component[0].x, component[0].y
	maxX, maxY := minX, minY
	for _, p := range component {
		if p.x < minX {
			minX = p.x
		}
		if p.x > maxX {
			maxX = p.x
		}
		if p.y < minY {
			minY = p.y
		}
		if p.y > maxY {
			maxY = p.y
		}
	}
	width := maxX - minX + 1
	height := maxY - minY + 1
	if width > height {
		return width
	}
	return height
}

func fillComponent(tile *OutputTile, component []point) {
	h, w := tile.Box.Height(), tile.Box.Width()
	remaining := make(map[point]bool, len(component))
	for _, p := range component {
		remaining[p] = true
	}
	resolved := make(map[point]float64, len(component)*2)

	neighborOffsets := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	neighborDist := []float64{1, 1, 1, 1, sqrt2, sqrt2, sqrt2, sqrt2}

	for len(remaining) > 0 {
		progressedAny := false
		newlyResolved := make(map[point]float64)
		for p := range remaining {
			sumW, sumWV := 0.0, 0.0
			for i, d := range neighborOffsets {
				nx, ny := p.x+d[0], p.y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				np := point{nx, ny}
				var val float64
				var ok bool
				if !remaining[np] && !tile.IsNoData[ny][nx] {
					val, ok = tile.Values[ny][nx], true
				} else if rv, isResolved := resolved[np]; isResolved {
					val, ok = rv, true
				}
				if ok {
					weight := 1 / neighborDist[i]
					sumW += weight
					sumWV += weight * val
				}
			}
			if sumW > 0 {
				newlyResolved[p] = sumWV / sumW
			}
		}
		if len(newlyResolved) == 0 {
			break // isolated hole with no reachable border; leave as no-data
		}
		for p, v := range newlyResolved {
			resolved[p] = v
			delete(remaining, p)
			progressedAny = true
		}
		if !progressedAny {
			break
		}
	}

	for p, v := range resolved {
		tile.Set(p.x+tile.Box.MinX, p.y+tile.Box.MinY, v)
	}
}

// demBlur applies the weight builder's no-data-aware Gaussian blur
// directly to the tile's finalized values (spec.md §4.6).
func demBlur(tile *OutputTile, sigma float64) {
	h, w := tile.Box.Height(), tile.Box.Width()
	valid := make([][]bool, h)
	for y := 0; y < h; y++ {
		valid[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			valid[y][x] = !tile.IsNoData[y][x]
		}
	}
	blurred, blurredValid := BlurIgnoringInvalid(tile.Values, valid, sigma)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if blurredValid[y][x] {
				tile.Values[y][x] = blurred[y][x]
			}
		}
	}
}

// erode sets to no-data every pixel within length 4-connected steps of
// the pre-erosion no-data region or the tile's own edge (spec.md §4.6).
// Computed as a single multi-source BFS rather than length literal
// iterations, which is equivalent and avoids O(length) passes.
func erode(tile *OutputTile, length int) {
	h, w := tile.Box.Height(), tile.Box.Width()
	// Pad by 1 on every side so the tile edge itself acts as a seed.
	ph, pw := h+2, w+2
	dist := make([][]int, ph)
	const unset = -1
	for y := range dist {
		dist[y] = make([]int, pw)
		for x := range dist[y] {
			dist[y][x] = unset
		}
	}

	type qitem struct{ x, y int }
	var queue []qitem

	for x := 0; x < pw; x++ {
		dist[0][x] = 0
		dist[ph-1][x] = 0
		queue = append(queue, qitem{x, 0}, qitem{x, ph - 1})
	}
	for y := 0; y < ph; y++ {
		if dist[y][0] == unset {
			dist[y][0] = 0
			queue = append(queue, qitem{0, y})
		}
		if dist[y][pw-1] == unset {
			dist[y][pw-1] = 0
			queue = append(queue, qitem{pw - 1, y})
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if tile.IsNoData[y][x] {
				py, px := y+1, x+1
				if dist[py][px] == unset {
					dist[py][px] = 0
					queue = append(queue, qitem{px, py})
				}
			}
		}
	}

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		d := dist[p.y][p.x]
		for _, n := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := p.x+n[0], p.y+n[1]
			if nx < 0 || nx >= pw || ny < 0 || ny >= ph || dist[ny][nx] != unset {
				continue
			}
			dist[ny][nx] = d + 1
			queue = append(queue, qitem{nx, ny})
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if dist[y+1][x+1] <= length {
				tile.SetNoData(tile.Box.MinX+x, tile.Box.MinY+y)
			}
		}
	}
}

const sqrt2 = 1.4142135623730951
