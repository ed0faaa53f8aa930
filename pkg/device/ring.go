package device

// Rings yields the in-bounds tiles at exact Manhattan distance r from
// center, on the same layer, in a fixed order: increasing x offset, and
// for each x offset the lower y first. Ring 0 is the center itself.
//
// The fixed order is what makes every expanding search in the flow
// deterministic; callers must not reorder the result.
func (g *Grid) Ring(center TileLoc, r int) []TileLoc {
	if r == 0 {
		if g.InBounds(center) {
			return []TileLoc{center}
		}
		return nil
	}
	var ring []TileLoc
	for dx := -r; dx <= r; dx++ {
		dy := r - abs(dx)
		lo := TileLoc{X: center.X + dx, Y: center.Y - dy, Layer: center.Layer}
		if g.InBounds(lo) {
			ring = append(ring, lo)
		}
		if dy != 0 {
			hi := TileLoc{X: center.X + dx, Y: center.Y + dy, Layer: center.Layer}
			if g.InBounds(hi) {
				ring = append(ring, hi)
			}
		}
	}
	return ring
}

// ExpandingSearch visits tiles ring by ring outward from center, calling
// visit for each tile, until visit reports found or maxRadius is passed.
// Each radius covers every device layer, the center's layer first and
// the rest in increasing order, so a search can relocate a block across
// layers before giving up. A negative maxRadius searches until every
// grid tile within the largest possible ring has been seen. It returns
// whether visit ever reported found.
//
// This is the loop-termination helper used instead of non-local jumps:
// each enclosing search simply checks the returned flag.
func (g *Grid) ExpandingSearch(center TileLoc, maxRadius int, visit func(TileLoc) bool) bool {
	if maxRadius < 0 {
		// Largest useful radius reaches every corner of the grid.
		maxRadius = g.width + g.height
	}
	layers := g.layerOrder(center.Layer)
	for r := 0; r <= maxRadius; r++ {
		for _, layer := range layers {
			at := center
			at.Layer = layer
			for _, loc := range g.Ring(at, r) {
				if visit(loc) {
					return true
				}
			}
		}
	}
	return false
}

// layerOrder lists every layer starting from the preferred one, then
// the remaining layers in increasing order.
func (g *Grid) layerOrder(preferred int) []int {
	order := make([]int, 0, g.layers)
	if preferred >= 0 && preferred < g.layers {
		order = append(order, preferred)
	}
	for l := 0; l < g.layers; l++ {
		if l != preferred {
			order = append(order, l)
		}
	}
	return order
}
