package grid

// Bounds is the axis-aligned allowed region for placement. A cell is inside
// when 0 <= x < W, 0 <= y < H and 0 <= z < D.
type Bounds struct {
	W int `json:"w"`
	H int `json:"h"`
	D int `json:"d"`
}

func (b Bounds) Contains(c Cell) bool {
	return c.X >= 0 && c.X < b.W &&
		c.Y >= 0 && c.Y < b.H &&
		c.Z >= 0 && c.Z < b.D
}

func (b Bounds) wellFormed() bool {
	return b.W > 0 && b.H > 0 && b.D > 0
}

// Rect is the 2D search bound for room detection on one z-level: x in
// [0, W), y in [0, H).
type Rect struct {
	W int `json:"w"`
	H int `json:"h"`
}

func (r Rect) wellFormed() bool {
	return r.W > 0 && r.H > 0
}

// box2 is an inclusive 2D cell range, used internally by room detection for
// both explicit and derived search areas.
type box2 struct {
	minX, minY int
	maxX, maxY int
}

func (b box2) contains(x, y int) bool {
	return x >= b.minX && x <= b.maxX && y >= b.minY && y <= b.maxY
}

// onEdge reports whether (x, y) lies on the outer rim of the box. Regions
// reaching the rim are "outside" when boundary exclusion is requested.
func (b box2) onEdge(x, y int) bool {
	return x == b.minX || x == b.maxX || y == b.minY || y == b.maxY
}

func (b box2) expand(n int) box2 {
	return box2{
		minX: b.minX - n,
		minY: b.minY - n,
		maxX: b.maxX + n,
		maxY: b.maxY + n,
	}
}
