package world

// Bounds is the playable rectangle on the horizontal plane. Positions are
// clamped into it before they are stored or transmitted; Y passes through
// untouched.
type Bounds struct {
	MinX float64 `yaml:"min_x" json:"min_x"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
	MinZ float64 `yaml:"min_z" json:"min_z"`
	MaxZ float64 `yaml:"max_z" json:"max_z"`
}

// Clamp returns p with its horizontal components forced inside b.
func (b Bounds) Clamp(p Vec3) Vec3 {
	if p.X < b.MinX {
		p.X = b.MinX
	} else if p.X > b.MaxX {
		p.X = b.MaxX
	}
	if p.Z < b.MinZ {
		p.Z = b.MinZ
	} else if p.Z > b.MaxZ {
		p.Z = b.MaxZ
	}
	return p
}

// Contains reports whether p lies inside b on the horizontal plane.
func (b Bounds) Contains(p Vec3) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// Valid reports whether the rectangle is non-degenerate.
func (b Bounds) Valid() bool {
	return b.MaxX > b.MinX && b.MaxZ > b.MinZ
}
