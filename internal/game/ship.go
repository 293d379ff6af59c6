package game

import "fmt"

const (
	BoardWidth  = 10
	BoardHeight = 10
)

// Position is a grid cell encoded on the wire as [x, y].
type Position [2]int

// NoPosition marks "no shot pending".
var NoPosition = Position{-1, -1}

func Pos(x, y int) Position { return Position{x, y} }

func (p Position) X() int { return p[0] }
func (p Position) Y() int { return p[1] }

// InBoard reports whether p lies on a width x height board.
func (p Position) InBoard(width, height int) bool {
	return p[0] >= 0 && p[0] < width && p[1] >= 0 && p[1] < height
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p[0], p[1])
}

// Ship is a placed ship. Hitted has one flag per occupied cell, starting at Pos and
// extending right when Horizontal, down otherwise.
type Ship struct {
	Pos        Position `json:"pos" yaml:"pos,flow"`
	Size       int      `json:"size" yaml:"size"`
	Horizontal bool     `json:"horizontal" yaml:"horizontal"`
	Hitted     []bool   `json:"hitted" yaml:"hitted,omitempty"`
}

// NewShip returns an unhit ship.
func NewShip(pos Position, size int, horizontal bool) Ship {
	return Ship{Pos: pos, Size: size, Horizontal: horizontal, Hitted: make([]bool, size)}
}

// Width and Height are the ship's extent in cells.
func (s Ship) Width() int {
	if s.Horizontal {
		return s.Size
	}
	return 1
}

func (s Ship) Height() int {
	if s.Horizontal {
		return 1
	}
	return s.Size
}

// Cells lists the occupied cells in segment order.
func (s Ship) Cells() []Position {
	cells := make([]Position, 0, s.Size)
	for i := 0; i < s.Size; i++ {
		if s.Horizontal {
			cells = append(cells, Pos(s.Pos.X()+i, s.Pos.Y()))
		} else {
			cells = append(cells, Pos(s.Pos.X(), s.Pos.Y()+i))
		}
	}
	return cells
}

// Segment returns the index of the segment covering p, or -1.
func (s Ship) Segment(p Position) int {
	if s.Horizontal {
		if p.Y() == s.Pos.Y() && p.X() >= s.Pos.X() && p.X() < s.Pos.X()+s.Size {
			return p.X() - s.Pos.X()
		}
		return -1
	}
	if p.X() == s.Pos.X() && p.Y() >= s.Pos.Y() && p.Y() < s.Pos.Y()+s.Size {
		return p.Y() - s.Pos.Y()
	}
	return -1
}

// Occupies reports whether p is one of the ship's cells.
func (s Ship) Occupies(p Position) bool {
	return s.Segment(p) >= 0
}

// Sunk reports whether every segment is hit.
func (s Ship) Sunk() bool {
	if len(s.Hitted) == 0 {
		return false
	}
	for _, h := range s.Hitted {
		if !h {
			return false
		}
	}
	return true
}

// Touches reports whether other overlaps the one-cell halo around s (diagonals count).
func (s Ship) Touches(other Ship) bool {
	left, top := s.Pos.X()-1, s.Pos.Y()-1
	right, bottom := s.Pos.X()+s.Width(), s.Pos.Y()+s.Height()
	oLeft, oTop := other.Pos.X(), other.Pos.Y()
	oRight, oBottom := oLeft+other.Width()-1, oTop+other.Height()-1
	return oLeft <= right && oRight >= left && oTop <= bottom && oBottom >= top
}

// Halo lists the in-board cells adjacent to the ship that are not part of it.
func (s Ship) Halo(width, height int) []Position {
	var halo []Position
	for y := s.Pos.Y() - 1; y <= s.Pos.Y()+s.Height(); y++ {
		for x := s.Pos.X() - 1; x <= s.Pos.X()+s.Width(); x++ {
			p := Pos(x, y)
			if p.InBoard(width, height) && !s.Occupies(p) {
				halo = append(halo, p)
			}
		}
	}
	return halo
}

// Clone deep-copies the hit flags.
func (s Ship) Clone() Ship {
	c := s
	c.Hitted = append([]bool(nil), s.Hitted...)
	return c
}

// CloneShips deep-copies a fleet.
func CloneShips(ships []Ship) []Ship {
	if ships == nil {
		return nil
	}
	out := make([]Ship, len(ships))
	for i, s := range ships {
		out[i] = s.Clone()
	}
	return out
}
