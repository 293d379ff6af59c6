package client

import (
	"reflect"
	"sort"

	"battleships/internal/game"
)

// Shot is the state of one cell of a shot map.
type Shot int

const (
	ShotNone    Shot = iota
	ShotUnknown      // fired, answer not back yet
	ShotHit
	ShotMiss
	ShotBlocked // next to a sunk ship, cannot hold another one
)

// Grid is the local view of both boards: the own fleet being placed or shot at, and the
// map of shots fired at the opponent.
type Grid struct {
	rules     game.Rules
	remaining map[int]int // size -> ships still to place
	cursor    game.Ship   // ship in hand; Size 0 = empty hand
	placed    []game.Ship
	shots     [][]Shot // own shots at the opponent, [y][x]
	sunk      []game.Ship
	incoming  [][]Shot // opponent's misses on the own board
}

func NewGrid(rules game.Rules) *Grid {
	g := &Grid{
		rules:     rules,
		remaining: make(map[int]int, len(rules.Fleet)),
		shots:     newShotMap(rules.Width, rules.Height),
		incoming:  newShotMap(rules.Width, rules.Height),
	}
	for size, count := range rules.Fleet {
		g.remaining[size] = count
	}
	g.cursor = game.Ship{Pos: game.NoPosition, Horizontal: true}
	g.ChangeSize(+1)
	return g
}

func newShotMap(w, h int) [][]Shot {
	m := make([][]Shot, h)
	for y := range m {
		m[y] = make([]Shot, w)
	}
	return m
}

// AllPlaced reports whether the whole fleet is on the board.
func (g *Grid) AllPlaced() bool {
	for _, n := range g.remaining {
		if n > 0 {
			return false
		}
	}
	return true
}

// Ships returns a copy of the placed fleet.
func (g *Grid) Ships() []game.Ship { return game.CloneShips(g.placed) }

// Cursor returns the ship in hand, if any.
func (g *Grid) Cursor() (game.Ship, bool) { return g.cursor, g.cursor.Size > 0 }

func (g *Grid) Rotate() { g.cursor.Horizontal = !g.cursor.Horizontal }

// Click places the ship in hand at pos, or picks up the ship under pos when the hand is
// empty or right is set. It reports whether anything changed.
func (g *Grid) Click(pos game.Position, right bool) bool {
	if g.cursor.Size == 0 || right {
		return g.PickUp(pos)
	}
	return g.Place(pos)
}

// Place puts the ship in hand with its top-left cell at pos.
func (g *Grid) Place(pos game.Position) bool {
	if g.cursor.Size == 0 {
		return false
	}
	ship := game.NewShip(pos, g.cursor.Size, g.cursor.Horizontal)
	if !g.rules.CanPlace(ship, g.placed) {
		return false
	}
	g.placed = append(g.placed, ship)
	g.remaining[ship.Size]--
	g.cycleSize(+1, true)
	return true
}

// PickUp takes the ship under pos back into the hand.
func (g *Grid) PickUp(pos game.Position) bool {
	for i, ship := range g.placed {
		if !ship.Occupies(pos) {
			continue
		}
		g.placed = append(g.placed[:i], g.placed[i+1:]...)
		g.remaining[ship.Size]++
		g.cursor = game.Ship{Pos: game.NoPosition, Size: ship.Size, Horizontal: ship.Horizontal}
		return true
	}
	return false
}

// ChangeSize cycles the ship in hand to the next size that still has ships to place.
func (g *Grid) ChangeSize(increment int) {
	g.cycleSize(increment, false)
}

func (g *Grid) cycleSize(increment int, canBeSame bool) {
	var sizes []int
	for _, size := range g.rules.Sizes() {
		if g.remaining[size] > 0 {
			sizes = append(sizes, size)
		}
	}
	if len(sizes) == 0 {
		g.cursor.Size = 0
		return
	}
	if canBeSame && g.remaining[g.cursor.Size] > 0 {
		return
	}
	idx := sort.SearchInts(sizes, g.cursor.Size)
	switch {
	case increment >= 0 && idx < len(sizes) && sizes[idx] == g.cursor.Size:
		idx = (idx + 1) % len(sizes)
	case increment >= 0:
		idx %= len(sizes)
	default:
		idx = (idx - 1 + len(sizes)) % len(sizes)
	}
	g.cursor.Size = sizes[idx]
}

// Autoplace completes the fleet. An untouched default fleet gets the preset layout,
// anything else is filled greedily. It reports whether the fleet is complete.
func (g *Grid) Autoplace() bool {
	if len(g.placed) == 0 && reflect.DeepEqual(g.rules, game.DefaultRules()) {
		return g.SetLayout(game.DefaultLayout())
	}
	sizes := g.rules.Sizes()
	for i := len(sizes) - 1; i >= 0; i-- {
		size := sizes[i]
		for g.remaining[size] > 0 {
			if !g.placeAnywhere(size) {
				return false
			}
		}
	}
	g.cursor.Size = 0
	return g.AllPlaced()
}

func (g *Grid) placeAnywhere(size int) bool {
	for y := 0; y < g.rules.Height; y++ {
		for x := 0; x < g.rules.Width; x++ {
			for _, horizontal := range []bool{true, false} {
				ship := game.NewShip(game.Pos(x, y), size, horizontal)
				if g.rules.CanPlace(ship, g.placed) {
					g.placed = append(g.placed, ship)
					g.remaining[size]--
					return true
				}
			}
		}
	}
	return false
}

// SetLayout replaces the fleet with a complete, valid layout.
func (g *Grid) SetLayout(ships []game.Ship) bool {
	if g.rules.Validate(ships) != nil {
		return false
	}
	g.placed = game.CloneShips(ships)
	for size := range g.remaining {
		g.remaining[size] = 0
	}
	g.cursor.Size = 0
	return true
}

// Remaining returns how many ships of each size are still to place.
func (g *Grid) Remaining() map[int]int {
	out := make(map[int]int, len(g.remaining))
	for size, n := range g.remaining {
		out[size] = n
	}
	return out
}

// MarkShot records a shot fired at pos. It refuses cells already decided.
func (g *Grid) MarkShot(pos game.Position) bool {
	if !pos.InBoard(g.rules.Width, g.rules.Height) || g.shots[pos.Y()][pos.X()] != ShotNone {
		return false
	}
	g.shots[pos.Y()][pos.X()] = ShotUnknown
	return true
}

// UpdateShot stores the server's answer to a shot. A sunk ship blocks its halo.
func (g *Grid) UpdateShot(pos game.Position, hit bool, sunk *game.Ship) {
	if !pos.InBoard(g.rules.Width, g.rules.Height) {
		return
	}
	if hit {
		g.shots[pos.Y()][pos.X()] = ShotHit
	} else {
		g.shots[pos.Y()][pos.X()] = ShotMiss
	}
	if sunk == nil {
		return
	}
	g.sunk = append(g.sunk, sunk.Clone())
	for _, p := range sunk.Halo(g.rules.Width, g.rules.Height) {
		if g.shots[p.Y()][p.X()] == ShotNone {
			g.shots[p.Y()][p.X()] = ShotBlocked
		}
	}
}

// OpponentShot applies an incoming shot to the own fleet and reports a hit.
func (g *Grid) OpponentShot(pos game.Position) bool {
	if !pos.InBoard(g.rules.Width, g.rules.Height) {
		return false
	}
	for i := range g.placed {
		if seg := g.placed[i].Segment(pos); seg >= 0 {
			g.placed[i].Hitted[seg] = true
			return true
		}
	}
	g.incoming[pos.Y()][pos.X()] = ShotMiss
	return false
}

// Reset clears both boards for a new round.
func (g *Grid) Reset() {
	*g = *NewGrid(g.rules)
}

func copyShotMap(m [][]Shot) [][]Shot {
	out := make([][]Shot, len(m))
	for y := range m {
		out[y] = append([]Shot(nil), m[y]...)
	}
	return out
}
