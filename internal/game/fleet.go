package game

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrInvalidLayout = errors.New("invalid ship layout")

// Rules describe the board and the fleet every player must place.
type Rules struct {
	Width  int         `yaml:"width"`
	Height int         `yaml:"height"`
	Fleet  map[int]int `yaml:"fleet"` // ship size -> count
}

// DefaultRules is the classic 10x10 board with nine ships.
func DefaultRules() Rules {
	return Rules{
		Width:  BoardWidth,
		Height: BoardHeight,
		Fleet:  map[int]int{1: 2, 2: 4, 3: 2, 4: 1},
	}
}

// ShipCount is the total number of ships in the fleet.
func (r Rules) ShipCount() int {
	n := 0
	for _, c := range r.Fleet {
		n += c
	}
	return n
}

// Sizes returns the distinct ship sizes in ascending order.
func (r Rules) Sizes() []int {
	sizes := make([]int, 0, len(r.Fleet))
	for s := range r.Fleet {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)
	return sizes
}

// CanPlace reports whether ship fits on the board without touching any of placed.
func (r Rules) CanPlace(ship Ship, placed []Ship) bool {
	if ship.Size <= 0 {
		return false
	}
	if !ship.Pos.InBoard(r.Width, r.Height) {
		return false
	}
	end := Pos(ship.Pos.X()+ship.Width()-1, ship.Pos.Y()+ship.Height()-1)
	if !end.InBoard(r.Width, r.Height) {
		return false
	}
	for _, other := range placed {
		if other.Touches(ship) {
			return false
		}
	}
	return true
}

// Validate checks a submitted layout: fleet composition, board bounds, no touching
// ships and untouched hit flags.
func (r Rules) Validate(ships []Ship) error {
	counts := make(map[int]int, len(r.Fleet))
	for i, ship := range ships {
		if len(ship.Hitted) != ship.Size {
			return fmt.Errorf("%w: ship %d has %d hit flags for size %d", ErrInvalidLayout, i, len(ship.Hitted), ship.Size)
		}
		for _, h := range ship.Hitted {
			if h {
				return fmt.Errorf("%w: ship %d submitted already hit", ErrInvalidLayout, i)
			}
		}
		if !r.CanPlace(ship, ships[:i]) {
			return fmt.Errorf("%w: ship %d at %s does not fit", ErrInvalidLayout, i, ship.Pos)
		}
		counts[ship.Size]++
	}
	for size, want := range r.Fleet {
		if counts[size] != want {
			return fmt.Errorf("%w: want %d ships of size %d, got %d", ErrInvalidLayout, want, size, counts[size])
		}
	}
	for size := range counts {
		if _, ok := r.Fleet[size]; !ok {
			return fmt.Errorf("%w: size %d is not part of the fleet", ErrInvalidLayout, size)
		}
	}
	return nil
}

// DefaultLayout is a valid placement of the default fleet, used for autoplacing.
func DefaultLayout() []Ship {
	return []Ship{
		NewShip(Pos(3, 0), 2, true),
		NewShip(Pos(4, 3), 2, false),
		NewShip(Pos(5, 7), 3, true),
		NewShip(Pos(1, 5), 4, false),
		NewShip(Pos(8, 4), 1, true),
		NewShip(Pos(6, 1), 1, false),
		NewShip(Pos(5, 9), 2, true),
		NewShip(Pos(1, 1), 2, false),
		NewShip(Pos(9, 0), 3, false),
	}
}

// FleetFile is the YAML document holding custom rules and named preset layouts.
type FleetFile struct {
	Rules   *Rules            `yaml:"rules"`
	Layouts map[string][]Ship `yaml:"layouts"`
}

// LoadFleetFile reads rules and preset layouts. Missing rules fall back to the
// defaults; every layout is validated against the resulting rules.
func LoadFleetFile(path string) (*FleetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}
	return ParseFleetFile(data)
}

// ParseFleetFile is LoadFleetFile without the file system.
func ParseFleetFile(data []byte) (*FleetFile, error) {
	var ff FleetFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse fleet file: %w", err)
	}
	if ff.Rules == nil {
		rules := DefaultRules()
		ff.Rules = &rules
	}
	if ff.Rules.Width <= 0 || ff.Rules.Height <= 0 || len(ff.Rules.Fleet) == 0 {
		return nil, fmt.Errorf("parse fleet file: rules need a positive board size and a fleet")
	}
	for name, ships := range ff.Layouts {
		for i := range ships {
			if ships[i].Hitted == nil {
				ships[i].Hitted = make([]bool, ships[i].Size)
			}
		}
		if err := ff.Rules.Validate(ships); err != nil {
			return nil, fmt.Errorf("layout %q: %w", name, err)
		}
	}
	return &ff, nil
}

// Layout returns a copy of the named preset.
func (ff *FleetFile) Layout(name string) ([]Ship, bool) {
	ships, ok := ff.Layouts[name]
	if !ok {
		return nil, false
	}
	return CloneShips(ships), true
}
