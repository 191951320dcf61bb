package fruit

// Tier is a fruit's rank in the evolution chain, 0 (cherry) through 9 (watermelon).
type Tier int

const (
	Cherry Tier = iota
	Strawberry
	Grape
	Dekopon
	Orange
	Apple
	Pear
	Peach
	Melon
	Watermelon

	// TierCount is the number of defined tiers.
	TierCount = 10

	// DroppableCount is the size of the droppable prefix: only tiers below
	// this rank can enter the board via a drop. Higher tiers are reachable
	// only by merging.
	DroppableCount = 5
)

type tierInfo struct {
	name   string
	radius float64
	points int
}

// Radii and point values must strictly increase by rank: score and collision
// geometry both derive from this table, and the client-side predictor carries
// an identical copy.
var tiers = [TierCount]tierInfo{
	{"cherry", 0.040, 1},
	{"strawberry", 0.055, 3},
	{"grape", 0.070, 6},
	{"dekopon", 0.085, 10},
	{"orange", 0.105, 15},
	{"apple", 0.125, 21},
	{"pear", 0.150, 28},
	{"peach", 0.175, 36},
	{"melon", 0.200, 45},
	{"watermelon", 0.230, 55},
}

// Valid reports whether t is a defined tier.
func Valid(t Tier) bool {
	return t >= 0 && t < TierCount
}

// Name returns the tier's display name.
func Name(t Tier) string {
	return tiers[t].name
}

// Radius returns the collision radius for the tier, in board units.
func Radius(t Tier) float64 {
	return tiers[t].radius
}

// Points returns the base point value for the tier.
func Points(t Tier) int {
	return tiers[t].points
}

// Next returns the tier produced by merging two fruits of tier t.
// ok is false for the terminal tier, which cannot merge further.
func Next(t Tier) (next Tier, ok bool) {
	if t >= TierCount-1 {
		return t, false
	}
	return t + 1, true
}

// Terminal reports whether t is the last tier in the chain.
func Terminal(t Tier) bool {
	return t == TierCount-1
}
