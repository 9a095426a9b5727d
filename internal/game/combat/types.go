// Package combat implements the pure combat math of the battle engine: type
// effectiveness, stat stages, the damage formula and the probability tables
// used for critical hits, multi-hit moves and accuracy.
package combat

// Type is an elemental creature or move type.
type Type string

const (
	Normal   Type = "Normal"
	Fire     Type = "Fire"
	Water    Type = "Water"
	Electric Type = "Electric"
	Grass    Type = "Grass"
	Ice      Type = "Ice"
	Fighting Type = "Fighting"
	Poison   Type = "Poison"
	Ground   Type = "Ground"
	Flying   Type = "Flying"
	Psychic  Type = "Psychic"
	Bug      Type = "Bug"
	Rock     Type = "Rock"
	Ghost    Type = "Ghost"
	Dragon   Type = "Dragon"
	Dark     Type = "Dark"
	Steel    Type = "Steel"
	Fairy    Type = "Fairy"
)

// AllTypes lists every known type in chart order.
var AllTypes = []Type{
	Normal, Fire, Water, Electric, Grass, Ice, Fighting, Poison, Ground,
	Flying, Psychic, Bug, Rock, Ghost, Dragon, Dark, Steel, Fairy,
}

// Valid reports whether t is one of AllTypes.
func (t Type) Valid() bool {
	_, ok := chart[t]
	return ok
}

// chart holds the non-neutral entries only; absent pairs are 1.0.
var chart = map[Type]map[Type]float64{
	Normal:   {Rock: 0.5, Ghost: 0, Steel: 0.5},
	Fire:     {Fire: 0.5, Water: 0.5, Grass: 2, Ice: 2, Bug: 2, Rock: 0.5, Dragon: 0.5, Steel: 2},
	Water:    {Fire: 2, Water: 0.5, Grass: 0.5, Ground: 2, Rock: 2, Dragon: 0.5},
	Electric: {Water: 2, Electric: 0.5, Grass: 0.5, Ground: 0, Flying: 2, Dragon: 0.5},
	Grass:    {Fire: 0.5, Water: 2, Grass: 0.5, Poison: 0.5, Ground: 2, Flying: 0.5, Bug: 0.5, Rock: 2, Dragon: 0.5, Steel: 0.5},
	Ice:      {Fire: 0.5, Water: 0.5, Grass: 2, Ice: 0.5, Ground: 2, Flying: 2, Dragon: 2, Steel: 0.5},
	Fighting: {Normal: 2, Ice: 2, Rock: 2, Dark: 2, Steel: 2, Poison: 0.5, Flying: 0.5, Psychic: 0.5, Bug: 0.5, Ghost: 0, Fairy: 0.5},
	Poison:   {Grass: 2, Poison: 0.5, Ground: 0.5, Rock: 0.5, Ghost: 0.5, Steel: 0, Fairy: 2},
	Ground:   {Fire: 2, Electric: 2, Grass: 0.5, Poison: 2, Flying: 0, Bug: 0.5, Rock: 2, Steel: 2},
	Flying:   {Electric: 0.5, Grass: 2, Fighting: 2, Bug: 2, Rock: 0.5, Steel: 0.5},
	Psychic:  {Fighting: 2, Poison: 2, Psychic: 0.5, Steel: 0.5, Dark: 0},
	Bug:      {Fire: 0.5, Grass: 2, Fighting: 0.5, Poison: 0.5, Flying: 0.5, Psychic: 2, Ghost: 0.5, Dark: 2, Steel: 0.5, Fairy: 0.5},
	Rock:     {Fire: 2, Ice: 2, Fighting: 0.5, Ground: 0.5, Flying: 2, Bug: 2, Steel: 0.5},
	Ghost:    {Normal: 0, Psychic: 2, Ghost: 2, Dark: 0.5},
	Dragon:   {Dragon: 2, Steel: 0.5, Fairy: 0},
	Dark:     {Fighting: 0.5, Psychic: 2, Ghost: 2, Dark: 0.5, Fairy: 0.5},
	Steel:    {Fire: 0.5, Water: 0.5, Electric: 0.5, Ice: 2, Rock: 2, Fairy: 2, Steel: 0.5},
	Fairy:    {Fire: 0.5, Fighting: 2, Poison: 0.5, Dragon: 2, Dark: 2, Steel: 0.5},
}

// Effectiveness returns the product of the chart entries of attack against
// each defending type.
//
// Postcondition: 0 means immunity; an empty defenders slice yields 1.
func Effectiveness(attack Type, defenders []Type) float64 {
	mult := 1.0
	row := chart[attack]
	for _, d := range defenders {
		if v, ok := row[d]; ok {
			mult *= v
		}
	}
	return mult
}

// HasType reports whether t appears in types.
func HasType(types []Type, t Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
