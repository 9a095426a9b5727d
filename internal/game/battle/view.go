package battle

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/cory-johannsen/duel/internal/game/combat"
)

// HashPrefix tags content hashes with their algorithm.
const HashPrefix = "blake2b:"

// ActiveView is what both players can see of a side's active combatant.
type ActiveView struct {
	Species string        `json:"species"`
	Level   int           `json:"level"`
	Types   []combat.Type `json:"types"`
	HP      int           `json:"hp"`
	MaxHP   int           `json:"maxHp"`
	Status  combat.Status `json:"status"`
	Fainted bool          `json:"fainted"`
}

// PublicSide is the public half of a side.
type PublicSide struct {
	Player      string        `json:"player"`
	Active      ActiveView    `json:"active"`
	Remaining   int           `json:"remaining"`
	Boosts      combat.Stages `json:"boosts"`
	Substitute  bool          `json:"substitute"`
	Protected   bool          `json:"protected"`
	Recharging  bool          `json:"recharging"`
	Taunted     bool          `json:"taunted"`
	Perish      int           `json:"perish"`
	SpeedStage  int           `json:"speedStage"`
	NeedReplace bool          `json:"needsReplace"`
}

// PublicView is the state every observer may see.
type PublicView struct {
	ID         string        `json:"id"`
	Format     string        `json:"format"`
	Phase      Phase         `json:"phase"`
	Turn       int           `json:"turn"`
	Version    int           `json:"version"`
	DeadlineAt time.Time     `json:"deadlineAt"`
	Winner     string        `json:"winner"`
	EndReason  EndReason     `json:"endReason"`
	Sides      [2]PublicSide `json:"sides"`
	Field      Field         `json:"field"`
}

// PrivateMember is the redacted owner's view of one team member.
type PrivateMember struct {
	Species string     `json:"species"`
	HP      int        `json:"hp"`
	Fainted bool       `json:"fainted"`
	Moves   []MoveSlot `json:"moves"`
}

// PrivateSide carries only team species, move ids, PP and lock flags.
type PrivateSide struct {
	Team       []PrivateMember `json:"team"`
	ChoiceLock string          `json:"choiceLock"`
	Encore     string          `json:"encore"`
	Disabled   string          `json:"disabled"`
}

// Public builds the public view of st.
func Public(st *State) PublicView {
	v := PublicView{
		ID:         st.ID,
		Format:     st.Meta.Format,
		Phase:      st.Meta.Phase,
		Turn:       st.Meta.Turn,
		Version:    st.Meta.Version,
		DeadlineAt: st.Meta.DeadlineAt.UTC(),
		Winner:     st.Meta.Winner,
		EndReason:  st.Meta.EndReason,
		Field:      st.Field,
	}
	for i := range st.Sides {
		s := &st.Sides[i]
		a := s.Active()
		remaining := 0
		for _, m := range s.Team {
			if m.Alive() {
				remaining++
			}
		}
		v.Sides[i] = PublicSide{
			Player: s.Player,
			Active: ActiveView{
				Species: a.Species,
				Level:   a.Level,
				Types:   a.Types,
				HP:      a.HP,
				MaxHP:   a.MaxHP(),
				Status:  a.Status,
				Fainted: a.Fainted,
			},
			Remaining:   remaining,
			Boosts:      s.Boosts,
			Substitute:  s.Volatiles.Substitute > 0,
			Protected:   s.Volatiles.Protection.Active(),
			Recharging:  s.Volatiles.Recharge != RechargeNone,
			Taunted:     s.Volatiles.Taunt > 0,
			Perish:      s.Volatiles.Perish,
			SpeedStage:  s.Volatiles.SpeedStage,
			NeedReplace: st.Meta.NeedsReplace[i],
		}
	}
	return v
}

// Private builds the redacted private view of side i.
func Private(st *State, i SideIndex) PrivateSide {
	s := st.Side(i)
	out := PrivateSide{
		Team:       make([]PrivateMember, len(s.Team)),
		ChoiceLock: s.ChoiceLock,
		Encore:     s.Volatiles.Encore.Move,
		Disabled:   s.Volatiles.Disable.Move,
	}
	for j, m := range s.Team {
		out.Team[j] = PrivateMember{
			Species: m.Species,
			HP:      m.HP,
			Fainted: m.Fainted,
			Moves:   append([]MoveSlot(nil), m.Moves...),
		}
	}
	return out
}

// Canonical returns the key-sorted JSON encoding of v.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Hash digests the public view and both private views of st.
//
// Postcondition: equal states always yield equal hashes.
func Hash(st *State) (string, error) {
	doc := struct {
		Public  PublicView     `json:"public"`
		Private [2]PrivateSide `json:"private"`
	}{
		Public:  Public(st),
		Private: [2]PrivateSide{Private(st, SideA), Private(st, SideB)},
	}
	b, err := Canonical(doc)
	if err != nil {
		return "", fmt.Errorf("canonicalizing state: %w", err)
	}
	sum := blake2b.Sum256(b)
	return HashPrefix + hex.EncodeToString(sum[:]), nil
}
