package battle

import (
	"encoding/json"
	"fmt"
)

// Protection is either inactive, carrying the chain of consecutive successful
// uses into the next attempt, or active for the rest of the turn.
//
// Invariant: an active Protection always has Chain() >= 1.
type Protection struct {
	active bool
	chain  int
}

// ProtectInactive returns an inactive Protection that remembers chain.
func ProtectInactive(chain int) Protection {
	if chain < 0 {
		chain = 0
	}
	return Protection{chain: chain}
}

// ProtectActive returns a raised Protection with the given chain.
func ProtectActive(chain int) Protection {
	if chain < 1 {
		chain = 1
	}
	return Protection{active: true, chain: chain}
}

// Active reports whether the shield is up this turn.
func (p Protection) Active() bool { return p.active }

// Chain returns the number of consecutive successful uses.
func (p Protection) Chain() int { return p.chain }

// endOfTurn drops an active shield but keeps its chain; a chain that was not
// extended this turn resets to zero.
func (p Protection) endOfTurn() Protection {
	if p.active {
		return ProtectInactive(p.chain)
	}
	return ProtectInactive(0)
}

type protectionJSON struct {
	Active bool `json:"active"`
	Chain  int  `json:"chain"`
}

// MarshalJSON implements json.Marshaler.
func (p Protection) MarshalJSON() ([]byte, error) {
	return json.Marshal(protectionJSON{Active: p.active, Chain: p.chain})
}

// UnmarshalJSON implements json.Unmarshaler, normalising invalid combinations.
func (p *Protection) UnmarshalJSON(data []byte) error {
	var raw protectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Active {
		*p = ProtectActive(raw.Chain)
	} else {
		*p = ProtectInactive(raw.Chain)
	}
	return nil
}

// Recharge tracks the turn after a recharge move.
type Recharge int

const (
	// RechargeNone means the combatant may act.
	RechargeNone Recharge = iota
	// RechargePending is set the turn a recharge move is used.
	RechargePending
	// RechargeDue blocks the combatant's action this turn.
	RechargeDue
)

// String returns a stable name for logs and views.
func (r Recharge) String() string {
	switch r {
	case RechargePending:
		return "pending"
	case RechargeDue:
		return "due"
	}
	return "none"
}

// MarshalJSON implements json.Marshaler.
func (r Recharge) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

// UnmarshalJSON implements json.Unmarshaler.
func (r *Recharge) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "", "none":
		*r = RechargeNone
	case "pending":
		*r = RechargePending
	case "due":
		*r = RechargeDue
	default:
		return fmt.Errorf("unknown recharge state %q", s)
	}
	return nil
}

// MoveLock pins a single move for a number of turns (encore, disable).
type MoveLock struct {
	Move  string `json:"move"`
	Turns int    `json:"turns"`
}

// Active reports whether the lock is in force.
func (m MoveLock) Active() bool { return m.Move != "" && m.Turns > 0 }

// tick decrements the lock and reports whether it just expired.
func (m *MoveLock) tick() bool {
	if !m.Active() {
		return false
	}
	m.Turns--
	if m.Turns == 0 {
		m.Move = ""
		return true
	}
	return false
}

// Volatiles is the per-active state cleared whenever the combatant leaves
// the field.
type Volatiles struct {
	Substitute int        `json:"substitute"`
	Protection Protection `json:"protection"`
	Recharge   Recharge   `json:"recharge"`
	Taunt      int        `json:"taunt"`
	Encore     MoveLock   `json:"encore"`
	Disable    MoveLock   `json:"disable"`
	// Perish counts down to a forced faint; 0 means no countdown.
	Perish int `json:"perish"`
	// SpeedStage is an extra speed stage applied on top of boosts, e.g. by
	// a web on entry.
	SpeedStage int `json:"speedStage"`
}
