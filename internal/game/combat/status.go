package combat

// Status is a major status condition. A combatant holds at most one.
type Status string

const (
	StatusNone Status = ""
	Paralysis  Status = "PAR"
	Poisoned   Status = "PSN"
	Burned     Status = "BRN"
	Asleep     Status = "SLP"
	Frozen     Status = "FRZ"
)

// Valid reports whether s is a known status, including StatusNone.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, Paralysis, Poisoned, Burned, Asleep, Frozen:
		return true
	}
	return false
}

// Verb returns the log phrase used when s is inflicted.
func (s Status) Verb() string {
	switch s {
	case Paralysis:
		return "paralyzed"
	case Poisoned:
		return "poisoned"
	case Burned:
		return "burned"
	case Asleep:
		return "fell asleep"
	case Frozen:
		return "frozen solid"
	}
	return "unaffected"
}
