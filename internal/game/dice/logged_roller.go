package dice

import "go.uber.org/zap"

// LoggedStream wraps a State and logs every draw at debug level with the
// battle id and cursor, so a resolution can be audited draw by draw.
type LoggedStream struct {
	state    *State
	battleID string
	logger   *zap.Logger
}

// NewLoggedStream returns a Stream that advances state and logs each draw.
//
// Precondition: state and logger must be non-nil.
func NewLoggedStream(state *State, battleID string, logger *zap.Logger) *LoggedStream {
	return &LoggedStream{state: state, battleID: battleID, logger: logger}
}

// Float draws the next value from the wrapped state.
//
// Postcondition: the wrapped state's cursor advanced by one.
func (l *LoggedStream) Float() float64 {
	cursor := l.state.Cursor
	d := l.state.Next()
	l.logger.Debug("rng draw",
		zap.String("battle_id", l.battleID),
		zap.Uint32("cursor", cursor),
		zap.Uint32("u32", d.U32),
		zap.Float64("float", d.Float),
	)
	return d.Float
}
