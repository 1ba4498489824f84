package state

import (
	"context"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

// Load rebuilds the open positions from the store, replacing whatever the
// manager held. On error the previous content is kept.
func (m *PositionManager) Load(ctx context.Context) error {
	open, err := m.store.OpenPositions(ctx)
	if err != nil {
		return errors.Wrap(err, "load open positions")
	}

	positions := make(map[string]model.Position, len(open))
	for _, p := range open {
		if existing, ok := positions[p.Instrument]; ok {
			return errors.Wrapf(exception.ErrDuplicatePosition, "load %s: %s and %s are both open", p.Instrument, existing.ID, p.ID)
		}
		positions[p.Instrument] = p
	}

	m.positions = positions
	return nil
}
