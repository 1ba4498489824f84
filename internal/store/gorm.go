package store

import (
	"context"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

var _ Store = (*Gorm)(nil)

// Gorm is the SQL backed Store. Monetary values are stored as decimal
// strings and timestamps as fixed width UTC strings.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Migrate creates or updates the tables.
func (s *Gorm) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&positionRow{},
		&tradeRow{},
		&accountRow{},
		&equitySnapshotRow{},
	); err != nil {
		return persistence(err, "migrate")
	}
	return nil
}

func (s *Gorm) InsertPosition(ctx context.Context, p model.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := toPositionRow(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistence(err, "insert position "+p.ID)
	}
	return nil
}

func (s *Gorm) UpdatePosition(ctx context.Context, p model.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := toPositionRow(p)
	result := s.db.WithContext(ctx).Model(&positionRow{ID: row.ID}).Select("*").Updates(&row)
	if result.Error != nil {
		return persistence(result.Error, "update position "+p.ID)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(exception.ErrNotFound, "update position %s", p.ID)
	}
	return nil
}

func (s *Gorm) Position(ctx context.Context, id string) (model.Position, error) {
	var row positionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Position{}, errors.Wrapf(exception.ErrNotFound, "position %s", id)
	}
	if err != nil {
		return model.Position{}, persistence(err, "query position "+id)
	}
	return row.toModel()
}

func (s *Gorm) OpenPositions(ctx context.Context) ([]model.Position, error) {
	var rows []positionRow
	err := s.db.WithContext(ctx).
		Where("status = ?", "open").
		Order("entry_time ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistence(err, "query open positions")
	}

	positions := make([]model.Position, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func (s *Gorm) InsertTrade(ctx context.Context, t model.Trade) error {
	row := toTradeRow(t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistence(err, "insert trade "+t.PositionID)
	}
	return nil
}

func (s *Gorm) Trades(ctx context.Context, q TradeQuery) ([]model.Trade, error) {
	tx := s.db.WithContext(ctx).Model(&tradeRow{})
	if q.Instrument != "" {
		tx = tx.Where("instrument = ?", q.Instrument)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("exit_time >= ?", model.FormatTime(q.Since))
	}

	var rows []tradeRow
	if q.Limit > 0 {
		// newest first for the limit, then back to oldest first
		if err := tx.Order("exit_time DESC").Order("position_id DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
			return nil, persistence(err, "query trades")
		}
		slices.Reverse(rows)
	} else {
		if err := tx.Order("exit_time ASC").Order("position_id ASC").Find(&rows).Error; err != nil {
			return nil, persistence(err, "query trades")
		}
	}

	trades := make([]model.Trade, 0, len(rows))
	for _, row := range rows {
		t, err := row.toModel()
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func (s *Gorm) Account(ctx context.Context) (model.AccountState, bool, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("id = ?", accountRowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AccountState{}, false, nil
	}
	if err != nil {
		return model.AccountState{}, false, persistence(err, "query account")
	}

	var a model.AccountState
	if a.Cash, err = model.ParseDecimal(row.Cash); err != nil {
		return model.AccountState{}, false, err
	}
	if a.StartingBalance, err = model.ParseDecimal(row.StartingBalance); err != nil {
		return model.AccountState{}, false, err
	}
	if a.LastReset, err = model.ParseTime(row.LastReset); err != nil {
		return model.AccountState{}, false, err
	}
	if a.UpdatedAt, err = model.ParseTime(row.UpdatedAt); err != nil {
		return model.AccountState{}, false, err
	}
	return a, true, nil
}

func (s *Gorm) PutAccount(ctx context.Context, a model.AccountState) error {
	if err := a.Validate(); err != nil {
		return err
	}
	row := accountRow{
		ID:              accountRowID,
		Cash:            a.Cash.String(),
		StartingBalance: a.StartingBalance.String(),
		LastReset:       model.FormatTime(a.LastReset),
		UpdatedAt:       model.FormatTime(a.UpdatedAt),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return persistence(err, "put account")
	}
	return nil
}

func (s *Gorm) InsertEquitySnapshot(ctx context.Context, snap model.EquitySnapshot) error {
	row := equitySnapshotRow{
		Time:          model.FormatTime(snap.Time),
		Cash:          snap.Cash.String(),
		Equity:        snap.Equity.String(),
		UnrealizedPnL: snap.UnrealizedPnL.String(),
		OpenPositions: snap.OpenPositions,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistence(err, "insert equity snapshot")
	}
	return nil
}

func (s *Gorm) Transaction(ctx context.Context, fn func(tx Store) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&Gorm{db: tx})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	return persistence(err, "commit")
}

func persistence(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), exception.ErrPersistence)
}
