package store

import (
	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/pkg/exception"
)

const accountRowID = 1

type positionRow struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	Instrument      string `gorm:"type:varchar(32);not null;index"`
	Direction       string `gorm:"type:varchar(8);not null"`
	EntryPrice      string `gorm:"type:text;not null"`
	Quantity        string `gorm:"type:text;not null"`
	EntryTime       string `gorm:"type:varchar(40);not null"`
	EntryCommission string `gorm:"type:text;not null"`
	Strategy        string `gorm:"type:varchar(64);not null"`
	Status          string `gorm:"type:varchar(8);not null;index"`
	ExitPrice       string `gorm:"type:text"`
	ExitTime        string `gorm:"type:varchar(40)"`
	ExitCommission  string `gorm:"type:text"`
	ExitReason      string `gorm:"type:text"`
}

func (positionRow) TableName() string { return "positions" }

type tradeRow struct {
	PositionID  string `gorm:"primaryKey;type:varchar(64)"`
	Instrument  string `gorm:"type:varchar(32);not null;index"`
	Direction   string `gorm:"type:varchar(8);not null"`
	EntryPrice  string `gorm:"type:text;not null"`
	ExitPrice   string `gorm:"type:text;not null"`
	Quantity    string `gorm:"type:text;not null"`
	EntryTime   string `gorm:"type:varchar(40);not null"`
	ExitTime    string `gorm:"type:varchar(40);not null;index"`
	PnL         string `gorm:"column:pnl;type:text;not null"`
	PnLFraction string `gorm:"column:pnl_fraction;type:text;not null"`
	Commission  string `gorm:"type:text;not null"`
	NetPnL      string `gorm:"column:net_pnl;type:text;not null"`
	Strategy    string `gorm:"type:varchar(64);not null"`
	ExitReason  string `gorm:"type:text"`
}

func (tradeRow) TableName() string { return "trades" }

type accountRow struct {
	ID              uint   `gorm:"primaryKey;autoIncrement:false"`
	Cash            string `gorm:"type:text;not null"`
	StartingBalance string `gorm:"type:text;not null"`
	LastReset       string `gorm:"type:varchar(40);not null"`
	UpdatedAt       string `gorm:"type:varchar(40);not null;autoUpdateTime:false"`
}

func (accountRow) TableName() string { return "account_state" }

type equitySnapshotRow struct {
	ID            uint   `gorm:"primaryKey"`
	Time          string `gorm:"type:varchar(40);not null;index"`
	Cash          string `gorm:"type:text;not null"`
	Equity        string `gorm:"type:text;not null"`
	UnrealizedPnL string `gorm:"column:unrealized_pnl;type:text;not null"`
	OpenPositions int    `gorm:"not null"`
}

func (equitySnapshotRow) TableName() string { return "equity_snapshots" }

func toPositionRow(p model.Position) positionRow {
	row := positionRow{
		ID:              p.ID,
		Instrument:      p.Instrument,
		Direction:       p.Direction.String(),
		EntryPrice:      p.EntryPrice.String(),
		Quantity:        p.Quantity.String(),
		EntryTime:       model.FormatTime(p.EntryTime),
		EntryCommission: p.EntryCommission.String(),
		Strategy:        p.Strategy,
		Status:          p.Status.String(),
		ExitTime:        model.FormatTime(p.ExitTime),
		ExitReason:      p.ExitReason,
	}
	if !p.IsOpen() {
		row.ExitPrice = p.ExitPrice.String()
		row.ExitCommission = p.ExitCommission.String()
	}
	return row
}

func (row positionRow) toModel() (model.Position, error) {
	var (
		p   model.Position
		err error
		ok  bool
	)
	p.ID = row.ID
	p.Instrument = row.Instrument
	p.Strategy = row.Strategy
	p.ExitReason = row.ExitReason

	if p.Direction, ok = enum.ParseDirection(row.Direction); !ok {
		return model.Position{}, errors.Wrapf(exception.ErrInvalidState, "position %s direction %q", row.ID, row.Direction)
	}
	if p.Status, ok = enum.ParsePositionStatus(row.Status); !ok {
		return model.Position{}, errors.Wrapf(exception.ErrInvalidState, "position %s status %q", row.ID, row.Status)
	}

	if p.EntryPrice, err = model.ParseDecimal(row.EntryPrice); err != nil {
		return model.Position{}, err
	}
	if p.Quantity, err = model.ParseDecimal(row.Quantity); err != nil {
		return model.Position{}, err
	}
	if p.EntryCommission, err = model.ParseDecimal(row.EntryCommission); err != nil {
		return model.Position{}, err
	}
	if p.EntryTime, err = model.ParseTime(row.EntryTime); err != nil {
		return model.Position{}, err
	}
	if p.ExitTime, err = model.ParseTime(row.ExitTime); err != nil {
		return model.Position{}, err
	}
	if row.ExitPrice != "" {
		if p.ExitPrice, err = model.ParseDecimal(row.ExitPrice); err != nil {
			return model.Position{}, err
		}
	}
	if row.ExitCommission != "" {
		if p.ExitCommission, err = model.ParseDecimal(row.ExitCommission); err != nil {
			return model.Position{}, err
		}
	}

	if err := p.Validate(); err != nil {
		return model.Position{}, errors.Mark(err, exception.ErrInvalidState)
	}
	return p, nil
}

func toTradeRow(t model.Trade) tradeRow {
	return tradeRow{
		PositionID:  t.PositionID,
		Instrument:  t.Instrument,
		Direction:   t.Direction.String(),
		EntryPrice:  t.EntryPrice.String(),
		ExitPrice:   t.ExitPrice.String(),
		Quantity:    t.Quantity.String(),
		EntryTime:   model.FormatTime(t.EntryTime),
		ExitTime:    model.FormatTime(t.ExitTime),
		PnL:         t.PnL.String(),
		PnLFraction: t.PnLFraction.String(),
		Commission:  t.Commission.String(),
		NetPnL:      t.NetPnL.String(),
		Strategy:    t.Strategy,
		ExitReason:  t.ExitReason,
	}
}

func (row tradeRow) toModel() (model.Trade, error) {
	t := model.Trade{
		PositionID: row.PositionID,
		Instrument: row.Instrument,
		Strategy:   row.Strategy,
		ExitReason: row.ExitReason,
	}
	var ok bool
	if t.Direction, ok = enum.ParseDirection(row.Direction); !ok {
		return model.Trade{}, errors.Wrapf(exception.ErrInvalidState, "trade %s direction %q", row.PositionID, row.Direction)
	}

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.EntryPrice, row.EntryPrice},
		{&t.ExitPrice, row.ExitPrice},
		{&t.Quantity, row.Quantity},
		{&t.PnL, row.PnL},
		{&t.PnLFraction, row.PnLFraction},
		{&t.Commission, row.Commission},
		{&t.NetPnL, row.NetPnL},
	} {
		if *f.dst, err = model.ParseDecimal(f.src); err != nil {
			return model.Trade{}, err
		}
	}
	if t.EntryTime, err = model.ParseTime(row.EntryTime); err != nil {
		return model.Trade{}, err
	}
	if t.ExitTime, err = model.ParseTime(row.ExitTime); err != nil {
		return model.Trade{}, err
	}
	return t, nil
}
