package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

// userRow is the relational shape of a user record. The last-reply summary
// is kept as a JSON column: it is read back whole and never queried into.
type userRow struct {
	UserID      string         `gorm:"primaryKey;column:user_id"`
	UserType    string         `gorm:"not null;column:user_type"`
	LastVisit   time.Time      `gorm:"column:last_visit"`
	CreatedDate time.Time      `gorm:"column:created_date"`
	Reply       datatypes.JSON `gorm:"column:reply"`
	UpdatedAt   time.Time      `gorm:"not null;column:updated_at"`
}

func (userRow) TableName() string {
	return "user_record"
}

func toRow(rec *types.UserRecord) (*userRow, error) {
	row := &userRow{
		UserID:      rec.UserID,
		UserType:    string(rec.UserType),
		LastVisit:   rec.LastVisit,
		CreatedDate: rec.CreatedDate,
	}
	if rec.Reply != nil {
		raw, err := json.Marshal(rec.Reply)
		if err != nil {
			return nil, fmt.Errorf("encode reply summary: %w", err)
		}
		row.Reply = datatypes.JSON(raw)
	}
	return row, nil
}

func fromRow(row *userRow) (*types.UserRecord, error) {
	rec := &types.UserRecord{
		UserID:      row.UserID,
		UserType:    types.UserType(row.UserType),
		LastVisit:   row.LastVisit,
		CreatedDate: row.CreatedDate,
	}
	if len(row.Reply) > 0 {
		var summary types.ReplySummary
		if err := json.Unmarshal(row.Reply, &summary); err != nil {
			return nil, fmt.Errorf("decode reply summary: %w", err)
		}
		rec.Reply = &summary
	}
	return rec, nil
}

// GormGateway is the relational implementation of the persistence gateway.
type GormGateway struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormGateway(db *gorm.DB, baseLog *logger.Logger) (*GormGateway, error) {
	if err := db.AutoMigrate(&userRow{}); err != nil {
		return nil, fmt.Errorf("migrate user_record: %w", err)
	}
	return &GormGateway{
		db:  db,
		log: baseLog.With("service", "GormGateway"),
	}, nil
}

func (g *GormGateway) Get(ctx context.Context, userID string) (*types.UserRecord, error) {
	var row userRow
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return fromRow(&row)
}

func (g *GormGateway) Put(ctx context.Context, rec *types.UserRecord) error {
	var existingCreated time.Time
	var existing userRow
	err := g.db.WithContext(ctx).Select("created_date").Where("user_id = ?", rec.UserID).First(&existing).Error
	if err == nil {
		existingCreated = existing.CreatedDate
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check user %s: %w", rec.UserID, err)
	}

	row, rerr := toRow(prepareForWrite(rec, existingCreated))
	if rerr != nil {
		return rerr
	}
	row.UpdatedAt = time.Now().UTC()
	if err := g.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("save user %s: %w", rec.UserID, err)
	}
	return nil
}
