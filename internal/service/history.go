package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"gorm.io/gorm"
)

var ErrHistoryNotFound = errors.New("history entry not found")

// HistoryStore 改名记录，按 ID 递增写入
type HistoryStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

func (h *HistoryStore) Add(ctx context.Context, entry *model.RenameHistory) error {
	if entry.TimestampUTC.IsZero() {
		entry.TimestampUTC = h.now().UTC()
	}
	if err := h.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	return nil
}

// Recent 最近 n 条，新的在前
func (h *HistoryStore) Recent(ctx context.Context, n int) ([]model.RenameHistory, error) {
	if n <= 0 {
		n = 200
	}
	var items []model.RenameHistory
	if err := h.db.WithContext(ctx).Order("id DESC").Limit(n).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return items, nil
}

func (h *HistoryStore) Get(ctx context.Context, id uint) (*model.RenameHistory, error) {
	var item model.RenameHistory
	err := h.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history %d: %w", id, err)
	}
	return &item, nil
}

// IsRenamed path 是否是某次成功改名的结果
func (h *HistoryStore) IsRenamed(ctx context.Context, path string) (bool, error) {
	var count int64
	err := h.db.WithContext(ctx).Model(&model.RenameHistory{}).
		Where("new_path = ? AND status = ?", path, model.HistorySuccess).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return count > 0, nil
}
