package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/renamer"
	log "github.com/sirupsen/logrus"
)

// RenameOutcome 单个文件夹的改名/还原结果
type RenameOutcome struct {
	HistoryID    uint   `json:"history_id,omitempty"`
	OriginalPath string `json:"original_path"`
	NewPath      string `json:"new_path"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

type RenameSummary struct {
	Success  int             `json:"success"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Outcomes []RenameOutcome `json:"outcomes"`
}

// RenameService 按命名模板批量改名并记录历史，可按记录还原
type RenameService struct {
	history *HistoryStore
	mover   *renamer.Mover
	bus     event.Bus
}

func NewRenameService(history *HistoryStore, mover *renamer.Mover, bus event.Bus) *RenameService {
	return &RenameService{
		history: history,
		mover:   mover,
		bus:     event.Or(bus),
	}
}

// Apply 单个文件夹失败不影响整批。只有取消会返回错误，已处理的结果保留在 summary 中。
func (s *RenameService) Apply(ctx context.Context, folders []*model.AnimeFolder, template string) (RenameSummary, error) {
	summary := RenameSummary{Outcomes: []RenameOutcome{}}
	targets := make(map[string]struct{})
	total := len(folders)

	for i, f := range folders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.bus.Publish(event.EventRenameProgress, event.Progress{Processed: i + 1, Total: total, Current: f.Path})

		if !f.IsIdentified {
			if strings.TrimSpace(f.SelectedTitle) == "" || f.ProviderError != "" {
				continue
			}
		}

		newName := renamer.Render(template, FolderFields(f))
		newPath := renamer.TargetPath(f.Path, newName)
		if strings.EqualFold(newPath, f.Path) {
			continue
		}

		var out RenameOutcome
		switch {
		case !renamer.ValidPathLength(newPath):
			out = s.record(ctx, f.Path, newPath, model.HistorySkipped, "path too long")
		case !s.mover.DirExists(f.Path):
			out = s.record(ctx, f.Path, newPath, model.HistoryFailed, "source does not exist")
		case hasTarget(targets, newPath) || s.mover.Exists(newPath):
			out = s.record(ctx, f.Path, newPath, model.HistorySkipped, "duplicate target name")
		default:
			oldPath := f.Path
			if err := s.mover.Move(oldPath, newPath); err != nil {
				log.Warnf("Rename: %s -> %s failed: %v", oldPath, newPath, err)
				out = s.record(ctx, oldPath, newPath, model.HistoryFailed, err.Error())
				break
			}
			targets[strings.ToLower(newPath)] = struct{}{}
			f.Path = newPath
			f.Name = newName
			f.State = model.StateAlreadyOrganized
			out = s.record(ctx, oldPath, newPath, model.HistorySuccess, "renamed")
		}

		switch out.Status {
		case model.HistorySuccess:
			summary.Success++
		case model.HistorySkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		summary.Outcomes = append(summary.Outcomes, out)
	}

	log.Infof("Rename: done, success=%d failed=%d skipped=%d", summary.Success, summary.Failed, summary.Skipped)
	s.bus.Publish(event.EventRenameComplete, summary)
	return summary, nil
}

func hasTarget(targets map[string]struct{}, path string) bool {
	_, ok := targets[strings.ToLower(path)]
	return ok
}

// record 写入历史，写入失败只记日志
func (s *RenameService) record(ctx context.Context, from, to, status, message string) RenameOutcome {
	entry := &model.RenameHistory{
		OriginalPath: from,
		NewPath:      to,
		Status:       status,
		Message:      message,
	}
	if err := s.history.Add(ctx, entry); err != nil {
		log.Errorf("Rename: failed to record history: %v", err)
	}
	return RenameOutcome{
		HistoryID:    entry.ID,
		OriginalPath: from,
		NewPath:      to,
		Status:       status,
		Message:      message,
	}
}

// Restore 把一条改名记录的 NewPath 移回 OriginalPath
func (s *RenameService) Restore(ctx context.Context, id uint) (RenameOutcome, error) {
	entry, err := s.history.Get(ctx, id)
	if err != nil {
		return RenameOutcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return RenameOutcome{}, err
	}

	source, target := entry.NewPath, entry.OriginalPath
	switch {
	case !renamer.ValidPathLength(target):
		return s.record(ctx, source, target, model.HistoryRestoreSkipped, "target path too long"), nil
	case !s.mover.DirExists(source):
		return s.record(ctx, source, target, model.HistoryRestoreFailed, "source does not exist"), nil
	case s.mover.Exists(target):
		return s.record(ctx, source, target, model.HistoryRestoreSkipped, "target already exists"), nil
	}

	if err := s.mover.Move(source, target); err != nil {
		msg := err.Error()
		if errors.Is(err, renamer.ErrTargetExists) {
			return s.record(ctx, source, target, model.HistoryRestoreSkipped, msg), nil
		}
		return s.record(ctx, source, target, model.HistoryRestoreFailed, msg), nil
	}
	return s.record(ctx, source, target, model.HistoryRestoreSuccess, "restored"), nil
}
