package renamer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// MaxPathLength 路径长度上限 (按字符计)，达到即视为过长
const MaxPathLength = 260

var (
	ErrPathTooLong   = errors.New("path too long")
	ErrSourceMissing = errors.New("source folder does not exist")
	ErrTargetExists  = errors.New("target already exists")
)

// ValidPathLength 路径长度是否在上限以内
func ValidPathLength(path string) bool {
	return utf8.RuneCountInString(path) < MaxPathLength
}

// TargetPath 与 src 同级、名为 newName 的路径
func TargetPath(src, newName string) string {
	return filepath.Join(filepath.Dir(src), newName)
}

// Mover 在同一文件系统内移动文件夹
type Mover struct {
	fs afero.Fs
}

func NewMover(fs afero.Fs) *Mover {
	return &Mover{fs: fs}
}

// Fs 底层文件系统
func (m *Mover) Fs() afero.Fs {
	return m.fs
}

func (m *Mover) DirExists(path string) bool {
	ok, err := afero.DirExists(m.fs, path)
	return err == nil && ok
}

func (m *Mover) Exists(path string) bool {
	_, err := m.fs.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// Move 依次检查路径长度、来源、目标，然后 Rename
func (m *Mover) Move(src, dst string) error {
	if !ValidPathLength(dst) {
		return fmt.Errorf("%w: %s", ErrPathTooLong, dst)
	}
	if !m.DirExists(src) {
		return fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	if m.Exists(dst) {
		return fmt.Errorf("%w: %s", ErrTargetExists, dst)
	}
	if err := m.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}
