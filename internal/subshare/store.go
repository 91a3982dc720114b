package subshare

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DBStatus 本地 db.xml 的状态
type DBStatus struct {
	Exists       bool       `json:"exists"`
	Size         int64      `json:"size"`
	LastWriteUTC *time.Time `json:"last_write_utc,omitempty"`
	SourceURL    string     `json:"source_url"`
}

// UpdateResult 下载或导入的结果
type UpdateResult struct {
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Size         int64     `json:"size"`
	Source       string    `json:"source,omitempty"`
	TimestampUTC time.Time `json:"timestamp_utc"`
}

func succeeded(size int64, source string) UpdateResult {
	return UpdateResult{Success: true, Size: size, Source: source, TimestampUTC: time.Now().UTC()}
}

func failed(format string, args ...interface{}) UpdateResult {
	return UpdateResult{Error: fmt.Sprintf(format, args...), TimestampUTC: time.Now().UTC()}
}

// Store 管理 db.xml 文件本身：状态、远程更新、本地导入
type Store struct {
	fs         afero.Fs
	dbPath     string
	primaryURL string
	backupURL  string
	client     *resty.Client
	lock       *flock.Flock

	// OnReplaced 在 db.xml 被替换后调用
	OnReplaced func()
}

func NewStore(fs afero.Fs, dbPath, primaryURL, backupURL string) *Store {
	return &Store{
		fs:         fs,
		dbPath:     dbPath,
		primaryURL: primaryURL,
		backupURL:  backupURL,
		client:     resty.New().SetTimeout(5 * time.Minute),
		lock:       flock.New(dbPath + ".lock"),
	}
}

// SetProxy 下载走代理
func (s *Store) SetProxy(proxyURL string) {
	if proxyURL != "" {
		s.client.SetProxy(proxyURL)
	}
}

func (s *Store) Status() DBStatus {
	status := DBStatus{
		SourceURL: fmt.Sprintf("Primary: %s | Backup: %s", s.primaryURL, s.backupURL),
	}
	info, err := s.fs.Stat(s.dbPath)
	if err != nil || info.IsDir() {
		return status
	}
	mod := info.ModTime().UTC()
	status.Exists = true
	status.Size = info.Size()
	status.LastWriteUTC = &mod
	return status
}

// UpdateFromRemote 先试主来源 (SVN, test 账号)，失败再用 GitHub 备用来源
func (s *Store) UpdateFromRemote(ctx context.Context) UpdateResult {
	size, primaryErr := s.download(ctx, s.primaryURL, true)
	if primaryErr == nil {
		return s.finish(size, s.primaryURL)
	}
	if ctx.Err() != nil {
		return failed("download canceled")
	}
	log.Warnf("SubShare: primary source failed: %v", primaryErr)

	size, backupErr := s.download(ctx, s.backupURL, false)
	if backupErr == nil {
		return s.finish(size, s.backupURL)
	}
	if ctx.Err() != nil {
		return failed("download canceled")
	}
	return failed("primary source failed: %v / backup source failed: %v", primaryErr, backupErr)
}

// ImportFromFile 从本地文件导入
func (s *Store) ImportFromFile(ctx context.Context, src string) UpdateResult {
	in, err := s.fs.Open(src)
	if err != nil {
		return failed("source file not found: %s", src)
	}
	defer in.Close()

	size, err := s.replaceFrom(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return failed("import canceled")
		}
		return failed("import failed: %v", err)
	}
	return s.finish(size, src)
}

func (s *Store) finish(size int64, source string) UpdateResult {
	log.Infof("SubShare: db.xml replaced from %s (%d bytes)", source, size)
	if s.OnReplaced != nil {
		s.OnReplaced()
	}
	return succeeded(size, source)
}

func (s *Store) download(ctx context.Context, url string, basicAuth bool) (int64, error) {
	req := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if basicAuth {
		req.SetBasicAuth("test", "")
	}

	resp, err := req.Get(url)
	if err != nil {
		return 0, err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() || resp.StatusCode() >= 300 {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	return s.replaceFrom(ctx, body)
}

// replaceFrom 写入同目录下的 db_<uuid>.tmp，检查大小后替换目标文件
func (s *Store) replaceFrom(ctx context.Context, r io.Reader) (int64, error) {
	dir := filepath.Dir(s.dbPath)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	tmpPath := filepath.Join(dir, "db_"+strings.ReplaceAll(uuid.NewString(), "-", "")+".tmp")
	tmp, err := s.fs.Create(tmpPath)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size == 0 {
		err = fmt.Errorf("downloaded file is empty")
	}
	if err != nil {
		_ = s.fs.Remove(tmpPath)
		return 0, err
	}

	if err := s.replace(tmpPath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return 0, err
	}
	return size, nil
}

func (s *Store) replace(tmpPath string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock db file: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warnf("SubShare: unlock failed: %v", err)
		}
	}()

	if err := s.fs.Remove(s.dbPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.fs.Rename(tmpPath, s.dbPath)
}

// ctxReader 拷贝过程中响应取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
