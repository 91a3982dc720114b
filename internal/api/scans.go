package api

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/service"
)

const maxKeptScans = 16

// scanCache 保存最近的扫描结果。改名接口只接受这里记录过的文件夹，
// 路径和识别状态都不从请求里取。
type scanCache struct {
	mu    sync.Mutex
	order []string
	items map[string]map[string]*model.AnimeFolder
}

func newScanCache() *scanCache {
	return &scanCache{items: make(map[string]map[string]*model.AnimeFolder)}
}

// put 保存一份副本并返回扫描 ID，超出上限时丢弃最早的扫描
func (c *scanCache) put(res *service.ScanResult) string {
	folders := make(map[string]*model.AnimeFolder, len(res.Folders))
	for _, f := range res.Folders {
		cp := *f
		folders[f.Path] = &cp
	}

	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = folders
	c.order = append(c.order, id)
	for len(c.order) > maxKeptScans {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	return id
}

// folder 返回扫描中该路径文件夹的副本
func (c *scanCache) folder(scanID, path string) (*model.AnimeFolder, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	folders, ok := c.items[scanID]
	if !ok {
		return nil, false, false
	}
	f, ok := folders[path]
	if !ok {
		return nil, true, false
	}
	cp := *f
	return &cp, true, true
}

// update 改名成功后让缓存跟上新路径，同一扫描不能再对旧路径改名
func (c *scanCache) update(scanID, oldPath string, f *model.AnimeFolder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	folders, ok := c.items[scanID]
	if !ok {
		return
	}
	delete(folders, oldPath)
	cp := *f
	folders[f.Path] = &cp
}
