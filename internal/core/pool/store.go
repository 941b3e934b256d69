package pool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// ============================================================================
//                              Store 落盘存储
// ============================================================================

const (
	// schemaVersion 存储文件 schema 版本
	schemaVersion = 1

	// currentNodeFile 最近可用节点文件名
	currentNodeFile = "current_node.json"

	// cacheFile 目录缓存文件名
	cacheFile = "nodes_cache.json"
)

// currentNodeSchema 当前节点存储文件 schema
type currentNodeSchema struct {
	Version   int              `json:"version"`
	UpdatedAt int64            `json:"updated_at"`
	Node      *types.Candidate `json:"node"`
}

// cacheSchema 目录缓存存储文件 schema
type cacheSchema struct {
	Version   int               `json:"version"`
	Timestamp int64             `json:"timestamp"`
	Nodes     []types.Candidate `json:"nodes"`
}

// Store 候选池落盘存储
//
// 持有两个 JSON 文件：最近可用节点与带拉取时间戳的目录缓存。
// 损坏或版本不匹配的文件按不存在处理，不向调用方抛错。
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore 创建落盘存储
//
// dir 为空时使用 ~/.wavelink。
func NewStore(dir string) *Store {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		dir = filepath.Join(homeDir, ".wavelink")
	}
	return &Store{dir: dir}
}

// Dir 返回存储目录
func (s *Store) Dir() string {
	return s.dir
}

// writeJSON 原子写 JSON 文件
//
// 凭证随节点记录落盘，文件权限收紧为 0600。
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// readJSON 读取 JSON 文件，文件不存在返回 os.ErrNotExist
func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveCurrent 持久化当前节点
func (s *Store) SaveCurrent(c types.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeJSON(currentNodeFile, currentNodeSchema{
		Version:   schemaVersion,
		UpdatedAt: time.Now().Unix(),
		Node:      &c,
	})
}

// LoadCurrent 读取持久化的当前节点
//
// 文件缺失、损坏、版本不匹配或记录不合格时返回 nil。
func (s *Store) LoadCurrent() *types.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var schema currentNodeSchema
	if err := s.readJSON(currentNodeFile, &schema); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("当前节点文件不可读，忽略", "err", err)
		}
		return nil
	}
	if schema.Version != schemaVersion || schema.Node == nil {
		logger.Warn("当前节点文件版本不匹配，忽略", "version", schema.Version)
		return nil
	}
	if !schema.Node.Eligible() {
		logger.Warn("持久化节点记录不合格，忽略", "node", schema.Node.Key())
		return nil
	}
	return schema.Node
}

// SaveCache 持久化目录缓存
func (s *Store) SaveCache(nodes []types.Candidate, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeJSON(cacheFile, cacheSchema{
		Version:   schemaVersion,
		Timestamp: fetchedAt.Unix(),
		Nodes:     nodes,
	})
}

// LoadCache 读取目录缓存
//
// 返回候选列表与拉取时间；文件缺失或损坏时返回空列表与零值时间。
func (s *Store) LoadCache() ([]types.Candidate, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var schema cacheSchema
	if err := s.readJSON(cacheFile, &schema); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("目录缓存文件不可读，忽略", "err", err)
		}
		return nil, time.Time{}
	}
	if schema.Version != schemaVersion {
		logger.Warn("目录缓存文件版本不匹配，忽略", "version", schema.Version)
		return nil, time.Time{}
	}
	return schema.Nodes, time.Unix(schema.Timestamp, 0)
}
