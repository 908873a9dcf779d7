// Package store persists the connection list as a pretty-printed JSON array and
// provides the pure list operations the front ends build on.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"conman/internal/models"
)

// ErrCorruptFile is returned by Load when the file exists but cannot be decoded.
var ErrCorruptFile = errors.New("connections file is corrupt")

// Store reads and writes the connections file at Path.
type Store struct {
	Path string
}

// New returns a Store for path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load 读取连接文件，文件不存在时返回空列表。
// 允许注释和尾随逗号，方便手工编辑
func (s *Store) Load() ([]models.Connection, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Connection{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Connection{}, nil
	}
	var records []models.Connection
	if err := json.Unmarshal(jsonc.ToJSON(data), &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptFile, s.Path, err)
	}
	if records == nil {
		records = []models.Connection{}
	}
	return records, nil
}

// Save 保存全部连接：先写同目录临时文件，再 rename 覆盖
func (s *Store) Save(records []models.Connection) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	data, err := encode(records)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".connections-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.Path)
}

// Export writes the list in the same format Save uses.
func Export(w io.Writer, records []models.Connection) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode parses an exported list.
func Decode(r io.Reader) ([]models.Connection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var records []models.Connection
	if err := json.Unmarshal(jsonc.ToJSON(data), &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.Connection{}
	}
	return records, nil
}

func encode(records []models.Connection) ([]byte, error) {
	if records == nil {
		records = []models.Connection{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
