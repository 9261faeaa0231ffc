package stores

import (
	"io"
	"os"
	"path/filepath"
)

// LocalStore 本地磁盘存储
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (l *LocalStore) fullPath(key string) string {
	return filepath.Join(l.Root, key)
}

func (l *LocalStore) Write(key string, r io.Reader) error {
	path := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *LocalStore) Read(key string) (io.ReadCloser, int64, error) {
	path := l.fullPath(key)
	st, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	return f, st.Size(), nil
}

func (l *LocalStore) Exists(key string) bool {
	_, err := os.Stat(l.fullPath(key))
	return err == nil
}

// Localize 本地存储无需下载，直接返回磁盘路径
func (l *LocalStore) Localize(key string) (string, func(), error) {
	path := l.fullPath(key)
	if _, err := os.Stat(path); err != nil {
		return "", nil, err
	}
	return path, func() {}, nil
}
