package stores

import (
	"fmt"
	"io"
	"strings"
)

// Store 音频文件存储后端
type Store interface {
	// Write 写入一个对象
	Write(key string, r io.Reader) error

	// Read 读取对象内容和大小
	Read(key string) (io.ReadCloser, int64, error)

	// Exists 对象是否存在
	Exists(key string) bool

	// Localize ensures the object is on the local filesystem and returns its
	// path plus a cleanup func. The transcription API takes a file path, so
	// remote backends download to a temp file here.
	Localize(key string) (string, func(), error)
}

// New 按类型创建存储后端，local 走上传目录，minio 从环境变量读取配置
func New(storageType, localRoot string) (Store, error) {
	switch strings.ToLower(storageType) {
	case "", "local":
		return NewLocalStore(localRoot), nil
	case "minio":
		return NewMinioStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
