package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError     = "error"
	KeyStack     = "stack"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"

	// KeyResource 流控资源 ID
	KeyResource = "resource"
	// KeyBucket 秒级时间桶 ID（毫秒）
	KeyBucket = "bucket"
	// KeyBlockType 拦截类型
	KeyBlockType = "block_type"
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Resource 资源 ID 属性。资源 ID 中的分隔符原样输出。
func Resource(id string) slog.Attr {
	return slog.String(KeyResource, id)
}

func Bucket(id int64) slog.Attr {
	return slog.Int64(KeyBucket, id)
}

func BlockType(t string) slog.Attr {
	return slog.String(KeyBlockType, t)
}
