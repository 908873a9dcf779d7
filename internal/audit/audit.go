// Package audit 每次连接向 access.log 追加一行 JSON。
package audit

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"conman/internal/models"
)

// Log 写入 Path。每次写入都打开、追加、Sync 后关闭，进程异常退出时记录也能落盘
type Log struct {
	Path string
}

// New 写入 path 的审计日志
func New(path string) *Log {
	return &Log{Path: path}
}

func (l *Log) write(fn func(zerolog.Logger)) {
	if l == nil || l.Path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	logger := zerolog.New(f).With().Timestamp().Logger()
	fn(logger)
	_ = f.Sync()
}

func event(logger zerolog.Logger, level zerolog.Level, c models.Connection) *zerolog.Event {
	e := logger.WithLevel(level).
		Str("event", "connect").
		Str("name", c.Name).
		Str("type", string(c.Kind()))
	if addr := c.Address(); addr != "" {
		e = e.Str("address", addr)
	}
	return e
}

// ConnectStart 在启动客户端之前记录
func (l *Log) ConnectStart(c models.Connection, mode string) {
	l.write(func(logger zerolog.Logger) {
		event(logger, zerolog.InfoLevel, c).Str("mode", mode).Str("status", "started").Send()
	})
}

// ConnectDone 记录结果。后台启动时成功仅表示进程已启动
func (l *Log) ConnectDone(c models.Connection, started time.Time, connectErr error) {
	l.write(func(logger zerolog.Logger) {
		if connectErr != nil {
			event(logger, zerolog.ErrorLevel, c).Str("status", "failure").Err(connectErr).Dur("elapsed", time.Since(started)).Send()
			return
		}
		event(logger, zerolog.InfoLevel, c).Str("status", "success").Dur("elapsed", time.Since(started)).Send()
	})
}
