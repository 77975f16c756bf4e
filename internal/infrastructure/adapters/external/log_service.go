package external

import (
	"context"

	"github.com/sirupsen/logrus"

	"go-dm/internal/application/ports"
)

// LogServiceAdapter 基于 logrus 的日志适配器
type LogServiceAdapter struct {
	entry *logrus.Entry
}

// NewLogServiceAdapter 创建日志适配器，logger 为 nil 时使用 logrus 全局实例
func NewLogServiceAdapter(logger *logrus.Logger, component string) ports.LogService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogServiceAdapter{entry: logger.WithField("component", component)}
}

// Info 记录信息日志
func (l *LogServiceAdapter) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.with(ctx, fields).Info(message)
}

// Error 记录错误日志
func (l *LogServiceAdapter) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	l.with(ctx, fields).WithError(err).Error(message)
}

// Warn 记录警告日志
func (l *LogServiceAdapter) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.with(ctx, fields).Warn(message)
}

// Debug 记录调试日志
func (l *LogServiceAdapter) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.with(ctx, fields).Debug(message)
}

func (l *LogServiceAdapter) with(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	e := l.entry.WithContext(ctx)
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}
