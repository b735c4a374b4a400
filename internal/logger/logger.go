package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fitrank/internal/errors"

	"github.com/sirupsen/logrus"
)

// Logger 带组件名的日志器，所有组件共享同一个 logrus 实例
type Logger struct {
	*logrus.Logger
	component string
}

// Fields 日志字段类型
type Fields map[string]interface{}

var (
	baseMu sync.RWMutex
	base   *logrus.Logger
)

func baseLogger() *logrus.Logger {
	baseMu.RLock()
	l := base
	baseMu.RUnlock()
	if l != nil {
		return l
	}

	baseMu.Lock()
	defer baseMu.Unlock()
	if base == nil {
		base = logrus.New()
		base.SetLevel(logrus.InfoLevel)
	}
	return base
}

// InitLogger 按配置初始化共享日志器，之后创建的组件日志器都会使用它
func InitLogger(level, format, output, component string) (*Logger, error) {
	l := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	l.SetLevel(logLevel)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if output != "" && output != "stdout" {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return nil, errors.ErrConfigInvalid("logging.output", err.Error()).WithCause(err)
		}
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, errors.ErrConfigInvalid("logging.output", err.Error()).WithCause(err)
		}
		l.SetOutput(file)
	}

	baseMu.Lock()
	base = l
	baseMu.Unlock()

	return &Logger{Logger: l, component: component}, nil
}

// NewLogger 创建组件日志器
func NewLogger(component string) *Logger {
	return &Logger{Logger: baseLogger(), component: component}
}

func (l *Logger) entry(fields []Fields) *logrus.Entry {
	e := l.Logger.WithField("component", l.component)
	for _, f := range fields {
		e = e.WithFields(logrus.Fields(f))
	}
	return e
}

// WithFields 添加字段
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.entry([]Fields{fields})
}

// WithError 附加错误，FitrankError 展开为错误码等字段
func (l *Logger) WithError(err error) *logrus.Entry {
	e := l.entry(nil)

	fe, ok := errors.As(err)
	if !ok {
		return e.WithError(err)
	}

	e = e.WithFields(logrus.Fields{
		"error_type":    fe.Type,
		"error_code":    fe.Code,
		"error_details": fe.Details,
	})
	if fe.Context != nil {
		e = e.WithField("error_context", fe.Context)
	}
	if fe.Cause != nil {
		e = e.WithField("error_cause", fe.Cause.Error())
	}
	return e
}

type requestIDKey struct{}

type userIDKey struct{}

// ContextWithRequestID 把请求ID放入上下文
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ContextWithUserID 把用户ID放入上下文
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// WithContext 带上请求ID和用户ID
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	e := l.entry(nil)
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		e = e.WithField("request_id", id)
	}
	if id, ok := ctx.Value(userIDKey{}).(string); ok && id != "" {
		e = e.WithField("user_id", id)
	}
	return e
}

// LogFitrankError 按错误类型选择日志级别：调用方错误和断开的连接记为 warning
func (l *Logger) LogFitrankError(err *errors.FitrankError, message string, fields ...Fields) {
	e := l.WithError(err)
	for _, f := range fields {
		e = e.WithFields(logrus.Fields(f))
	}

	switch err.Type {
	case errors.ErrorTypeValidation, errors.ErrorTypeBusiness, errors.ErrorTypeWebSocket:
		e.Warn(message)
	default:
		e.Error(message)
	}
}

// Debug 调试日志
func (l *Logger) Debug(msg string, fields ...Fields) { l.entry(fields).Debug(msg) }

// Info 信息日志
func (l *Logger) Info(msg string, fields ...Fields) { l.entry(fields).Info(msg) }

// Warn 警告日志
func (l *Logger) Warn(msg string, fields ...Fields) { l.entry(fields).Warn(msg) }

// Error 错误日志
func (l *Logger) Error(msg string, fields ...Fields) { l.entry(fields).Error(msg) }

// Fatal 记录后退出进程
func (l *Logger) Fatal(msg string, fields ...Fields) { l.entry(fields).Fatal(msg) }

// LogError 日志系统初始化前使用的错误记录
func LogError(err error, msg string, fields ...Fields) {
	l := NewLogger("bootstrap")
	if fe, ok := errors.As(err); ok {
		l.LogFitrankError(fe, msg, fields...)
		return
	}
	e := l.WithError(err)
	for _, f := range fields {
		e = e.WithFields(logrus.Fields(f))
	}
	e.Error(msg)
}
