package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a zap SugaredLogger. Every key-value pair passes through the
// redactor before it is written.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	red           *redactor
}

type Option func(*redactor)

// WithHashSalt salts the hashes written for requester and user ids.
func WithHashSalt(salt string) Option {
	return func(r *redactor) { r.salt = strings.TrimSpace(salt) }
}

// WithRedaction turns secret redaction and id hashing on or off. It is on by default.
func WithRedaction(on bool) Option {
	return func(r *redactor) { r.off = !on }
}

// New builds a logger for mode: "prod"/"production" writes JSON at info,
// "test"/"nop" discards everything, anything else is the console config at debug.
func New(mode string, opts ...Option) (*Logger, error) {
	red := &redactor{}
	for _, opt := range opts {
		opt(red)
	}
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "test", "nop":
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), red: red}, nil
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zl.Sugar(), red: red}, nil
}

// Nop returns a logger that drops every entry.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), red: &redactor{}}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.red.kvs(keysAndValues)...), red: l.red}
}
