package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name   string
	level  zap.AtomicLevel
	cores  []zapcore.Core
	fields []interface{}

	// sugar writes everything it is given; level filtering happens in shouldLog so that
	// context-enabled debug logs can bypass the configured level.
	sugar *zap.SugaredLogger
}

func newImpl(name string, level zap.AtomicLevel, cores []zapcore.Core, fields []interface{}) *impl {
	imp := &impl{name: name, level: level, cores: cores, fields: fields}
	imp.sugar = imp.build(zap.AddCallerSkip(1))
	return imp
}

func (imp *impl) build(opts ...zap.Option) *zap.SugaredLogger {
	core := zapcore.NewNopCore()
	if len(imp.cores) > 0 {
		core = zapcore.NewTee(imp.cores...)
	}
	opts = append([]zap.Option{zap.AddCaller()}, opts...)
	ret := zap.New(core, opts...).Sugar()
	if imp.name != "" {
		ret = ret.Named(imp.name)
	}
	if len(imp.fields) > 0 {
		ret = ret.With(imp.fields...)
	}
	return ret
}

func (imp *impl) shouldLog(level Level) bool {
	return level.AsZap() >= imp.level.Level()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return newImpl(newName, zap.NewAtomicLevelAt(imp.level.Level()), imp.cores, imp.fields)
}

func (imp *impl) WithFields(keysAndValues ...interface{}) Logger {
	fields := make([]interface{}, 0, len(imp.fields)+len(keysAndValues))
	fields = append(fields, imp.fields...)
	fields = append(fields, keysAndValues...)
	return newImpl(imp.name, imp.level, imp.cores, fields)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return LevelFromZap(imp.level.Level())
}

func (imp *impl) Level() zapcore.Level {
	return imp.level.Level()
}

// AsZap returns a zap logger honoring this logger's level.
func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.build(zap.IncreaseLevel(imp.level))
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.AsZap().Desugar()
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.AsZap().Named(name)
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.AsZap().With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.AsZap().WithOptions(opts...)
}

func (imp *impl) Sync() error {
	return imp.sugar.Sync()
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debug(args...)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debugf(template, args...)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debugw(msg, keysAndValues...)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(DEBUG) || IsDebugMode(ctx) {
		imp.sugar.Debugw(msg, withDebugName(ctx, keysAndValues)...)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.sugar.Info(args...)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.sugar.Infof(template, args...)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.sugar.Infow(msg, keysAndValues...)
	}
}

func (imp *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(INFO) || IsDebugMode(ctx) {
		imp.sugar.Infow(msg, withDebugName(ctx, keysAndValues)...)
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.sugar.Warn(args...)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.sugar.Warnf(template, args...)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.sugar.Warnw(msg, keysAndValues...)
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.sugar.Error(args...)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.sugar.Errorf(template, args...)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.sugar.Errorw(msg, keysAndValues...)
	}
}

// These Fatal* methods log as errors then exit the process.
func (imp *impl) Fatal(args ...interface{}) {
	imp.sugar.Fatal(args...)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.sugar.Fatalf(template, args...)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Fatalw(msg, keysAndValues...)
}
