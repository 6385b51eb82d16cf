package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

// Init настраивает глобальный логгер. В режиме release пишет JSON,
// иначе человекочитаемый формат с цветными уровнями.
func Init(mode string) error {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := config.Build()
	if err != nil {
		return err
	}

	global.Store(l)
	return nil
}

// L возвращает глобальный логгер; до Init это no-op логгер.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Sync сбрасывает буферы логгера.
func Sync() {
	_ = L().Sync()
}
