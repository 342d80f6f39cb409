package logsvc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/access"
)

var redactedKeys = map[string]bool{
	"secret":     true,
	"authsecret": true,
	"password":   true,
	"token":      true,
}

// ZapLogger writes structured logs through a zap sugared logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger builds a production logger, or a development one when debugging.
func NewZapLogger(name string, debug bool) (*ZapLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: l.Named(name).Sugar()}, nil
}

// NewNopLogger discards everything.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{sugar: zap.NewNop().Sugar()}
}

func WrapZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

func (l *ZapLogger) Sync() {
	_ = l.sugar.Sync()
}

// fields turns logger args into zap key/value pairs.
// expected fmt: error, map[string]interface{}, access.Principal
func fields(args []interface{}) []interface{} {
	kvs := make([]interface{}, 0, len(args)*2)
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			kvs = append(kvs, "error", fmt.Sprintf("%+v", v))
		case map[string]interface{}:
			for k, val := range v {
				if redactedKeys[strings.ToLower(k)] {
					val = "[REDACTED]"
				}
				kvs = append(kvs, k, val)
			}
		case access.Principal:
			kvs = append(kvs, "principal", v.Username, "principalId", v.ID)
		default:
			kvs = append(kvs, fmt.Sprintf("arg%d", i), v)
		}
	}
	return kvs
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.sugar.Debugw(msg, fields(args)...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.sugar.Infow(msg, fields(args)...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.sugar.Warnw(msg, fields(args)...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.sugar.Errorw(msg, fields(args)...) }
func (l *ZapLogger) Fatal(msg string, args ...interface{}) { l.sugar.Fatalw(msg, fields(args)...) }
