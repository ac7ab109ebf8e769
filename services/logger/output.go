package logsvc

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

// NewStdLogger returns the process logger. With conf.Log.File set, output also goes to a
// size-rotated file; the returned closer must then be closed on shutdown.
func NewStdLogger(conf *core.Config) (*log.Logger, io.Closer, error) {
	flags := log.LstdFlags | log.Lmicroseconds | log.Lshortfile
	prefix := conf.AppName + " : "
	if conf.Log.File == "" {
		return log.New(os.Stdout, prefix, flags), nopCloser{}, nil
	}

	w, err := newRotatingWriter(conf.Log)
	if err != nil {
		return nil, nil, err
	}
	return log.New(io.MultiWriter(os.Stdout, w), prefix, flags), w, nil
}

func newRotatingWriter(conf core.LogConfig) (*lumberjack.Logger, error) {
	if conf.MaxSizeMB <= 0 {
		conf.MaxSizeMB = 10
	}
	if conf.MaxBackups <= 0 {
		conf.MaxBackups = 5
	}
	if err := os.MkdirAll(filepath.Dir(conf.File), 0o750); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}
	return &lumberjack.Logger{
		Filename:   conf.File,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   true,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
