// Package logging configures the shared logrus instance and bridges gin's
// writers into it.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var setupOnce sync.Once

// Formatter renders entries as "[ts] [level] [file:line] message".
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	var buf *bytes.Buffer
	if entry.Buffer != nil {
		buf = entry.Buffer
	} else {
		buf = &bytes.Buffer{}
	}
	ts := entry.Time.Format("2006-01-02 15:04:05")
	msg := strings.TrimRight(entry.Message, "\r\n")
	if entry.Caller != nil {
		fmt.Fprintf(buf, "[%s] [%s] [%s:%d] %s\n", ts, entry.Level, filepath.Base(entry.Caller.File), entry.Caller.Line, msg)
	} else {
		fmt.Fprintf(buf, "[%s] [%s] %s\n", ts, entry.Level, msg)
	}
	return buf.Bytes(), nil
}

// Options controls Setup behavior.
type Options struct {
	Debug      bool
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup configures logrus output, level and the gin writer bridge. Safe to
// call multiple times; initialization happens only once.
func Setup(opts Options) {
	setupOnce.Do(func() {
		log.SetReportCaller(true)
		log.SetFormatter(&Formatter{})

		var out io.Writer = os.Stdout
		if opts.File != "" {
			rotated := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    orDefault(opts.MaxSizeMB, 50),
				MaxBackups: orDefault(opts.MaxBackups, 5),
				Compress:   true,
			}
			out = io.MultiWriter(os.Stdout, rotated)
		}
		log.SetOutput(out)

		if opts.Debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.InfoLevel)
			gin.SetMode(gin.ReleaseMode)
		}

		gin.DefaultWriter = log.StandardLogger().Writer()
		gin.DefaultErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DebugPrintFunc = func(format string, values ...interface{}) {
			log.Debugf(strings.TrimRight(format, "\r\n"), values...)
		}
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
