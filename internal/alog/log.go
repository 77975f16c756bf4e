// Package alog 封装 logrus：统一格式与级别，并在日志中带上调用位置
package alog

import (
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
}

// Setup 按配置设置日志级别与格式（json|text），非法级别回退到 info
func Setup(level, format string) {
	lv, err := log.ParseLevel(level)
	if err != nil {
		lv = log.InfoLevel
	}
	log.SetLevel(lv)
	if format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// SetOutput 测试中可重定向到 io.Discard
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Logger 返回带 file/function 字段的日志入口
func Logger() *log.Entry {
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return log.NewEntry(log.StandardLogger())
	}
	index := strings.LastIndex(file, "/")
	index2 := strings.LastIndex(file[0:index], "/")
	filename := file[index2+1:] + ":" + strconv.Itoa(line)
	funcname := runtime.FuncForPC(pc).Name()
	fn := funcname[strings.LastIndex(funcname, ".")+1:]
	return log.WithField("file", filename).WithField("function", fn)
}
