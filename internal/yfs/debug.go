package yfs

import (
	"flag"
	"io"
	"log"
	"os"
	"sync"

	"github.com/yfsfs/yfsd/internal/wire"
)

var fDebug = flag.Bool(
	"yfs.debug",
	false,
	"Write server debugging messages to stderr.")

type debugLogger struct {
	*log.Logger
}

var loggerOnce sync.Once
var sharedLogger *log.Logger

func initLogger() {
	var w io.Writer = io.Discard
	if flag.Parsed() && *fDebug {
		w = os.Stderr
	}
	sharedLogger = log.New(w, "yfs: ", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
}

func newDebugLogger() *debugLogger {
	loggerOnce.Do(initLogger)
	return &debugLogger{sharedLogger}
}

// logOp writes a one-line trace of a handled request's opcode and the wire
// status code it is replying with: one small integer per failure mode,
// unlike a kernel-facing filesystem op, which has no single uniform result
// code to report.
func (l *debugLogger) logOp(op wire.Opcode, code int32) {
	l.Printf("%s -> %d", op, code)
}
