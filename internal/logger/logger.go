package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger writes category-tagged lines with a colour-coded level.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	debug bool

	info    *color.Color
	warn    *color.Color
	err     *color.Color
	dbg     *color.Color
	process *color.Color
	db      *color.Color
	kafka   *color.Color
	api     *color.Color
	payment *color.Color
	sec     *color.Color
	basket  *color.Color
}

func NewLogger() *Logger {
	return New(os.Stdout, strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"))
}

func New(w io.Writer, debug bool) *Logger {
	return &Logger{
		out:     w,
		debug:   debug,
		info:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed, color.Bold),
		dbg:     color.New(color.FgHiBlack),
		process: color.New(color.FgCyan),
		db:      color.New(color.FgBlue),
		kafka:   color.New(color.FgMagenta),
		api:     color.New(color.FgHiGreen),
		payment: color.New(color.FgHiYellow),
		sec:     color.New(color.FgHiRed),
		basket:  color.New(color.FgHiCyan),
	}
}

func (l *Logger) write(c *color.Color, level, category, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		c.Sprintf("[%s]", level),
		category,
		msg,
	)
}

func (l *Logger) Info(category, msg string)  { l.write(l.info, "INFO", category, msg) }
func (l *Logger) Warn(category, msg string)  { l.write(l.warn, "WARN", category, msg) }
func (l *Logger) Error(category, msg string) { l.write(l.err, "ERROR", category, msg) }

func (l *Logger) Debug(category, msg string) {
	if !l.debug {
		return
	}
	l.write(l.dbg, "DEBUG", category, msg)
}

// Fatal logs and terminates the process.
func (l *Logger) Fatal(category, msg string) {
	l.write(l.err, "FATAL", category, msg)
	os.Exit(1)
}

func (l *Logger) LogProcess(category, msg string) {
	l.write(l.process, "PROCESS", category, msg)
}

func (l *Logger) LogDatabase(op, db, msg string) {
	l.write(l.db, "DB", db, op+": "+msg)
}

func (l *Logger) LogKafka(op, topic, msg string) {
	l.write(l.kafka, "KAFKA", topic, op+": "+msg)
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write(l.api, "API", method, fmt.Sprintf("%s %s (%s)", path, status, duration))
}

func (l *Logger) LogPayment(op, id, msg string) {
	l.write(l.payment, "PAYMENT", op, id+": "+msg)
}

func (l *Logger) LogSecurity(event, msg string) {
	l.write(l.sec, "SECURITY", event, msg)
}

func (l *Logger) LogCheckout(op, basketID, msg string) {
	l.write(l.basket, "CHECKOUT", op, basketID+": "+msg)
}

// Close flushes the underlying writer when it supports syncing.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.out.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}
