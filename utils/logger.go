package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Logger provides logging functionality
type Logger struct {
	file    *os.File
	logger  *log.Logger
	verbose bool
}

// NewLogger creates a new logger writing to the given file and stdout
func NewLogger(logPath string) (*Logger, error) {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:   file,
		logger: log.New(file, "", log.LstdFlags),
	}, nil
}

// SetVerbose enables debug output
func (l *Logger) SetVerbose(verbose bool) {
	l.verbose = verbose
}

// Close closes the logger
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) write(level, format string, v ...interface{}) {
	msg := fmt.Sprintf("["+level+"] "+format, v...)
	l.logger.Println(msg)
	fmt.Println(msg)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

// Debug logs a debug message when verbose mode is on
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.verbose {
		return
	}
	l.write("DEBUG", format, v...)
}

// GetLogPath returns the default log path
func GetLogPath() string {
	return filepath.Join(".", "logs", fmt.Sprintf("chat-%s.log", time.Now().Format("2006-01-02")))
}
