// Package logging is the structured logging contract shared by the core
// packages. The zap-backed implementation lives in internal/pkg/logger.
package logging

// Logger logs a message for a module with structured details.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nop struct{}

func (nop) Debug(string, string, map[string]interface{}) {}
func (nop) Info(string, string, map[string]interface{})  {}
func (nop) Warn(string, string, map[string]interface{})  {}
func (nop) Error(string, string, map[string]interface{}) {}

// Nop discards everything.
var Nop Logger = nop{}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop
	}
	return l
}
