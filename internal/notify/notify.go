package notify

import "log"

// Notifier receives the transient user-facing notifications: every
// successful mutation produces one success, every failed mutation one
// failure carrying the server message when available.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Success(message string) {
	log.Printf("notify: %s", message)
}

func (LogNotifier) Error(message string) {
	log.Printf("notify: error: %s", message)
}

// Discard drops every notification; used in tests that do not assert on
// notification flow.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
