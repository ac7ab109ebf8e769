package core

// Logger is any leveled logger.
// args may hold errors, maps of extra data and at most one acting profile.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the acting profile in error reports.
type Person struct {
	ID    string
	Name  string
	Email string
}
