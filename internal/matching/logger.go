package matching

// Logger is where the resolver and caches report catalog inconsistencies
// and backend failures. Resolution never fails because of a log call.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
