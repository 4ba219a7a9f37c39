package tools

import "fmt"

// Kind tags a tool outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindInfo
)

// Result is a tagged tool outcome. The display string, with its
// SUCCESS/ERROR/INFO prefix, is generated here at the tool boundary so
// the dispatcher can always treat tool output as user-displayable text.
type Result struct {
	Kind    Kind
	Message string
}

func (r Result) String() string {
	switch r.Kind {
	case KindError:
		return "ERROR: " + r.Message
	case KindInfo:
		return "INFO: " + r.Message
	default:
		return "SUCCESS: " + r.Message
	}
}

// Successf builds a success result.
func Successf(format string, args ...any) Result {
	return Result{Kind: KindSuccess, Message: fmt.Sprintf(format, args...)}
}

// Errorf builds an error result.
func Errorf(format string, args ...any) Result {
	return Result{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// Infof builds an informational result.
func Infof(format string, args ...any) Result {
	return Result{Kind: KindInfo, Message: fmt.Sprintf(format, args...)}
}
