package host

import "fmt"

// Error is a refusal reported by the host. Detail is the host's own text.
type Error struct {
	Command string
	Detail  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("host refused %s: %s", e.Command, e.Detail)
}
