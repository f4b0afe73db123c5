package resolve

import "fmt"

// Error reports a reference that could not be resolved: an unknown template
// id, a node that does not exist, or a port the node does not have.
type Error struct {
	Ref    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Ref, e.Reason)
}
