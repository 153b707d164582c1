package census

import "fmt"

// PreconditionError reports an operation invoked before the processor
// reached the state it needs.
// reached the state it needs, or after it moved past the last state allowed.
type PreconditionError struct {
	Op    string
	State State // state at the time of the call
	Need  State // minimum state required, or maximum when AtMost is set
	// AtMost marks Need as the latest state the operation accepts.
	AtMost bool
}

func (e *PreconditionError) Error() string {
	if e.AtMost {
		return fmt.Sprintf("census: %s requires state %s or earlier, processor is %s", e.Op, e.Need, e.State)
	}
	return fmt.Sprintf("census: %s requires state %s, processor is %s", e.Op, e.Need, e.State)
}

// MissingDirectoryError reports a dataset directory that does not exist.
type MissingDirectoryError struct {
	Path string
}

func (e *MissingDirectoryError) Error() string {
	return fmt.Sprintf("census: dataset directory %s does not exist", e.Path)
}
