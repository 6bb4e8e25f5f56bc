package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module's state-changing flows are
// currently halted by the operator.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
