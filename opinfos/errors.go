package opinfos

import (
	"fmt"

	"github.com/pkg/errors"
)

// kindedError carries the failure class an invalid sample provoked, so
// harnesses can match it against the expected ErrorCase.
type kindedError struct {
	kind ErrorKind
	msg  string
}

func (e *kindedError) Error() string { return e.msg }

func errorOf(kind ErrorKind, format string, args ...any) error {
	return &kindedError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure class of an error produced by an operator
// callable, if it has one.
func KindOf(err error) (ErrorKind, bool) {
	var kinded *kindedError
	if errors.As(err, &kinded) {
		return kinded.kind, true
	}
	return 0, false
}
