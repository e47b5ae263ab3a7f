// Package failure defines the closed set of failure kinds shared by the
// command executor and the retry policies.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed; refinements are declared in
// the parents table below.
type Kind uint8

const (
	// Unknown is the zero Kind. Errors without a kind report it.
	Unknown Kind = iota
	// Command is the root of every system command failure.
	Command
	// Launch means the OS could not start the process.
	Launch
	// Execution means the process ran and exited with a failing code.
	Execution
	// Transient marks a caller-classified failure that is worth retrying.
	Transient
)

var parents = map[Kind]Kind{
	Launch:    Command,
	Execution: Command,
}

var names = map[Kind]string{
	Unknown:   "unknown",
	Command:   "command",
	Launch:    "launch",
	Execution: "execution",
	Transient: "transient",
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Is reports whether k equals target or refines it.
func (k Kind) Is(target Kind) bool {
	for cur := k; ; {
		if cur == target {
			return true
		}
		parent, ok := parents[cur]
		if !ok {
			return false
		}
		cur = parent
	}
}

// Kinded is implemented by errors that carry a Kind.
type Kinded interface {
	Kind() Kind
}

// KindOf returns the kind of the first error in err's chain that carries one.
func KindOf(err error) (Kind, bool) {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return Unknown, false
}

// Matches reports whether err carries a kind equal to or refining target.
func Matches(err error, target Kind) bool {
	k, ok := KindOf(err)
	return ok && k.Is(target)
}

type marked struct {
	err  error
	kind Kind
}

func (m *marked) Error() string { return m.err.Error() }
func (m *marked) Unwrap() error { return m.err }
func (m *marked) Kind() Kind    { return m.kind }

// Mark attaches kind to err. A nil err stays nil.
func Mark(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, kind: kind}
}
