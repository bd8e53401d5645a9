// Package interpreter wires the Scanner, Compiler, Chunk, and VM
// together behind the single entry point a REPL or file-mode driver
// needs.
package interpreter

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"vellum-lang/compiler"
	"vellum-lang/intern"
	"vellum-lang/vm"
)

// Interpreter owns the one long-lived Interner and VM a program runs
// against; globals and interned strings accumulate across repeated
// calls to Run, which is what lets a REPL session build up state line
// by line.
type Interpreter struct {
	interner *intern.Interner
	vm       *vm.VM
}

// New returns an Interpreter with a fresh Interner and VM. Tracing is
// controlled process-wide via logrus's standard logger level, not per
// Interpreter; see main's --trace flag.
func New() *Interpreter {
	in := intern.New()
	return &Interpreter{
		interner: in,
		vm:       vm.New(in),
	}
}

// Run compiles and executes source against the Interpreter's
// persistent state. The returned error, when non-nil, is either
// vm.ErrCompile or vm.ErrRuntime; diagnostics have already been
// printed to standard error, by Run itself for compile errors and by
// the VM for runtime errors.
func (it *Interpreter) Run(source string) error {
	chunk, err := compiler.Compile(source, it.interner)
	if err != nil {
		logrus.WithError(err).Debug("compile failed")
		reportCompileErrors(err)
		return vm.ErrCompile
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		chunk.Disassemble("chunk")
	}

	return it.vm.Run(chunk)
}

// SetOutput redirects where print statements write, in place of
// os.Stdout. Meant for tests that want to assert on printed output
// without capturing the process's real stdout.
func (it *Interpreter) SetOutput(w io.Writer) {
	it.vm.SetOutput(w)
}

// GlobalNames returns every global variable currently bound in the
// Interpreter's VM. It exists for debug tooling (a REPL's
// --dump-globals flag); the core interpret path never calls it.
func (it *Interpreter) GlobalNames() map[string]vm.Value {
	return it.vm.Globals()
}

// reportCompileErrors prints one diagnostic per line to standard
// error, unwrapping the multierror.Error the Compiler aggregates its
// "[line N] Error ...: message" entries into rather than printing its
// bundled "N errors occurred" summary.
func reportCompileErrors(err error) {
	merr, ok := err.(*multierror.Error)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	for _, e := range merr.Errors {
		fmt.Fprintln(os.Stderr, e)
	}
}
