package main

import (
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"vellum-lang/interpreter"
	"vellum-lang/vm"
)

const (
	exitCompileError = 65
	exitRuntimeError = 70
	exitIOFailure    = 74
	exitUsageError   = 64
)

var (
	traceFlag       bool
	dumpGlobalsFlag bool
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsageError)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vellum [script]",
		Short: "A bytecode interpreter for a small Lox-family scripting language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			configureLogging(traceFlag)
			it := interpreter.New()

			if len(args) == 0 {
				return runREPL(it)
			}
			return runFile(it, args[0])
		},
	}

	cmd.Flags().BoolVar(&traceFlag, "trace", false, "enable per-instruction execution tracing")
	cmd.Flags().BoolVar(&dumpGlobalsFlag, "dump-globals", false, "print every global name still bound after each REPL line")

	return cmd
}

// configureLogging sets up the standard logrus logger every package
// in this module logs through, so --trace toggles tracing process-
// wide rather than per collaborator.
func configureLogging(trace bool) {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "15:04:05",
		LogFormat:       "[%lvl%] %msg%\n",
	})
	if trace {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// runFile feeds an entire source file through one Interpret call and
// translates the result into the exit codes the process surface
// documents.
func runFile(it *interpreter.Interpreter, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOFailure)
	}

	switch err := it.Run(string(src)); err {
	case nil:
		return nil
	case vm.ErrCompile:
		os.Exit(exitCompileError)
	case vm.ErrRuntime:
		os.Exit(exitRuntimeError)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}
	return nil
}

// runREPL feeds one line at a time to a persistent Interpreter, so
// variables and interned strings accumulate for the life of the
// session, the way the process surface's REPL collaborator is
// documented to behave.
func runREPL(it *interpreter.Interpreter) error {
	rl, err := readline.New("vellum> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("vellum REPL. Press Ctrl-D to exit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		if line == "" {
			continue
		}

		if runErr := it.Run(line); runErr != nil {
			logrus.WithError(runErr).Debug("line failed")
		}

		if dumpGlobalsFlag {
			dumpGlobals(it)
		}
	}
}

// dumpGlobals prints the currently bound global names in sorted
// order, used by --dump-globals to inspect REPL state between lines.
func dumpGlobals(it *interpreter.Interpreter) {
	names := maps.Keys(it.GlobalNames())
	slices.Sort(names)
	fmt.Println("globals:", names)
}
