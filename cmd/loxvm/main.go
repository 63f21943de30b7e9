// Command loxvm is the CLI driver around the compiler and VM: run a
// script, disassemble it, or drop into a REPL. It is explicitly "out of
// scope" for the core spec (spec.md §1) but still needs the teacher's
// ambient stack to behave like a real tool.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"loxvm/internal/compiler"
	"loxvm/internal/history"
	"loxvm/internal/telemetry"
	"loxvm/internal/vm"
	"loxvm/internal/vmlog"
)

// Exit codes per spec.md §6: conventional Unix sysexits.
const (
	exitOK           = 0
	exitCompileError = 65
	exitRuntimeError = 70
)

var (
	verbose       bool
	telemetryExec string
	historyPath   string
)

func main() {
	root := &cobra.Command{
		Use:   "loxvm",
		Short: "A single-pass bytecode compiler and stack VM for a small scripting language",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&telemetryExec, "telemetry-exec", "",
		"path to a loxvm-telemetry-dynamodb binary to record runs")
	root.PersistentFlags().StringVar(&historyPath, "history", "",
		"path to a sqlite database recording REPL input (REPL only)")

	root.AddCommand(newRunCmd(), newReplCmd(), newDisasmCmd())

	cobra.OnInitialize(func() { vmlog.SetVerbose(verbose) })

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Compile and execute a script file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			source, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "loxvm: %v\n", err)
				os.Exit(1)
			}

			rec := maybeStartTelemetry()
			if rec != nil {
				defer rec.Close()
			}

			machine := vm.New()
			defer machine.Free()

			result := machine.Interpret(string(source))
			if rec != nil {
				rec.PutRun(string(source), resultName(result))
			}
			os.Exit(exitCodeFor(result))
		},
	}
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <script>",
		Short: "Print the compiled chunk's disassembly without executing it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			source, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "loxvm: %v\n", err)
				os.Exit(1)
			}

			c, err := compiler.New(string(source))
			if err != nil {
				vmlog.WithError(err).Error("compile error")
				os.Exit(exitCompileError)
			}
			c.Chunk().Disassemble(filepath.Base(args[0]))
		},
	}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		Run: func(cmd *cobra.Command, args []string) {
			runRepl()
		},
	}
}

func runRepl() {
	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loxvm: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	var hist *history.Store
	if historyPath != "" {
		hist, err = history.Open(historyPath)
		if err != nil {
			vmlog.WithError(err).Warn("repl: history disabled")
		} else {
			defer hist.Close()
		}
	}

	rec := maybeStartTelemetry()
	if rec != nil {
		defer rec.Close()
	}

	machine := vm.New()
	defer machine.Free()

	fmt.Println("loxvm REPL. Type an empty line to cancel multi-line input, Ctrl-D to exit.")

	var buffer strings.Builder
	for {
		prompt := ">>> "
		if buffer.Len() > 0 {
			prompt = "... "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil {
			break
		}

		if strings.TrimSpace(line) == "" {
			buffer.Reset()
			continue
		}
		buffer.WriteString(line)
		buffer.WriteString("\n")

		if !balanced(buffer.String()) {
			continue
		}

		source := buffer.String()
		buffer.Reset()

		result := machine.Interpret(source)
		if hist != nil {
			hist.Record(strings.TrimSpace(source), resultName(result))
		}
		if rec != nil {
			rec.PutRun(source, resultName(result))
		}
	}
}

// balanced is the REPL's multi-line heuristic: keep reading lines while
// braces are unmatched, so a block spanning several lines compiles as
// one source string instead of erroring on the first incomplete line.
func balanced(source string) bool {
	depth := 0
	for _, r := range source {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth <= 0
}

func resultName(r vm.InterpretResult) string {
	switch r {
	case vm.InterpretOK:
		return "OK"
	case vm.InterpretCompileError:
		return "COMPILE_ERROR"
	case vm.InterpretRuntimeError:
		return "RUNTIME_ERROR"
	default:
		return "UNKNOWN"
	}
}

func exitCodeFor(r vm.InterpretResult) int {
	switch r {
	case vm.InterpretOK:
		return exitOK
	case vm.InterpretCompileError:
		return exitCompileError
	case vm.InterpretRuntimeError:
		return exitRuntimeError
	default:
		return exitRuntimeError
	}
}

func maybeStartTelemetry() *telemetry.Client {
	if telemetryExec == "" {
		return nil
	}
	path, err := exec.LookPath(telemetryExec)
	if err != nil {
		path = telemetryExec
	}
	client, err := telemetry.Start(path)
	if err != nil {
		vmlog.WithError(err).Warn("telemetry disabled")
		return nil
	}
	return client
}
