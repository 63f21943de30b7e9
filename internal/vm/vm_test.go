package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vmTestCase struct {
	input  string
	want   InterpretResult
	output string
}

func runVMTests(t *testing.T, tests []vmTestCase) {
	t.Helper()
	for _, tt := range tests {
		v := New()
		var buf bytes.Buffer
		v.SetOutput(&buf)

		got := v.Interpret(tt.input)
		assert.Equalf(t, tt.want, got, "input %q", tt.input)
		if tt.output != "" {
			assert.Equalf(t, tt.output, buf.String(), "input %q", tt.input)
		}
		v.Free()
	}
}

func TestArithmeticAndPrint(t *testing.T) {
	tests := []vmTestCase{
		{`print 1 + 2;`, InterpretOK, "3\n"},
		{`print "foo" + "bar";`, InterpretOK, "foobar\n"},
		{`print (1 + 2) * 3;`, InterpretOK, "9\n"},
		{`print !false;`, InterpretOK, "true\n"},
		{`print nil;`, InterpretOK, "nil\n"},
	}
	runVMTests(t, tests)
}

// Scenario 5 from spec.md §8: nil is not a number or string.
func TestRuntimeErrorOnNilArithmetic(t *testing.T) {
	tests := []vmTestCase{
		{`var a; a = a + 1;`, InterpretRuntimeError, ""},
	}
	runVMTests(t, tests)
}

// Scenario 6 from spec.md §8: a while loop converges and globals persist.
func TestWhileLoopTerminates(t *testing.T) {
	tests := []vmTestCase{
		{`var i = 0; while (i < 3) { i = i + 1; } print i;`, InterpretOK, "3\n"},
	}
	runVMTests(t, tests)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	tests := []vmTestCase{
		{`print undefinedThing;`, InterpretRuntimeError, ""},
		{`undefinedThing = 1;`, InterpretRuntimeError, ""},
	}
	runVMTests(t, tests)
}

func TestCompileErrorShortCircuitsExecution(t *testing.T) {
	v := New()
	defer v.Free()
	var buf bytes.Buffer
	v.SetOutput(&buf)

	result := v.Interpret(`print 1 +;`)
	require.Equal(t, InterpretCompileError, result)
	assert.Empty(t, buf.String())
}

// Invariant 1 from spec.md §8: stack depth returns to its pre-statement
// level after every complete statement. Exercised indirectly: a long run
// of balanced statements must not overflow or underflow the fixed stack.
func TestStackBalancedAcrossStatements(t *testing.T) {
	src := strings.Repeat(`var x = 1; { var y = x + 1; print y; } `, 50)
	v := New()
	defer v.Free()
	var buf bytes.Buffer
	v.SetOutput(&buf)

	require.Equal(t, InterpretOK, v.Interpret(src))
}

// Invariant 4 from spec.md §8: interned strings compare equal by identity.
func TestStringEqualityIsIdentityAfterInterning(t *testing.T) {
	tests := []vmTestCase{
		{`print "abc" == "abc";`, InterpretOK, "true\n"},
		{`print "abc" == "abd";`, InterpretOK, "false\n"},
	}
	runVMTests(t, tests)
}

func TestShortCircuitAndOr(t *testing.T) {
	tests := []vmTestCase{
		{`print false and (1/0 == 1);`, InterpretOK, "false\n"},
		{`print true or (1/0 == 1);`, InterpretOK, "true\n"},
	}
	runVMTests(t, tests)
}
