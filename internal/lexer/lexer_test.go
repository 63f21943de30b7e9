package lexer

import (
	"loxvm/internal/token"
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `var a = 1;
var b = "hi there";
while (a < 3) {
  a = a + 1;
}
if (a == 3) {
  print a;
} else {
  print nil;
}
!a != true
a <= 2 >= 1
// a trailing comment
`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.VAR, "var"},
		{token.IDENTIFIER, "a"},
		{token.ASSIGN, "="},
		{token.NUMBER, "1"},
		{token.SEMI, ";"},
		{token.VAR, "var"},
		{token.IDENTIFIER, "b"},
		{token.ASSIGN, "="},
		{token.STRING, "hi there"},
		{token.SEMI, ";"},
		{token.WHILE, "while"},
		{token.LPAREN, "("},
		{token.IDENTIFIER, "a"},
		{token.LESS, "<"},
		{token.NUMBER, "3"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.IDENTIFIER, "a"},
		{token.ASSIGN, "="},
		{token.IDENTIFIER, "a"},
		{token.PLUS, "+"},
		{token.NUMBER, "1"},
		{token.SEMI, ";"},
		{token.RBRACE, "}"},
		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.IDENTIFIER, "a"},
		{token.EQUAL_EQUAL, "=="},
		{token.NUMBER, "3"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.PRINT, "print"},
		{token.IDENTIFIER, "a"},
		{token.SEMI, ";"},
		{token.RBRACE, "}"},
		{token.ELSE, "else"},
		{token.LBRACE, "{"},
		{token.PRINT, "print"},
		{token.NIL, "nil"},
		{token.SEMI, ";"},
		{token.RBRACE, "}"},
		{token.BANG, "!"},
		{token.IDENTIFIER, "a"},
		{token.BANG_EQUAL, "!="},
		{token.TRUE, "true"},
		{token.IDENTIFIER, "a"},
		{token.LESS_EQUAL, "<="},
		{token.NUMBER, "2"},
		{token.GREATER_EQUAL, ">="},
		{token.NUMBER, "1"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestUnterminatedStringAndIllegalChar(t *testing.T) {
	l := New(`"unterminated`)
	tok := l.NextToken()
	if tok.Type != token.ERROR {
		t.Fatalf("expected ERROR, got %s", tok.Type)
	}

	l = New("@")
	tok = l.NextToken()
	if tok.Type != token.ERROR {
		t.Fatalf("expected ERROR for illegal char, got %s", tok.Type)
	}
}

func TestNumberWithFraction(t *testing.T) {
	l := New("1.5 2.")
	tok := l.NextToken()
	if tok.Type != token.NUMBER || tok.Literal != "1.5" {
		t.Fatalf("expected NUMBER 1.5, got %s %q", tok.Type, tok.Literal)
	}
	// "2." is not a valid fractional number (no digit after the dot), so the
	// lexer should scan "2" and leave the '.' for a separate DOT token.
	tok = l.NextToken()
	if tok.Type != token.NUMBER || tok.Literal != "2" {
		t.Fatalf("expected NUMBER 2, got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != token.DOT {
		t.Fatalf("expected DOT, got %s", tok.Type)
	}
}
