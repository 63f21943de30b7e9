package token

var tokenDisplay = map[TokenType]string{
	IDENTIFIER: "identifier",
	STRING:     "string",
	NUMBER:     "number",

	AND:    "'and'",
	CLASS:  "'class'",
	ELSE:   "'else'",
	FALSE:  "'false'",
	FOR:    "'for'",
	FUN:    "'fun'",
	IF:     "'if'",
	NIL:    "'nil'",
	OR:     "'or'",
	PRINT:  "'print'",
	RETURN: "'return'",
	SUPER:  "'super'",
	THIS:   "'this'",
	TRUE:   "'true'",
	VAR:    "'var'",
	WHILE:  "'while'",

	PLUS:  "'+'",
	MINUS: "'-'",
	STAR:  "'*'",
	SLASH: "'/'",
	SEMI:  "';'",
	COMMA: "','",
	DOT:   "'.'",

	GREATER:       "'>'",
	LESS:          "'<'",
	GREATER_EQUAL: "'>='",
	LESS_EQUAL:    "'<='",
	EQUAL_EQUAL:   "'=='",
	BANG_EQUAL:    "'!='",
	ASSIGN:        "'='",
	BANG:          "'!'",

	LPAREN: "'('",
	RPAREN: "')'",
	LBRACE: "'{'",
	RBRACE: "'}'",

	EOF:   "end of file",
	ERROR: "error token",
}

// Display renders a token kind for error messages ("expected ')'" rather
// than "expected RPAREN").
func (t TokenType) Display() string {
	if s, ok := tokenDisplay[t]; ok {
		return s
	}
	return string(t)
}
