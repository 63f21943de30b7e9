// Package compiler is the single-pass Pratt compiler (spec.md §4.4):
// scanning, parsing, name resolution and code emission fused into one
// streaming traversal over the token stream, with no intermediate AST.
package compiler

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"loxvm/internal/chunk"
	"loxvm/internal/lexer"
	"loxvm/internal/token"
	"loxvm/internal/value"
	"loxvm/internal/vmlog"
)

const uint8Count = math.MaxUint8 + 1

// Precedence is the Pratt ladder, low to high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[token.TokenType]parseRule

func init() {
	rules = map[token.TokenType]parseRule{
		token.LPAREN:        {(*Compiler).grouping, nil, PrecNone},
		token.MINUS:         {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		token.PLUS:          {nil, (*Compiler).binary, PrecTerm},
		token.SLASH:         {nil, (*Compiler).binary, PrecFactor},
		token.STAR:          {nil, (*Compiler).binary, PrecFactor},
		token.BANG:          {(*Compiler).unary, nil, PrecNone},
		token.BANG_EQUAL:    {nil, (*Compiler).binary, PrecEquality},
		token.EQUAL_EQUAL:   {nil, (*Compiler).binary, PrecEquality},
		token.GREATER:       {nil, (*Compiler).binary, PrecComparison},
		token.GREATER_EQUAL: {nil, (*Compiler).binary, PrecComparison},
		token.LESS:          {nil, (*Compiler).binary, PrecComparison},
		token.LESS_EQUAL:    {nil, (*Compiler).binary, PrecComparison},
		token.IDENTIFIER:    {(*Compiler).variable, nil, PrecNone},
		token.STRING:        {(*Compiler).string_, nil, PrecNone},
		token.NUMBER:        {(*Compiler).number, nil, PrecNone},
		token.AND:           {nil, (*Compiler).and_, PrecAnd},
		token.OR:            {nil, (*Compiler).or_, PrecOr},
		token.FALSE:         {(*Compiler).literal, nil, PrecNone},
		token.TRUE:          {(*Compiler).literal, nil, PrecNone},
		token.NIL:           {(*Compiler).literal, nil, PrecNone},
	}
}

func getRule(t token.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{nil, nil, PrecNone}
}

// local models one lexical slot: its declaring token and the scope depth
// at which it became initialized. depthUninitialized marks a local whose
// initializer is still being compiled.
type local struct {
	name  token.Token
	depth int
}

const depthUninitialized = -1

// Compiler is the single active compilation instance (spec.md §3): the
// token cursor, the chunk under construction, and the locals/scope
// tracking that links compile-time slot numbers to run-time stack
// positions.
type Compiler struct {
	lex *lexer.Lexer

	current  token.Token
	previous token.Token

	chunk *chunk.Chunk

	locals     [uint8Count]local
	localCount int
	scopeDepth int

	hadError  bool
	panicMode bool
	errors    *multierror.Error
}

// New compiles source into a chunk. It returns the Compiler, whose Chunk
// method gives the compiled chunk, and a non-nil error (accumulated via
// go-multierror) if compilation failed; per
// spec.md §7, a failed compile never attempts execution.
func New(source string) (*Compiler, error) {
	c := &Compiler{
		lex:   lexer.New(source),
		chunk: chunk.New(),
	}
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.endCompiler()
	return c, c.errors.ErrorOrNil()
}

func (c *Compiler) Chunk() *chunk.Chunk { return c.chunk }

/* token cursor */

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != token.ERROR {
			break
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) check(t token.TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.TokenType, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

/* emission */

func (c *Compiler) emitByte(b byte) {
	c.chunk.Write(b, c.previous.Line)
}

func (c *Compiler) emitBytes(a, b byte) {
	c.emitByte(a)
	c.emitByte(b)
}

func (c *Compiler) emitOp(op chunk.OpCode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitReturn() {
	c.emitOp(chunk.OP_RETURN)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk.AddConstant(v)
	if idx > math.MaxUint8 {
		c.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitBytes(byte(chunk.OP_CONSTANT), c.makeConstant(v))
}

// emitJump writes the opcode plus a two-byte placeholder, returning the
// placeholder's offset for a later patchJump.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk.Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk.Code) - offset - 2
	if jump > math.MaxUint16 {
		c.error("too much code to jump over")
		return
	}
	c.chunk.Code[offset] = byte(jump >> 8 & 0xff)
	c.chunk.Code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OP_LOOP)
	offset := len(c.chunk.Code) - loopStart + 2
	if offset > math.MaxUint16 {
		c.error("loop body too large")
		return
	}
	c.emitByte(byte(offset >> 8 & 0xff))
	c.emitByte(byte(offset & 0xff))
}

func (c *Compiler) endCompiler() {
	c.emitReturn()
	vmlog.WithField("bytes", len(c.chunk.Code)).Debug("compiled chunk")
}

/* scope */

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

func (c *Compiler) endScope() {
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		c.emitOp(chunk.OP_POP)
		c.localCount--
	}
}

/* Pratt core */

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("expected an expression")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.ASSIGN) {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

/* expression parselets */

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(value.NewNumber(n))
}

func (c *Compiler) string_(_ bool) {
	c.emitConstant(c.internedString(c.previous.Literal))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Type {
	case token.FALSE:
		c.emitOp(chunk.OP_FALSE)
	case token.TRUE:
		c.emitOp(chunk.OP_TRUE)
	case token.NIL:
		c.emitOp(chunk.OP_NIL)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RPAREN, "expect ')' after expression")
}

func (c *Compiler) unary(_ bool) {
	op := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch op {
	case token.BANG:
		c.emitOp(chunk.OP_NOT)
	case token.MINUS:
		c.emitOp(chunk.OP_NEGATE)
	}
}

func (c *Compiler) binary(_ bool) {
	op := c.previous.Type
	rule := getRule(op)
	c.parsePrecedence(rule.precedence + 1)

	switch op {
	case token.BANG_EQUAL:
		c.emitBytes(byte(chunk.OP_EQUAL), byte(chunk.OP_NOT))
	case token.EQUAL_EQUAL:
		c.emitOp(chunk.OP_EQUAL)
	case token.GREATER:
		c.emitOp(chunk.OP_GREATER)
	case token.GREATER_EQUAL:
		c.emitBytes(byte(chunk.OP_LESS), byte(chunk.OP_NOT))
	case token.LESS:
		c.emitOp(chunk.OP_LESS)
	case token.LESS_EQUAL:
		c.emitBytes(byte(chunk.OP_GREATER), byte(chunk.OP_NOT))
	case token.PLUS:
		c.emitOp(chunk.OP_ADD)
	case token.MINUS:
		c.emitOp(chunk.OP_SUBTRACT)
	case token.STAR:
		c.emitOp(chunk.OP_MULTIPLY)
	case token.SLASH:
		c.emitOp(chunk.OP_DIVIDE)
	}
}

func (c *Compiler) and_(_ bool) {
	endJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(_ bool) {
	elseJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	endJump := c.emitJump(chunk.OP_JUMP)
	c.patchJump(elseJump)
	c.emitOp(chunk.OP_POP)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	arg, ok := c.resolveLocal(name)
	if ok {
		getOp, setOp = chunk.OP_GET_LOCAL, chunk.OP_SET_LOCAL
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = chunk.OP_GET_GLOBAL, chunk.OP_SET_GLOBAL
	}

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emitBytes(byte(setOp), arg)
	} else {
		c.emitBytes(byte(getOp), arg)
	}
}

/* name resolution */

func (c *Compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(c.internedString(name.Literal))
}

// internedString allocates a fresh, unshared string object per call: the
// compiler has no access to the VM's intern table, so true interning
// happens once at runtime when the constant is first loaded by a value
// table operation (globals lookups compare by content via the VM's own
// interner). This keeps the compiler decoupled from VM lifetime, matching
// spec.md §5's ownership split between chunk and VM.
func (c *Compiler) internedString(s string) value.Value {
	return value.NewObj(&value.Object{Kind: value.ObjString, Str: s})
}

func (c *Compiler) resolveLocal(name token.Token) (byte, bool) {
	for i := c.localCount - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.name.Literal == name.Literal {
			if l.depth == depthUninitialized {
				c.error("can't read local variable in its own initializer")
			}
			return byte(i), true
		}
	}
	return 0, false
}

func (c *Compiler) addLocal(name token.Token) {
	if c.localCount == uint8Count {
		c.error("too many local variables in function")
		return
	}
	c.locals[c.localCount] = local{name: name, depth: depthUninitialized}
	c.localCount++
}

func (c *Compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.previous
	for i := c.localCount - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != depthUninitialized && l.depth < c.scopeDepth {
			break
		}
		if l.name.Literal == name.Literal {
			c.error("already a variable with this name in this scope")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) parseVariable(msg string) byte {
	c.consume(token.IDENTIFIER, msg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) markInitialized() {
	c.locals[c.localCount-1].depth = c.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitBytes(byte(chunk.OP_DEF_GLOBAL), global)
}

/* declarations & statements */

func (c *Compiler) declaration() {
	if c.match(token.VAR) {
		c.varDeclaration()
	} else {
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("expect variable name")

	if c.match(token.ASSIGN) {
		c.expression()
	} else {
		c.emitOp(chunk.OP_NIL)
	}
	c.consume(token.SEMI, "expect ';' after variable declaration")

	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMI, "expect ';' after value")
	c.emitOp(chunk.OP_PRINT)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMI, "expect ';' after expression")
	c.emitOp(chunk.OP_POP)
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expect '}' after block")
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expect '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after condition")

	thenJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)
	c.statement()

	elseJump := c.emitJump(chunk.OP_JUMP)
	c.patchJump(thenJump)
	c.emitOp(chunk.OP_POP)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.consume(token.LPAREN, "expect '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after condition")

	exitJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OP_POP)
}

/* error handling */

func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMI {
			return
		}
		switch c.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

func (c *Compiler) error(msg string) {
	c.errorAt(c.previous, msg)
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var where string
	switch tok.Type {
	case token.EOF:
		where = "at end"
	case token.ERROR:
		where = ""
	default:
		where = fmt.Sprintf("at %s", tok.Type.Display())
	}

	var text string
	if where == "" {
		text = fmt.Sprintf("[line %d] Error: %s", tok.Line, msg)
	} else {
		text = fmt.Sprintf("[line %d] Error %s: %s", tok.Line, where, msg)
	}
	c.errors = multierror.Append(c.errors, fmt.Errorf("%s", text))
}
