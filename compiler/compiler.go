// Package compiler drives the scanner and emits bytecode directly in
// a single pass, using Pratt (precedence-climbing) parsing.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"vellum-lang/intern"
	"vellum-lang/scanner"
	"vellum-lang/token"
	"vellum-lang/vm"
)

// precedence levels, ascending.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

func (p precedence) next() precedence {
	if p == precPrimary {
		return precPrimary
	}
	return p + 1
}

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[token.Kind]rule

func init() {
	rules = map[token.Kind]rule{
		token.LeftParen:    {prefix: (*Compiler).grouping},
		token.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		token.Plus:         {infix: (*Compiler).binary, precedence: precTerm},
		token.Slash:        {infix: (*Compiler).binary, precedence: precFactor},
		token.Star:         {infix: (*Compiler).binary, precedence: precFactor},
		token.Bang:         {prefix: (*Compiler).unary},
		token.BangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		token.EqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		token.Greater:      {infix: (*Compiler).binary, precedence: precComparison},
		token.GreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		token.Less:         {infix: (*Compiler).binary, precedence: precComparison},
		token.LessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		token.Identifier:   {prefix: (*Compiler).variable},
		token.String:       {prefix: (*Compiler).string},
		token.Number:       {prefix: (*Compiler).number},
		token.False:        {prefix: (*Compiler).literal},
		token.True:         {prefix: (*Compiler).literal},
		token.Nil:          {prefix: (*Compiler).literal},
	}
}

func ruleFor(k token.Kind) rule {
	return rules[k]
}

// parser tracks the current and previous token plus the error-
// recovery flags described alongside it.
type parser struct {
	current   token.Token
	previous  token.Token
	hadError  bool
	panicMode bool
}

// Compiler drives a Scanner and emits into a fresh Chunk. A Compiler
// is constructed fresh for every call to Compile; it borrows the
// Interner for the duration of that call only.
type Compiler struct {
	scanner  *scanner.Scanner
	parser   parser
	chunk    *vm.Chunk
	interner *intern.Interner
	locals   *localScope
	errs     *multierror.Error
}

// Compile compiles source against interner, which must be the same
// instance the resulting Chunk's VM will run against. It returns the
// Chunk and nil on success, or a nil Chunk and a non-nil error
// describing every diagnostic collected (aggregated via
// go-multierror so a caller can report every syntax error instead of
// only the first).
func Compile(source string, interner *intern.Interner) (*vm.Chunk, error) {
	c := &Compiler{
		scanner:  scanner.New(source),
		chunk:    vm.NewChunk(),
		interner: interner,
		locals:   newLocalScope(),
	}

	c.advance()
	for !c.match(token.Eof) {
		c.declaration()
	}
	c.consume(token.Eof, "Expect end of expression.")
	c.chunk.WriteOpcode(vm.OpReturn, c.parser.previous.Line)

	if c.parser.hadError {
		return nil, c.errs.ErrorOrNil()
	}
	return c.chunk, nil
}

// ---- token stream plumbing ----

func (c *Compiler) advance() {
	c.parser.previous = c.parser.current
	for {
		c.parser.current = c.scanner.ScanToken()
		if c.parser.current.Kind != token.Error {
			break
		}
		c.errorAtCurrent(c.parser.current.Lexeme)
	}
}

func (c *Compiler) check(k token.Kind) bool {
	return c.parser.current.Kind == k
}

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, msg string) {
	if c.parser.current.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// ---- error reporting ----

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.parser.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.parser.previous, msg) }

func (c *Compiler) errorAt(t token.Token, msg string) {
	if c.parser.panicMode {
		return
	}
	c.parser.panicMode = true

	where := ""
	switch t.Kind {
	case token.Eof:
		where = " at end"
	case token.Error:
	default:
		where = fmt.Sprintf(" at %s", t.Lexeme)
	}

	c.errs = multierror.Append(c.errs, fmt.Errorf("[line %d] Error%s: %s", t.Line, where, msg))
	c.parser.hadError = true
}

func (c *Compiler) synchronize() {
	c.parser.panicMode = false

	for c.parser.current.Kind != token.Eof {
		if c.parser.previous.Kind == token.Semicolon {
			return
		}
		switch c.parser.current.Kind {
		case token.Class, token.Fun, token.Var, token.For,
			token.If, token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}

// ---- bytecode emission helpers ----

func (c *Compiler) emit(op vm.Opcode) {
	c.chunk.WriteOpcode(op, c.parser.previous.Line)
}

func (c *Compiler) emitJump(op vm.Opcode) int {
	c.chunk.WriteOpcode(op, c.parser.previous.Line)
	c.chunk.WriteByte(0xFF, c.parser.previous.Line)
	c.chunk.WriteByte(0xFF, c.parser.previous.Line)
	return c.chunk.Len() - 2
}

func (c *Compiler) patchJump(from int) {
	jump := c.chunk.Len() - from - 2
	if jump > 0xFFFF {
		c.error("Too much code to jump over.")
		return
	}
	c.chunk.PatchByte(from, byte(jump>>8))
	c.chunk.PatchByte(from+1, byte(jump))
}

func (c *Compiler) emitConstant(v vm.Value) {
	idx, err := c.chunk.AddConstant(v)
	if err != nil {
		c.error("too many constants/locals")
		return
	}
	if werr := c.chunk.WriteMaybeLong(vm.OpConstant, vm.OpConstantLong, idx, c.parser.previous.Line); werr != nil {
		c.error("too many constants/locals")
	}
}

// ---- declarations and statements ----

func (c *Compiler) declaration() {
	if c.match(token.Var) {
		c.varDeclaration()
	} else {
		c.statement()
	}

	if c.parser.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.Equal) {
		c.expression()
	} else {
		c.emit(vm.OpNil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

// parseVariable consumes the variable's name, declares it if inside a
// local scope, and returns the constant-pool index to use for the
// DefineGlobal/GetGlobal/SetGlobal form if it turns out to be global
// (0, unused, if the variable resolves as a local).
func (c *Compiler) parseVariable(errMsg string) int {
	c.consume(token.Identifier, errMsg)
	name := c.parser.previous

	if !c.locals.atTopLevel() {
		c.declareLocal(name)
		return 0
	}

	idx, err := c.chunk.AddConstant(vm.String(c.interner.Intern(name.Lexeme)))
	if err != nil {
		c.error("too many constants/locals")
	}
	return idx
}

func (c *Compiler) declareLocal(name token.Token) {
	if c.locals.count() > maxLocals-1 {
		c.error("Too many local variables in one function.")
		return
	}
	if !c.locals.declare(name) {
		c.error("Already a variable with this name in this scope.")
	}
}

func (c *Compiler) defineVariable(global int) {
	if !c.locals.atTopLevel() {
		c.locals.markInitialized()
		return
	}
	if err := c.chunk.WriteMaybeLong(vm.OpDefineGlobal, vm.OpDefineGlobalLong, global, c.parser.previous.Line); err != nil {
		c.error("too many constants/locals")
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.Print):
		c.printStatement()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.LeftBrace):
		c.locals.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emit(vm.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emit(vm.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(vm.OpJumpIfFalse)
	c.emit(vm.OpPop)
	c.statement()

	elseJump := c.emitJump(vm.OpJump)
	c.patchJump(thenJump)
	c.emit(vm.OpPop)

	if c.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) block() {
	for !c.check(token.RightBrace) && !c.check(token.Eof) {
		c.declaration()
	}
	c.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) endScope() {
	popped := c.locals.endScope()
	for i := 0; i < popped; i++ {
		c.emit(vm.OpPop)
	}
}

// ---- expressions (Pratt parsing) ----

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix := ruleFor(c.parser.previous.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= ruleFor(c.parser.current.Kind).precedence {
		c.advance()
		infix := ruleFor(c.parser.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.Equal) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.parser.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(vm.Num(n))
}

func (c *Compiler) string(_ bool) {
	lexeme := c.parser.previous.Lexeme
	text := lexeme[1 : len(lexeme)-1]
	c.emitConstant(vm.String(c.interner.Intern(text)))
}

func (c *Compiler) literal(_ bool) {
	switch c.parser.previous.Kind {
	case token.False:
		c.emit(vm.OpFalse)
	case token.True:
		c.emit(vm.OpTrue)
	case token.Nil:
		c.emit(vm.OpNil)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	opKind := c.parser.previous.Kind
	c.parsePrecedence(precUnary)

	switch opKind {
	case token.Minus:
		c.emit(vm.OpNegate)
	case token.Bang:
		c.emit(vm.OpNot)
	}
}

func (c *Compiler) binary(_ bool) {
	opKind := c.parser.previous.Kind
	r := ruleFor(opKind)
	c.parsePrecedence(r.precedence.next())

	switch opKind {
	case token.Plus:
		c.emit(vm.OpAdd)
	case token.Minus:
		c.emit(vm.OpSubtract)
	case token.Star:
		c.emit(vm.OpMultiply)
	case token.Slash:
		c.emit(vm.OpDivide)
	case token.EqualEqual:
		c.emit(vm.OpEqual)
	case token.BangEqual:
		c.emit(vm.OpEqual)
		c.emit(vm.OpNot)
	case token.Less:
		c.emit(vm.OpLess)
	case token.LessEqual:
		c.emit(vm.OpGreater)
		c.emit(vm.OpNot)
	case token.Greater:
		c.emit(vm.OpGreater)
	case token.GreaterEqual:
		c.emit(vm.OpLess)
		c.emit(vm.OpNot)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.previous, canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, getOpLong, setOp, setOpLong vm.Opcode
	var idx int

	if slot, ok := c.locals.resolve(name.Lexeme); ok {
		if c.locals.isUninitialized(slot) {
			c.error("Can't read local variable in its own initializer.")
		}
		getOp, getOpLong = vm.OpGetLocal, vm.OpGetLocalLong
		setOp, setOpLong = vm.OpSetLocal, vm.OpSetLocalLong
		idx = slot
	} else {
		constIdx, err := c.chunk.AddConstant(vm.String(c.interner.Intern(name.Lexeme)))
		if err != nil {
			c.error("too many constants/locals")
		}
		getOp, getOpLong = vm.OpGetGlobal, vm.OpGetGlobalLong
		setOp, setOpLong = vm.OpSetGlobal, vm.OpSetGlobalLong
		idx = constIdx
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		if err := c.chunk.WriteMaybeLong(setOp, setOpLong, idx, name.Line); err != nil {
			c.error("too many constants/locals")
		}
		return
	}
	if err := c.chunk.WriteMaybeLong(getOp, getOpLong, idx, name.Line); err != nil {
		c.error("too many constants/locals")
	}
}
