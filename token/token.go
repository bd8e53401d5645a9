// Package token defines the lexical tokens produced by the scanner and
// consumed by the compiler.
package token

// Kind identifies the lexical category of a Token.
type Kind int

const (
	// Single-character punctuation
	LeftParen Kind = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star

	// One or two character operators
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// Literals
	Identifier
	String
	Number

	// Keywords
	And
	Class
	Else
	False
	For
	Fun
	If
	Nil
	Or
	Print
	Return
	Super
	This
	True
	Var
	While

	Error
	Eof
)

var names = map[Kind]string{
	LeftParen: "LeftParen", RightParen: "RightParen",
	LeftBrace: "LeftBrace", RightBrace: "RightBrace",
	Comma: "Comma", Dot: "Dot", Minus: "Minus", Plus: "Plus",
	Semicolon: "Semicolon", Slash: "Slash", Star: "Star",
	Bang: "Bang", BangEqual: "BangEqual",
	Equal: "Equal", EqualEqual: "EqualEqual",
	Greater: "Greater", GreaterEqual: "GreaterEqual",
	Less: "Less", LessEqual: "LessEqual",
	Identifier: "Identifier", String: "String", Number: "Number",
	And: "And", Class: "Class", Else: "Else", False: "False",
	For: "For", Fun: "Fun", If: "If", Nil: "Nil", Or: "Or",
	Print: "Print", Return: "Return", Super: "Super", This: "This",
	True: "True", Var: "Var", While: "While",
	Error: "Error", Eof: "Eof",
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return "Unknown"
}

// Token is a lexeme borrowed from the source text plus its originating
// line. Error tokens carry their diagnostic message in Lexeme.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}

// keywords is the closed set the scanner recognizes after reading a
// maximal identifier run.
var keywords = map[string]Kind{
	"and": And, "class": Class, "else": Else, "false": False,
	"for": For, "fun": Fun, "if": If, "nil": Nil, "or": Or,
	"print": Print, "return": Return, "super": Super, "this": This,
	"true": True, "var": Var, "while": While,
}

// LookupIdent returns the keyword Kind for ident, or Identifier if ident
// is not a reserved word.
func LookupIdent(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return Identifier
}
