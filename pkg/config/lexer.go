// Package config implements the LIO configuration dialects and data model:
// the configuration, policy and search-pattern grammars, the keyed
// configuration tree, and the policy-driven validator.
package config

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenLBrace  TokenType = iota // {
	TokenRBrace                   // }
	TokenNewline                  // statement terminator: newline or ;
	TokenWord                     // bare or quoted string
	TokenRule                     // policy type rule: %type or %type(default)
	TokenRef                      // policy reference rule: @(N path...)
	TokenComment                  // trailing # comment (policy dialect only)
	TokenEOF
	TokenError
)

func (t TokenType) String() string {
	switch t {
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenNewline:
		return "end of statement"
	case TokenWord:
		return "string"
	case TokenRule:
		return "type rule"
	case TokenRef:
		return "reference rule"
	case TokenComment:
		return "comment"
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "error"
	default:
		return "unknown"
	}
}

// LexToken is a single lexer token.
type LexToken struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

func (t LexToken) String() string {
	if t.Type == TokenWord || t.Type == TokenRule || t.Type == TokenRef {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Lexer tokenizes configuration text. The same lexer serves all three
// dialects; policyRules enables %type/@(...) rules and trailing-comment
// capture for the policy dialect.
type Lexer struct {
	input       string
	pos         int
	line        int
	column      int
	policyRules bool
}

// NewLexer creates a Lexer for the configuration and pattern dialects.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1}
}

// NewPolicyLexer creates a Lexer for the policy dialect.
func NewPolicyLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1, policyRules: true}
}

// Next returns the next token, advancing the position.
func (l *Lexer) Next() LexToken {
	l.skipHorizontalSpace()

	if l.pos >= len(l.input) {
		return LexToken{Type: TokenEOF, Line: l.line, Column: l.column}
	}

	ch := l.input[l.pos]
	line, col := l.line, l.column

	switch ch {
	case '\n', '\r', ';':
		l.advance()
		return LexToken{Type: TokenNewline, Value: ";", Line: line, Column: col}
	case '{':
		l.advance()
		return LexToken{Type: TokenLBrace, Value: "{", Line: line, Column: col}
	case '}':
		l.advance()
		return LexToken{Type: TokenRBrace, Value: "}", Line: line, Column: col}
	case '#':
		comment := l.readComment()
		if l.policyRules {
			return LexToken{Type: TokenComment, Value: comment, Line: line, Column: col}
		}
		return l.Next()
	case '"', '\'':
		return l.readString(ch, line, col)
	case '%':
		if l.policyRules {
			return l.readRule(line, col)
		}
	case '@':
		if l.policyRules {
			return l.readRef(line, col)
		}
	}

	if isWordChar(ch) {
		return l.readWord(line, col)
	}
	l.advance()
	return LexToken{
		Type:   TokenError,
		Value:  fmt.Sprintf("unexpected character: %c", ch),
		Line:   line,
		Column: col,
	}
}

// Peek returns the next token without advancing.
func (l *Lexer) Peek() LexToken {
	savedPos, savedLine, savedCol := l.pos, l.line, l.column
	tok := l.Next()
	l.pos, l.line, l.column = savedPos, savedLine, savedCol
	return tok
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

// skipHorizontalSpace skips spaces and tabs only. Newlines terminate
// statements and are produced as tokens.
func (l *Lexer) skipHorizontalSpace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ' ' || ch == '\t' {
			l.advance()
			continue
		}
		break
	}
}

// readComment consumes "# ..." up to (not including) the newline.
func (l *Lexer) readComment() string {
	l.advance() // #
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
	return strings.TrimSpace(l.input[start:l.pos])
}

func (l *Lexer) readString(quote byte, line, col int) LexToken {
	l.advance() // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.advance()
			switch l.input[l.pos] {
			case quote:
				b.WriteByte(quote)
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte('\\')
				b.WriteByte(l.input[l.pos])
			}
			l.advance()
			continue
		}
		if ch == quote {
			l.advance()
			return LexToken{Type: TokenWord, Value: b.String(), Line: line, Column: col}
		}
		if ch == '\n' {
			break
		}
		b.WriteByte(ch)
		l.advance()
	}
	return LexToken{Type: TokenError, Value: "unterminated string", Line: line, Column: col}
}

func (l *Lexer) readWord(line, col int) LexToken {
	start := l.pos
	for l.pos < len(l.input) && isWordChar(l.input[l.pos]) {
		l.advance()
	}
	return LexToken{Type: TokenWord, Value: l.input[start:l.pos], Line: line, Column: col}
}

// readRule reads a %type or %type(default) policy rule as one token,
// keeping the leading %.
func (l *Lexer) readRule(line, col int) LexToken {
	start := l.pos
	l.advance() // %
	for l.pos < len(l.input) && isWordChar(l.input[l.pos]) && l.input[l.pos] != '(' {
		l.advance()
	}
	if l.pos < len(l.input) && l.input[l.pos] == '(' {
		for l.pos < len(l.input) && l.input[l.pos] != ')' && l.input[l.pos] != '\n' {
			l.advance()
		}
		if l.pos >= len(l.input) || l.input[l.pos] != ')' {
			return LexToken{Type: TokenError, Value: "unterminated type rule", Line: line, Column: col}
		}
		l.advance() // )
	}
	return LexToken{Type: TokenRule, Value: l.input[start:l.pos], Line: line, Column: col}
}

// readRef reads an @(N path...) reference rule; Value is the text inside
// the parentheses.
func (l *Lexer) readRef(line, col int) LexToken {
	l.advance() // @
	if l.pos >= len(l.input) || l.input[l.pos] != '(' {
		return LexToken{Type: TokenError, Value: "expected ( after @", Line: line, Column: col}
	}
	l.advance() // (
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != ')' && l.input[l.pos] != '\n' {
		l.advance()
	}
	if l.pos >= len(l.input) || l.input[l.pos] != ')' {
		return LexToken{Type: TokenError, Value: "unterminated reference rule", Line: line, Column: col}
	}
	value := l.input[start:l.pos]
	l.advance() // )
	return LexToken{Type: TokenRef, Value: strings.TrimSpace(value), Line: line, Column: col}
}

// isWordChar returns true if ch is valid in a bare (unquoted) word.
// Bare words exclude whitespace, braces, quotes, comments and the
// statement separator; everything else is allowed so that device paths
// (/dev/sdb), WWNs (iqn.2003-01.org.example:disk), sizes (1.0MB),
// portal addresses (0.0.0.0:3260) and search patterns (.*) lex as
// single words.
func isWordChar(ch byte) bool {
	if ch <= ' ' || ch == 0x7f {
		return false
	}
	switch ch {
	case '{', '}', '#', ';', '\'', '"':
		return false
	}
	// % and @ are legal in config values; they are special only at the
	// start of a policy-dialect token.
	return true
}
