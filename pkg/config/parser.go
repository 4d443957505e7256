package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses configuration-dialect text into statements.
type Parser struct {
	lex *Lexer
	buf []LexToken
}

// NewParser creates a parser for the configuration dialect.
func NewParser(input string) *Parser {
	return &Parser{lex: NewLexer(input)}
}

// NewPolicyParser creates a parser for the policy dialect.
func NewPolicyParser(input string) *Parser {
	return &Parser{lex: NewPolicyLexer(input)}
}

func (p *Parser) next() LexToken {
	if len(p.buf) > 0 {
		tok := p.buf[0]
		p.buf = p.buf[1:]
		return tok
	}
	return p.lex.Next()
}

func (p *Parser) peek(i int) LexToken {
	for len(p.buf) <= i {
		p.buf = append(p.buf, p.lex.Next())
	}
	return p.buf[i]
}

// Parse parses the whole input. A parse error aborts the parse; no
// partial statement list is returned alongside an error.
func (p *Parser) Parse() ([]Statement, error) {
	stmts, err := p.parseStatements(false)
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

// parseStatements parses statements until EOF, or until the closing
// brace when inBlock is set.
func (p *Parser) parseStatements(inBlock bool) ([]Statement, error) {
	var stmts []Statement
	for {
		// Skip blank lines and stray separators between statements.
		for p.peek(0).Type == TokenNewline || p.peek(0).Type == TokenComment {
			p.next()
		}
		tok := p.peek(0)
		switch tok.Type {
		case TokenEOF:
			if inBlock {
				return nil, parseErrorf(tok, "unexpected EOF, expected '}'")
			}
			return stmts, nil
		case TokenRBrace:
			if !inBlock {
				return nil, parseErrorf(tok, "unexpected '}'")
			}
			p.next()
			return stmts, nil
		case TokenError:
			return nil, parseErrorf(tok, "%s", tok.Value)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if len(stmt) > 0 {
			stmts = append(stmts, stmt)
		}
	}
}

// parseStatement parses one statement: an optional object path followed
// by an attribute, a group plus attribute, a group plus block, a bare
// group, or a bare block.
func (p *Parser) parseStatement() (Statement, error) {
	var stmt Statement

	// Object path: one or more "class identifier" pairs.
	for p.peek(0).Type == TokenWord && IsObjectClass(p.peek(0).Value) {
		class := p.next()
		id := p.next()
		if !isValueToken(id.Type) {
			return nil, parseErrorf(id, "expected %s identifier, got %s", class.Value, id)
		}
		obj := &Token{Kind: KindObj, Key: []string{class.Value, id.Value}, Line: class.Line, Column: class.Column}
		if id.Type == TokenRule {
			typ, dfl, hasDfl, err := parseRule(id)
			if err != nil {
				return nil, err
			}
			if hasDfl || dfl != "" {
				return nil, parseErrorf(id, "object identifier rule cannot have a default")
			}
			obj.IDType = typ
		} else {
			obj.IDFixed = id.Value
		}
		stmt = append(stmt, obj)
	}

	// Statement body after the object path.
	tok := p.peek(0)
	switch tok.Type {
	case TokenNewline, TokenEOF, TokenRBrace:
		// Pure object path statement.
		if len(stmt) == 0 {
			return stmt, nil
		}
	case TokenLBrace:
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt = append(stmt, block)
	case TokenWord:
		body, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		stmt = append(stmt, body...)
	default:
		return nil, parseErrorf(tok, "unexpected %s", tok)
	}

	// Consume the statement terminator.
	end := p.peek(0)
	switch end.Type {
	case TokenNewline:
		p.next()
	case TokenEOF, TokenRBrace:
	case TokenError:
		return nil, parseErrorf(end, "%s", end.Value)
	default:
		return nil, parseErrorf(end, "unexpected %s at end of statement", end)
	}
	return stmt, nil
}

// parseBody parses the attribute/group tail of a statement:
// attr, group+attr, group+block, or a bare group.
func (p *Parser) parseBody() ([]*Token, error) {
	name := p.next() // TokenWord, checked by the caller

	switch p.peek(0).Type {
	case TokenLBrace:
		// group { ... }
		group := &Token{Kind: KindGroup, Key: []string{name.Value}, Line: name.Line, Column: name.Column}
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return []*Token{group, block}, nil

	case TokenWord, TokenRule, TokenRef:
		second := p.next()
		if isValueToken(p.peek(0).Type) {
			// group attr-name attr-value
			if second.Type != TokenWord {
				return nil, parseErrorf(second, "expected attribute name, got %s", second)
			}
			group := &Token{Kind: KindGroup, Key: []string{name.Value}, Line: name.Line, Column: name.Column}
			attr, err := p.parseAttr(second, p.next())
			if err != nil {
				return nil, err
			}
			return []*Token{group, attr}, nil
		}
		// attr-name attr-value
		attr, err := p.parseAttr(name, second)
		if err != nil {
			return nil, err
		}
		return []*Token{attr}, nil

	case TokenNewline, TokenEOF, TokenRBrace, TokenComment:
		// Bare group.
		group := &Token{Kind: KindGroup, Key: []string{name.Value}, Line: name.Line, Column: name.Column}
		p.skipTrailingComment()
		return []*Token{group}, nil

	default:
		return nil, parseErrorf(p.peek(0), "unexpected %s", p.peek(0))
	}
}

// parseAttr builds an attr token from a name word and a value token
// (word, type rule, or reference rule), capturing a trailing comment in
// the policy dialect.
func (p *Parser) parseAttr(name, val LexToken) (*Token, error) {
	attr := &Token{Kind: KindAttr, Line: name.Line, Column: name.Column}
	switch val.Type {
	case TokenWord:
		attr.Key = []string{name.Value, val.Value}
	case TokenRule:
		typ, dfl, hasDfl, err := parseRule(val)
		if err != nil {
			return nil, err
		}
		attr.Key = []string{name.Value, val.Value}
		attr.ValType = typ
		attr.ValDefault = dfl
		attr.HasDefault = hasDfl
		attr.Required = !hasDfl
	case TokenRef:
		up, path, err := parseRef(val)
		if err != nil {
			return nil, err
		}
		attr.Key = []string{name.Value, "@(" + val.Value + ")"}
		attr.RefUp = up
		attr.RefPath = path
	default:
		return nil, parseErrorf(val, "expected attribute value, got %s", val)
	}
	if p.peek(0).Type == TokenComment {
		attr.Comment = p.next().Value
	}
	return attr, nil
}

func (p *Parser) skipTrailingComment() {
	if p.peek(0).Type == TokenComment {
		p.next()
	}
}

// parseBlock parses "{ statements... }" into a block token.
func (p *Parser) parseBlock() (*Token, error) {
	lbrace := p.next() // {
	stmts, err := p.parseStatements(true)
	if err != nil {
		return nil, err
	}
	return &Token{Kind: KindBlock, Statements: stmts, Line: lbrace.Line, Column: lbrace.Column}, nil
}

func isValueToken(t TokenType) bool {
	return t == TokenWord || t == TokenRule || t == TokenRef
}

// parseRule decodes a %type or %type(default) rule token.
func parseRule(tok LexToken) (typ, dfl string, hasDfl bool, err error) {
	raw := strings.TrimPrefix(tok.Value, "%")
	if i := strings.IndexByte(raw, '('); i >= 0 {
		if !strings.HasSuffix(raw, ")") {
			return "", "", false, parseErrorf(tok, "malformed type rule %q", tok.Value)
		}
		typ = raw[:i]
		dfl = raw[i+1 : len(raw)-1]
		hasDfl = true
	} else {
		typ = raw
	}
	if typ == "" {
		return "", "", false, parseErrorf(tok, "empty type rule")
	}
	return typ, dfl, hasDfl, nil
}

// parseRef decodes an @(N path...) rule token. A leading integer is the
// number of ancestors to climb; without it the search starts at the
// tree root.
func parseRef(tok LexToken) (up int, path [][]string, err error) {
	fields := strings.Fields(tok.Value)
	if len(fields) == 0 {
		return 0, nil, parseErrorf(tok, "empty reference rule")
	}
	up = -1
	if n, nerr := strconv.Atoi(fields[0]); nerr == nil {
		if n < 0 {
			return 0, nil, parseErrorf(tok, "negative up-count in reference rule")
		}
		up = n
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return 0, nil, parseErrorf(tok, "reference rule has no search path")
	}
	return up, groupPattern(fields), nil
}

// groupPattern groups flat pattern words into per-node key patterns
// following the statement skeleton: "class identifier" pairs while the
// word is an object class keyword, then an optional bare group name,
// then name/value pairs. A trailing lone word stays a single-element
// pattern, so "storage fileio disk vm1 path" still addresses the path
// attribute by name.
func groupPattern(words []string) [][]string {
	var path [][]string
	i := 0
	for i+1 < len(words) && IsObjectClass(words[i]) {
		path = append(path, []string{words[i], words[i+1]})
		i += 2
	}
	// An odd tail with more than one word starts with a group name;
	// without this the group word would pair with the attribute name
	// and grouped attributes could never match.
	rest := words[i:]
	if len(rest) > 1 && len(rest)%2 == 1 {
		path = append(path, []string{rest[0]})
		rest = rest[1:]
	}
	for j := 0; j < len(rest); j += 2 {
		if j+1 < len(rest) {
			path = append(path, []string{rest[j], rest[j+1]})
		} else {
			path = append(path, []string{rest[j]})
		}
	}
	return path
}

// ParsePattern parses search-pattern text into a sequence of key
// patterns, one per tree level. Pattern words may contain regular
// expression metacharacters.
func ParsePattern(input string) ([][]string, error) {
	lex := NewLexer(input)
	var words []string
	for {
		tok := lex.Next()
		switch tok.Type {
		case TokenEOF:
			return groupPattern(words), nil
		case TokenNewline:
			if len(words) > 0 && lex.Peek().Type != TokenEOF {
				return nil, parseErrorf(tok, "pattern must be a single statement")
			}
		case TokenWord:
			words = append(words, tok.Value)
		default:
			return nil, parseErrorf(tok, "unexpected %s in pattern", tok)
		}
	}
}

// ParseText is a convenience wrapper parsing configuration-dialect text.
func ParseText(input string) ([]Statement, error) {
	return NewParser(input).Parse()
}

// ParsePolicyText parses policy-dialect text.
func ParsePolicyText(input string) ([]Statement, error) {
	stmts, err := NewPolicyParser(input).Parse()
	if err != nil {
		return nil, err
	}
	for _, stmt := range stmts {
		if err := checkPolicyStatement(stmt); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

// checkPolicyStatement rejects config-dialect attribute values in policy
// files: every policy attribute must carry a type or reference rule.
func checkPolicyStatement(stmt Statement) error {
	for _, tok := range stmt {
		switch tok.Kind {
		case KindAttr:
			if tok.ValType == "" && tok.RefPath == nil {
				return &ParseError{Line: tok.Line, Column: tok.Column,
					Msg: fmt.Sprintf("policy attribute %s must declare a %%type or @(...) rule", tok.Key[0])}
			}
		case KindBlock:
			for _, nested := range tok.Statements {
				if err := checkPolicyStatement(nested); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
