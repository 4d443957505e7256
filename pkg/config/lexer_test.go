package config

import (
	"testing"
)

func TestLexerConfigTokens(t *testing.T) {
	input := `storage fileio disk vm1 {
    path "/tmp/my file.img"
    size 1MB
}`
	lex := NewLexer(input)
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenWord, "storage"},
		{TokenWord, "fileio"},
		{TokenWord, "disk"},
		{TokenWord, "vm1"},
		{TokenLBrace, "{"},
		{TokenNewline, ";"},
		{TokenWord, "path"},
		{TokenWord, "/tmp/my file.img"},
		{TokenNewline, ";"},
		{TokenWord, "size"},
		{TokenWord, "1MB"},
		{TokenNewline, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	for i, exp := range expected {
		tok := lex.Next()
		if tok.Type != exp.typ {
			t.Errorf("token %d: expected type %s, got %s (value=%q)", i, exp.typ, tok.Type, tok.Value)
		}
		if exp.val != "" && tok.Value != exp.val {
			t.Errorf("token %d: expected value %q, got %q", i, exp.val, tok.Value)
		}
	}
}

func TestLexerSemicolonSeparator(t *testing.T) {
	lex := NewLexer("foo bar; baz qux")
	expected := []TokenType{
		TokenWord, TokenWord, TokenNewline, TokenWord, TokenWord, TokenEOF,
	}
	for i, typ := range expected {
		tok := lex.Next()
		if tok.Type != typ {
			t.Errorf("token %d: expected %s, got %s (value=%q)", i, typ, tok.Type, tok.Value)
		}
	}
}

func TestLexerCommentsSkippedInConfig(t *testing.T) {
	lex := NewLexer("foo bar # trailing words\nbaz")
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenWord, "foo"},
		{TokenWord, "bar"},
		{TokenNewline, ";"},
		{TokenWord, "baz"},
		{TokenEOF, ""},
	}
	for i, exp := range expected {
		tok := lex.Next()
		if tok.Type != exp.typ || (exp.val != "" && tok.Value != exp.val) {
			t.Errorf("token %d: expected %s %q, got %s %q", i, exp.typ, exp.val, tok.Type, tok.Value)
		}
	}
}

func TestLexerQuotedStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"plain"`, "plain"},
		{`"with space"`, "with space"},
		{`"a \"b\" c"`, `a "b" c`},
		{`"back\\slash"`, `back\slash`},
		{`"line\nbreak"`, "line\nbreak"},
		{`'single quoted'`, "single quoted"},
		{`""`, ""},
	}
	for _, tt := range tests {
		tok := NewLexer(tt.input).Next()
		if tok.Type != TokenWord {
			t.Errorf("%q: expected word, got %s (%q)", tt.input, tok.Type, tok.Value)
			continue
		}
		if tok.Value != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.want, tok.Value)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tok := NewLexer(`"never closed`).Next()
	if tok.Type != TokenError {
		t.Fatalf("expected error token, got %s (%q)", tok.Type, tok.Value)
	}
	tok = NewLexer("\"broken\nword").Next()
	if tok.Type != TokenError {
		t.Fatalf("string across newline: expected error token, got %s", tok.Type)
	}
}

func TestLexerBareWords(t *testing.T) {
	// Device paths, WWNs, sizes and regex patterns must lex as single
	// bare words.
	words := []string{
		"/dev/sdb",
		"iqn.2003-01.org.example:disk1",
		"1.0MB",
		"0.0.0.0:3260",
		".*",
		"fileio:vm1",
	}
	for _, w := range words {
		tok := NewLexer(w).Next()
		if tok.Type != TokenWord || tok.Value != w {
			t.Errorf("%q: expected word %q, got %s %q", w, w, tok.Type, tok.Value)
		}
	}
}

func TestLexerPolicyRules(t *testing.T) {
	lex := NewPolicyLexer("buffered %bool(yes) # Buffered I/O")
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenWord, "buffered"},
		{TokenRule, "%bool(yes)"},
		{TokenComment, "Buffered I/O"},
		{TokenEOF, ""},
	}
	for i, exp := range expected {
		tok := lex.Next()
		if tok.Type != exp.typ || (exp.val != "" && tok.Value != exp.val) {
			t.Errorf("token %d: expected %s %q, got %s %q", i, exp.typ, exp.val, tok.Type, tok.Value)
		}
	}
}

func TestLexerPolicyRef(t *testing.T) {
	lex := NewPolicyLexer("target_lun @(2 lun .*)")
	tok := lex.Next()
	if tok.Type != TokenWord || tok.Value != "target_lun" {
		t.Fatalf("expected word target_lun, got %s %q", tok.Type, tok.Value)
	}
	tok = lex.Next()
	if tok.Type != TokenRef {
		t.Fatalf("expected reference rule, got %s %q", tok.Type, tok.Value)
	}
	if tok.Value != "2 lun .*" {
		t.Errorf("expected ref value %q, got %q", "2 lun .*", tok.Value)
	}
}

func TestLexerPolicySyntaxInertInConfig(t *testing.T) {
	// % and @ are ordinary word characters outside the policy dialect.
	tok := NewLexer("%bool(yes)").Next()
	if tok.Type != TokenWord || tok.Value != "%bool(yes)" {
		t.Errorf("expected word %%bool(yes), got %s %q", tok.Type, tok.Value)
	}
	tok = NewLexer("user@host").Next()
	if tok.Type != TokenWord || tok.Value != "user@host" {
		t.Errorf("expected word user@host, got %s %q", tok.Type, tok.Value)
	}
}

func TestLexerPolicyRuleErrors(t *testing.T) {
	tok := NewPolicyLexer("%bool(yes").Next()
	if tok.Type != TokenError {
		t.Errorf("unterminated rule: expected error, got %s %q", tok.Type, tok.Value)
	}
	tok = NewPolicyLexer("@(2 lun .*").Next()
	if tok.Type != TokenError {
		t.Errorf("unterminated ref: expected error, got %s %q", tok.Type, tok.Value)
	}
	tok = NewPolicyLexer("@nope").Next()
	if tok.Type != TokenError {
		t.Errorf("@ without paren: expected error, got %s %q", tok.Type, tok.Value)
	}
}

func TestLexerLineColumn(t *testing.T) {
	lex := NewLexer("foo\n  bar")
	tok := lex.Next()
	if tok.Line != 1 || tok.Column != 1 {
		t.Errorf("foo: expected 1:1, got %d:%d", tok.Line, tok.Column)
	}
	lex.Next() // newline
	tok = lex.Next()
	if tok.Line != 2 || tok.Column != 3 {
		t.Errorf("bar: expected 2:3, got %d:%d", tok.Line, tok.Column)
	}
}

func TestLexerPeek(t *testing.T) {
	lex := NewLexer("foo bar")
	if p := lex.Peek(); p.Value != "foo" {
		t.Fatalf("peek: expected foo, got %q", p.Value)
	}
	if n := lex.Next(); n.Value != "foo" {
		t.Fatalf("next after peek: expected foo, got %q", n.Value)
	}
	if n := lex.Next(); n.Value != "bar" {
		t.Fatalf("expected bar, got %q", n.Value)
	}
}
