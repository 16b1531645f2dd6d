// Package suite reads batches of expressions with expected outcomes from
// YAML or JSON documents and checks them against an Engine.
//
// A suite document looks like:
//
//	name: arithmetic
//	cases:
//	  - name: precedence
//	    expr: 1 + 2 * 3
//	    want: 7
//	    ast: (1 + (2 * 3))
//	  - expr: 1 / 0
//	    error: DivisionByZero
//
// want is a number or a bool. error is an error kind (DivisionByZero,
// UnmatchedParen, ...) or a stage (lex, parse, eval). Each case needs one
// of the two. ast is optional: any text that parses to the expected tree,
// compared in the form expr.Format prints.
package suite

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/types"
)

// MaxSourceSize is the maximum suite document size in bytes.
const MaxSourceSize = 1 << 20

// Suite is a named list of cases.
type Suite struct {
	Name  string
	Cases []Case
}

// Case is one expression and its expected outcome.
type Case struct {
	Name      string
	Expr      string
	Want      *types.Value
	WantError string
	WantAST   string
	Line      int
}

// Label returns the case name, or the expression when unnamed.
func (c Case) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Expr
}

// ParseError is a malformed suite document.
type ParseError struct {
	Message  string
	Location string // e.g. "case 3 (line 12)"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("suite error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("suite error: %s", e.Message)
}

// ParseFile reads and parses the suite at path. The file name is used as
// the suite name when the document has none.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// Parse parses a YAML or JSON suite document.
func Parse(source []byte) (*Suite, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("suite size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, &ParseError{Message: "empty suite"}
	}

	root := raw.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "suite must be a mapping"}
	}

	s := &Suite{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		val := root.Content[i+1]

		switch key {
		case "name":
			if val.Kind != yaml.ScalarNode {
				return nil, &ParseError{Message: "name must be a string", Location: lineOf(val)}
			}
			s.Name = val.Value
		case "cases":
			cases, err := parseCases(val)
			if err != nil {
				return nil, err
			}
			s.Cases = cases
		default:
			return nil, &ParseError{
				Message:  fmt.Sprintf("unknown key '%s'", key),
				Location: lineOf(root.Content[i]),
			}
		}
	}

	if len(s.Cases) == 0 {
		return nil, &ParseError{Message: "suite must have at least one case"}
	}
	return s, nil
}

func parseCases(node *yaml.Node) ([]Case, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Message: "cases must be a sequence", Location: lineOf(node)}
	}

	cases := make([]Case, 0, len(node.Content))
	for i, item := range node.Content {
		c, err := parseCase(item, fmt.Sprintf("case %d (line %d)", i+1, item.Line))
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func parseCase(node *yaml.Node, loc string) (Case, error) {
	if node.Kind != yaml.MappingNode {
		return Case{}, &ParseError{Message: "case must be a mapping", Location: loc}
	}

	c := Case{Line: node.Line}
	hasExpr := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		if key != "want" && val.Kind != yaml.ScalarNode {
			return Case{}, &ParseError{Message: fmt.Sprintf("'%s' must be a scalar", key), Location: loc}
		}

		switch key {
		case "name":
			c.Name = val.Value
		case "expr":
			c.Expr = val.Value
			hasExpr = true
		case "want":
			v, err := parseWant(val)
			if err != nil {
				return Case{}, &ParseError{Message: err.Error(), Location: loc}
			}
			c.Want = &v
		case "error":
			c.WantError = strings.TrimSpace(val.Value)
		case "ast":
			tree, err := expr.ParseExpression(val.Value)
			if err != nil {
				return Case{}, &ParseError{Message: fmt.Sprintf("invalid ast: %v", err), Location: loc}
			}
			c.WantAST = expr.Format(tree)
		default:
			return Case{}, &ParseError{Message: fmt.Sprintf("unknown key '%s' in case", key), Location: loc}
		}
	}

	switch {
	case !hasExpr:
		return Case{}, &ParseError{Message: "case must have 'expr'", Location: loc}
	case c.Want == nil && c.WantError == "":
		return Case{}, &ParseError{Message: "case must have 'want' or 'error'", Location: loc}
	case c.Want != nil && c.WantError != "":
		return Case{}, &ParseError{Message: "case cannot have both 'want' and 'error'", Location: loc}
	case c.WantAST != "" && c.WantError != "":
		return Case{}, &ParseError{Message: "case cannot have both 'ast' and 'error'", Location: loc}
	}
	return c, nil
}

func parseWant(node *yaml.Node) (types.Value, error) {
	if node.Kind != yaml.ScalarNode {
		return types.Value{}, fmt.Errorf("want must be a number or a bool")
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return types.Value{}, fmt.Errorf("invalid want: %v", err)
	}
	v, err := types.FromGo(raw)
	if err != nil {
		return types.Value{}, fmt.Errorf("want must be a number or a bool, got %q", node.Value)
	}
	return v, nil
}

func lineOf(node *yaml.Node) string {
	return fmt.Sprintf("line %d", node.Line)
}
