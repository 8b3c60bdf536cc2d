package termination

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
)

// DefaultFormula is used when SimulationConfig.TerminatingConditions.Formula
// is empty, per spec.md §4.11.
const DefaultFormula = "TIME(999999)"

// Grammar (spec.md §4.11):
//
//	expression := term ('OR' term)*
//	term       := factor ('AND' factor)*
//	factor     := condition | '(' expression ')'
//	condition  := TIME '(' number ')'
//	            | ENTITIES '(' (ident | '*') ',' number ')'
//	            | EVENTS '(' [ident ','] number ')'
//
// Keywords are matched case-insensitively on word boundaries and
// normalized to uppercase; identifiers keep their original case.

var (
	tokenPattern = regexp.MustCompile(
		`(?i)(\(|\)|,|\bAND\b|\bOR\b|\bTIME\b|\bENTITIES\b|\bEVENTS\b|\*|[A-Za-z_][A-Za-z0-9_]*|\d+\.?\d*)`,
	)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

func tokenize(formula string) []string {
	normalized := whitespacePattern.ReplaceAllString(strings.TrimSpace(formula), " ")
	var tokens []string
	for _, match := range tokenPattern.FindAllString(normalized, -1) {
		switch strings.ToUpper(match) {
		case "AND", "OR", "TIME", "ENTITIES", "EVENTS":
			tokens = append(tokens, strings.ToUpper(match))
		default:
			tokens = append(tokens, match)
		}
	}
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

// Parse compiles formula into a Condition tree. An empty formula is
// rejected; the empty-formula-means-default policy lives at the call
// site (see DefaultFormula).
func Parse(formula string) (Condition, error) {
	tokens := tokenize(formula)
	if len(tokens) == 0 {
		return nil, simerrors.UnparseableTermination(formula, fmt.Errorf("empty termination formula"))
	}

	p := &parser{tokens: tokens}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, simerrors.UnparseableTermination(formula, err)
	}
	if p.pos < len(p.tokens) {
		return nil, simerrors.UnparseableTermination(formula, fmt.Errorf("unexpected token %q at position %d", p.tokens[p.pos], p.pos))
	}
	return cond, nil
}

func (p *parser) current() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) consume(expected string) (string, error) {
	if p.pos >= len(p.tokens) {
		if expected != "" {
			return "", fmt.Errorf("expected %q but reached end of formula", expected)
		}
		return "", nil
	}
	tok := p.tokens[p.pos]
	p.pos++
	if expected != "" && tok != expected {
		return "", fmt.Errorf("expected %q but got %q", expected, tok)
	}
	return tok, nil
}

func (p *parser) parseExpression() (Condition, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.current() == "OR" {
		if _, err := p.consume("OR"); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = OrCondition{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Condition, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.current() == "AND" {
		if _, err := p.consume("AND"); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = AndCondition{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Condition, error) {
	if p.current() == "(" {
		if _, err := p.consume("("); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(")"); err != nil {
			return nil, err
		}
		return cond, nil
	}
	return p.parseCondition()
}

func (p *parser) parseCondition() (Condition, error) {
	switch p.current() {
	case "TIME":
		return p.parseTime()
	case "ENTITIES":
		return p.parseEntities()
	case "EVENTS":
		return p.parseEvents()
	default:
		return nil, fmt.Errorf("unknown condition function %q", p.current())
	}
}

func (p *parser) parseTime() (Condition, error) {
	if _, err := p.consume("TIME"); err != nil {
		return nil, err
	}
	if _, err := p.consume("("); err != nil {
		return nil, err
	}
	valTok, err := p.consume("")
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseFloat(valTok, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid time value %q", valTok)
	}
	if _, err := p.consume(")"); err != nil {
		return nil, err
	}
	return TimeCondition{Value: value}, nil
}

func (p *parser) parseEntities() (Condition, error) {
	if _, err := p.consume("ENTITIES"); err != nil {
		return nil, err
	}
	if _, err := p.consume("("); err != nil {
		return nil, err
	}
	table, err := p.consume("")
	if err != nil {
		return nil, err
	}
	if table == "*" {
		table = ""
	}
	if _, err := p.consume(","); err != nil {
		return nil, err
	}
	valTok, err := p.consume("")
	if err != nil {
		return nil, err
	}
	value, err := parseCount(valTok)
	if err != nil {
		return nil, fmt.Errorf("invalid entity count %q", valTok)
	}
	if _, err := p.consume(")"); err != nil {
		return nil, err
	}
	return EntitiesCondition{Table: table, Value: value}, nil
}

func (p *parser) parseEvents() (Condition, error) {
	if _, err := p.consume("EVENTS"); err != nil {
		return nil, err
	}
	if _, err := p.consume("("); err != nil {
		return nil, err
	}
	first, err := p.consume("")
	if err != nil {
		return nil, err
	}

	var table, valTok string
	if p.current() == "," {
		if _, err := p.consume(","); err != nil {
			return nil, err
		}
		table = first
		valTok, err = p.consume("")
		if err != nil {
			return nil, err
		}
	} else {
		valTok = first
	}

	value, err := parseCount(valTok)
	if err != nil {
		return nil, fmt.Errorf("invalid event count %q", valTok)
	}
	if _, err := p.consume(")"); err != nil {
		return nil, err
	}
	return EventsCondition{Table: table, Value: value}, nil
}

func parseCount(tok string) (int, error) {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
