// Package scenario runs functional features against feed handler builds.
// A feature file holds scenarios written as plain-language steps; each step
// is matched against a vocabulary of actions (compile, run, send a signal,
// inspect output) executed in a per-scenario World.
package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Step is one line of a scenario.
type Step struct {
	Keyword string // Given, When, Then, And, But
	Text    string
	Line    int
}

// String renders the step the way it appears in a feature file.
func (s Step) String() string {
	return s.Keyword + " " + s.Text
}

// Scenario is a named, ordered list of steps.
type Scenario struct {
	Name  string
	Line  int
	Steps []Step
}

// Feature is a parsed feature file.
type Feature struct {
	Name        string
	Path        string
	Description []string
	Background  []Step
	Scenarios   []Scenario
}

// ParseError reports a line the feature parser could not place.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

var stepKeywords = []string{"Given", "When", "Then", "And", "But"}

// ParseFile reads and parses the feature file at path.
func ParseFile(path string) (*Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a feature from r. path is used in errors and traces.
func Parse(r io.Reader, path string) (*Feature, error) {
	feature := &Feature{Path: path}
	title := cases.Title(language.English)

	const (
		inPreamble = iota
		inDescription
		inBackground
		inScenario
	)
	state := inPreamble
	var current *Scenario

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}

		if name, ok := section(line, "Feature"); ok {
			if feature.Name != "" || state != inPreamble {
				return nil, &ParseError{path, lineNo, "only one Feature is allowed per file"}
			}
			feature.Name = name
			state = inDescription
			continue
		}
		if _, ok := section(line, "Background"); ok {
			if state != inDescription {
				return nil, &ParseError{path, lineNo, "Background must follow the Feature line and precede every Scenario"}
			}
			state = inBackground
			continue
		}
		if name, ok := section(line, "Scenario"); ok {
			if state == inPreamble {
				return nil, &ParseError{path, lineNo, "Scenario before Feature"}
			}
			feature.Scenarios = append(feature.Scenarios, Scenario{Name: name, Line: lineNo})
			current = &feature.Scenarios[len(feature.Scenarios)-1]
			state = inScenario
			continue
		}
		if strings.HasPrefix(line, "Scenario Outline:") || strings.HasPrefix(line, "Examples:") {
			return nil, &ParseError{path, lineNo, "scenario outlines are not supported"}
		}

		keyword, text, isStep := splitStep(line, title)
		switch state {
		case inPreamble:
			return nil, &ParseError{path, lineNo, fmt.Sprintf("expected Feature, got %q", line)}
		case inDescription:
			if isStep {
				return nil, &ParseError{path, lineNo, "step outside of a Scenario or Background"}
			}
			feature.Description = append(feature.Description, line)
		case inBackground, inScenario:
			if !isStep {
				return nil, &ParseError{path, lineNo, fmt.Sprintf("expected a step, got %q", line)}
			}
			step := Step{Keyword: keyword, Text: text, Line: lineNo}
			if state == inBackground {
				feature.Background = append(feature.Background, step)
			} else {
				current.Steps = append(current.Steps, step)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if feature.Name == "" && state == inPreamble {
		return nil, &ParseError{path, lineNo, "no Feature found"}
	}
	return feature, nil
}

// section matches "Keyword: name" and returns the trimmed name.
func section(line, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(line, keyword+":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// splitStep recognizes a step keyword in any letter case.
func splitStep(line string, title cases.Caser) (keyword, text string, ok bool) {
	word, rest, _ := strings.Cut(line, " ")
	word = title.String(word)
	for _, kw := range stepKeywords {
		if word == kw {
			return kw, strings.TrimSpace(rest), strings.TrimSpace(rest) != ""
		}
	}
	return "", "", false
}
