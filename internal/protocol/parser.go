package protocol

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	fherrors "github.com/feedhandlers/fhtest/internal/errors"
)

// maxLineBytes bounds a single protocol line. Failure messages are short,
// but a test may print arbitrary data before crashing.
const maxLineBytes = 1 << 20

// Parser decodes one binary's output a line at a time. It keeps only the
// position within the current record; use a new Parser for each binary.
type Parser struct {
	pos    int
	lineNo int
}

// NewParser creates a parser positioned at the start of a binary's output.
func NewParser() *Parser {
	return &Parser{}
}

// Next decodes a single line into exactly one event. A malformed summary or
// header yields an event together with a ProtocolError: bad summary fields
// count as zero and a bad header produces an OutcomeInvalid result.
func (p *Parser) Next(line string) (Event, error) {
	p.lineNo++
	line = strings.TrimRight(line, "\r\n")
	ev := Event{LineNo: p.lineNo}

	switch {
	case strings.HasPrefix(line, ":"):
		// Summary lines are out of band: the line after one is a banner again.
		ev.Kind = EventSummary
		summary, err := p.parseSummary(line)
		ev.Summary = summary
		p.pos = 0
		return ev, err

	case p.pos == 1:
		ev.Kind = EventResult
		result, err := p.parseResult(line)
		ev.Result = result
		p.pos++
		return ev, err

	case line == ".":
		ev.Kind = EventRecordEnd
		p.pos = 1
		return ev, nil
	}

	if p.pos == 0 {
		ev.Kind = EventBanner
	} else {
		ev.Kind = EventMessageLine
	}
	ev.Text = line
	p.pos++
	return ev, nil
}

func (p *Parser) parseSummary(line string) (Summary, error) {
	// The first field is the empty discriminator before the leading colon.
	fields := strings.Split(line, ":")[1:]
	var s Summary
	targets := []*int{&s.Tests, &s.Assertions, &s.Failures, &s.Errors}

	var problems []string
	if len(fields) != len(targets) {
		problems = append(problems, "expected 4 counters, got "+strconv.Itoa(len(fields)))
	}
	for i, target := range targets {
		if i >= len(fields) {
			break
		}
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil || n < 0 {
			problems = append(problems, "bad counter "+strconv.Quote(fields[i]))
			continue
		}
		*target = n
	}

	if len(problems) > 0 {
		return s, fherrors.Protocol(p.lineNo, line, "malformed summary: "+strings.Join(problems, ", "))
	}
	return s, nil
}

func (p *Parser) parseResult(line string) (Result, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 4 {
		return Result{Test: line, Outcome: OutcomeInvalid},
			fherrors.Protocol(p.lineNo, line, "malformed result: expected name:file:line:outcome")
	}

	lineNum, err := strconv.Atoi(fields[2])
	if err != nil {
		return Result{Test: fields[0], File: fields[1], Keyword: fields[3], Outcome: OutcomeInvalid},
			fherrors.Protocol(p.lineNo, line, "malformed result: bad source line "+strconv.Quote(fields[2]))
	}

	return Result{
		Test:    fields[0],
		File:    fields[1],
		Line:    lineNum,
		Keyword: fields[3],
		Outcome: ParseOutcome(fields[3]),
	}, nil
}

// Decode reads r to the end, passing each decoded event and its parse error
// (usually nil) to fn in input order.
func Decode(r io.Reader, fn func(Event, error)) error {
	p := NewParser()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(p.Next(scanner.Text()))
	}
	return scanner.Err()
}
