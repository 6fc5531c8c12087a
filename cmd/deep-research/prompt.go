package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed answer line. EOF yields "".
func (p *prompter) ask(question string) string {
	fmt.Fprintf(p.out, "%s\nYour answer: ", question)
	line, _ := p.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// askInt falls back to def on empty, non-numeric or non-positive input.
func (p *prompter) askInt(question string, def int) int {
	n, err := strconv.Atoi(p.ask(question))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseMode(answer string) string {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "2", "answer":
		return modeAnswer
	default:
		return modeReport
	}
}
