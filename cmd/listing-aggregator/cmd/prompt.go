package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/donaldgifford/listing-aggregator/internal/pipeline"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const sortMenu = "How do you want to sort the data?\n" +
	"  1: price ascending\n" +
	"  2: price descending\n" +
	"  3: seller rating ascending\n" +
	"  4: seller rating descending\n" +
	"Choose 1/2/3/4: "

// prompter collects search inputs from a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	log *slog.Logger
}

func newPrompter(in io.Reader, out io.Writer, log *slog.Logger) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, log: log}
}

// ask prints question and returns the trimmed answer. End of input counts
// as an empty answer.
func (p *prompter) ask(question string) (string, error) {
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Query asks for the search term. An empty term is an error.
func (p *prompter) Query() (string, error) {
	q, err := p.ask("What are you shopping for? ")
	if err != nil {
		return "", err
	}
	if q == "" {
		return "", fmt.Errorf("%w: no product provided", domain.ErrInvalidInput)
	}
	return q, nil
}

// Limit asks for the per-source result count. Anything that is not a
// positive integer becomes domain.DefaultLimit with a warning.
func (p *prompter) Limit() (int, error) {
	answer, err := p.ask("How many products do you want in list? ")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(answer)
	if convErr != nil || n <= 0 {
		p.log.Warn("invalid number, defaulting", "input", answer, "limit", domain.DefaultLimit)
		return domain.DefaultLimit, nil
	}
	return n, nil
}

// Mode shows the sort menu. An empty answer selects fallback; an
// unrecognized one falls back to price ascending with a warning.
func (p *prompter) Mode(fallback domain.SortMode) (domain.SortMode, error) {
	answer, err := p.ask(sortMenu)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return fallback, nil
	}
	return pipeline.ResolveMode(answer, p.log), nil
}

// Request runs the three prompts in order.
func (p *prompter) Request(fallback domain.SortMode) (pipeline.Request, error) {
	var (
		req pipeline.Request
		err error
	)
	if req.Query, err = p.Query(); err != nil {
		return req, err
	}
	if req.Limit, err = p.Limit(); err != nil {
		return req, err
	}
	if req.Mode, err = p.Mode(fallback); err != nil {
		return req, err
	}
	return req, nil
}
