package sensor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Pull selects the bias applied to an input line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOInput is a single GPIO line requested as an input.
type GPIOInput struct {
	line *gpiocdev.Line
}

// NewGPIOInput requests offset on chip (e.g. "gpiochip0") as an input.
func NewGPIOInput(chip string, offset int, pull Pull) (*GPIOInput, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	switch pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s line %d: %w", chip, offset, err)
	}
	return &GPIOInput{line: line}, nil
}

// Value returns the current level, 0 or 1.
func (g *GPIOInput) Value() (int, error) {
	return g.line.Value()
}

// Close releases the line.
func (g *GPIOInput) Close() error {
	return g.line.Close()
}
