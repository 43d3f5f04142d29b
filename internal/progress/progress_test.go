package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	values []int
}

func (r *recorder) SetPhase(string) {}
func (r *recorder) Progress(p int) { r.values = append(r.values, p) }
func (r *recorder) Log(string)      {}

func TestSpanFraction(t *testing.T) {
	r := &recorder{}
	span := Span{Reporter: r, Start: 0.7, End: 0.9}

	span.Fraction(0)
	span.Fraction(0.5)
	span.Fraction(1)
	span.Fraction(3)
	span.Fraction(-1)

	assert.Equal(t, []int{70, 80, 90, 90, 70}, r.values)
}

func TestSpanWithoutReporter(t *testing.T) {
	assert.NotPanics(t, func() { Span{}.Fraction(0.5) })
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 42, Clamp(42))
	assert.Equal(t, 100, Clamp(250))
}
