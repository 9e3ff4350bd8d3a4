package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointMath(t *testing.T) {
	a := Point{North: 0, East: 0}
	b := Point{North: 3, East: 4}

	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-12)
	assert.Equal(t, Point{North: 1.5, East: 2}, a.Interpolate(b, 0.5))
	assert.InDelta(t, 90.0, a.HeadingTo(Point{East: 1}), 1e-9)
	assert.InDelta(t, 270.0, a.HeadingTo(Point{East: -1}), 1e-9)

	step := a.MoveTowards(b, 2.5)
	assert.InDelta(t, 2.5, a.DistanceTo(step), 1e-9)
	assert.Equal(t, b, a.MoveTowards(b, 10))
}

func TestCircleContains(t *testing.T) {
	c := Circle{Center: Point{North: 10}, Radius: 5}
	assert.True(t, c.Contains(Point{North: 15}))
	assert.True(t, c.Contains(Point{North: 10, East: 3}))
	assert.False(t, c.Contains(Point{North: 15.01}))
}
