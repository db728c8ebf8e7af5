package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailoverDetector_FirstSightingIsSilent(t *testing.T) {
	d := NewFailoverDetector()

	_, ok := d.Observe("blue")
	assert.False(t, ok)
	assert.Equal(t, "blue", d.Current())
	assert.Equal(t, "", d.Last())
}

func TestFailoverDetector_Sequence(t *testing.T) {
	d := NewFailoverDetector()

	var got []Transition
	for _, pool := range []string{"", "blue", "blue", "", "green", "green", "blue"} {
		if tr, ok := d.Observe(pool); ok {
			got = append(got, tr)
		}
	}

	assert.Equal(t, []Transition{
		{From: "blue", To: "green"},
		{From: "green", To: "blue"},
	}, got)
	assert.Equal(t, "blue", d.Current())
	assert.Equal(t, "green", d.Last())
}

func TestFailoverDetector_EmptyNeverMutates(t *testing.T) {
	d := NewFailoverDetector()
	d.Observe("blue")
	d.Observe("green")

	_, ok := d.Observe("")
	assert.False(t, ok)
	assert.Equal(t, "green", d.Current())
	assert.Equal(t, "blue", d.Last())
}
