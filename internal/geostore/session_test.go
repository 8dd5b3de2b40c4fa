package geostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_DuplicatesRemovedIndividually(t *testing.T) {
	s := NewSession()
	s.Register("tmp_a")
	s.Register("tmp_b")
	s.Register("tmp_a")

	// Removal shifts later positions, so the lookup repeats after each hit.
	removed := 0
	for {
		i := s.FindIndex("tmp_a")
		if i < 0 {
			break
		}
		s.RemoveAt(i)
		removed++
	}
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"tmp_b"}, s.Registered())
}

func TestSession_FindIndexMissing(t *testing.T) {
	s := NewSession()
	assert.Equal(t, -1, s.FindIndex("absent"))
}

func TestSession_RemoveAtOutOfRange(t *testing.T) {
	s := NewSession()
	s.Register("tmp_a")
	s.RemoveAt(5)
	s.RemoveAt(-1)
	assert.Equal(t, []string{"tmp_a"}, s.Registered())
}
