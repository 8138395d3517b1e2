package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplaint_AcceptsImages(t *testing.T) {
	want := map[ComplaintStatus]bool{
		ComplaintOpen:       false,
		ComplaintInProgress: true,
		ComplaintResolved:   true,
		ComplaintClosed:     false,
		"":                  false,
	}
	for status, ok := range want {
		c := &Complaint{Status: status}
		assert.Equal(t, ok, c.AcceptsImages(), "status %q", status)
	}
}
