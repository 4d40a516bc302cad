package goid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deye-exporter/pkg/goid"
)

func TestGetGID(t *testing.T) {
	main := goid.GetGID()
	assert.NotZero(t, main)
	assert.Equal(t, main, goid.GetGID())

	other := make(chan uint64)
	go func() { other <- goid.GetGID() }()
	id := <-other
	assert.NotZero(t, id)
	assert.NotEqual(t, main, id)
}
