package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLogger_DefaultsToNopWithoutInit(t *testing.T) {
	global = nil
	assert.NotPanics(t, func() {
		Logger().Infow("hello")
	})
}

func TestInit_SetsGlobalLogger(t *testing.T) {
	defer func() { global = nil }()

	l := zap.NewExample().Sugar()
	Init(l)

	assert.Same(t, l, Logger())
}
