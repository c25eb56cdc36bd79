package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestBuildHealthCheck_NilPool(t *testing.T) {
	check := BuildHealthCheck(nil)
	assert.Error(t, check(context.Background()))
}

func TestBuildHealthCheck_PingError(t *testing.T) {
	check := BuildHealthCheck(stubPinger{err: errors.New("down")})
	assert.Error(t, check(context.Background()))
}

func TestBuildHealthCheck_PingOK(t *testing.T) {
	check := BuildHealthCheck(stubPinger{})
	assert.NoError(t, check(context.Background()))
}
