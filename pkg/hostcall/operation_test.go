package hostcall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
)

type fakeContext struct {
	reg *registry.InstanceRegistry
}

func newFakeContext() *fakeContext {
	return &fakeContext{reg: registry.NewInstanceRegistry(registry.NewRegistry())}
}

func (c *fakeContext) Registry() *registry.InstanceRegistry { return c.reg }
func (c *fakeContext) MailboxBase() (uintptr, bool)         { return 0, false }

type echoDriver struct{}

func (echoDriver) ToTask(_ HostcallContext, input string) Task[string] {
	return func() (string, *kernelerr.GuestError) { return input, nil }
}

type failDriver struct{}

func (failDriver) ToTask(_ HostcallContext, _ string) Task[string] {
	return func() (string, *kernelerr.GuestError) {
		return "", kernelerr.NewNotFoundError("nope", nil)
	}
}

type blockingDriver struct{ release chan struct{} }

func (d blockingDriver) ToTask(_ HostcallContext, input string) Task[string] {
	return func() (string, *kernelerr.GuestError) {
		<-d.release
		return input, nil
	}
}

func TestCreatePollDropRoundTrip(t *testing.T) {
	ctx := newFakeContext()
	op := NewOperation[string, string](echoDriver{}, "test::echo")

	slot, kerr := op.Create(ctx, "hello")
	require.Nil(t, kerr)

	var got *registry.FutureResult
	require.Eventually(t, func() bool {
		res, kerr := op.Poll(ctx, slot, 1)
		if kerr != nil || res == nil {
			return false
		}
		got = res
		return true
	}, time.Second, time.Millisecond)

	require.NotNil(t, got)
	assert.Nil(t, got.Err)
	assert.Contains(t, string(got.Value), "hello")
}

func TestPollBeforeReadyReturnsNilWithoutError(t *testing.T) {
	ctx := newFakeContext()
	d := blockingDriver{release: make(chan struct{})}
	op := NewOperation[string, string](d, "test::blocking")
	defer close(d.release)

	slot, kerr := op.Create(ctx, "x")
	require.Nil(t, kerr)

	res, kerr := op.Poll(ctx, slot, 1)
	assert.Nil(t, kerr)
	assert.Nil(t, res)
}

func TestPollSurfacesDriverError(t *testing.T) {
	ctx := newFakeContext()
	op := NewOperation[string, string](failDriver{}, "test::fail")

	slot, kerr := op.Create(ctx, "x")
	require.Nil(t, kerr)

	var res *registry.FutureResult
	require.Eventually(t, func() bool {
		r, perr := op.Poll(ctx, slot, 1)
		if perr != nil || r == nil {
			return false
		}
		res = r
		return true
	}, time.Second, time.Millisecond)

	require.NotNil(t, res)
	require.NotNil(t, res.Err)
	assert.True(t, kernelerr.IsNotFound(res.Err))

	// the ready poll consumed the slot; polling it again reports NotFound.
	_, kerr = op.Poll(ctx, slot, 1)
	require.NotNil(t, kerr)
}

func TestDropAbandonsInFlightFuture(t *testing.T) {
	ctx := newFakeContext()
	d := blockingDriver{release: make(chan struct{})}
	op := NewOperation[string, string](d, "test::blocking")
	defer close(d.release)

	slot, kerr := op.Create(ctx, "x")
	require.Nil(t, kerr)

	kerr = op.Drop(ctx, slot)
	require.Nil(t, kerr)

	// the slot is gone; a second poll must fail rather than panic.
	_, kerr = op.Poll(ctx, slot, 1)
	require.NotNil(t, kerr)
}
