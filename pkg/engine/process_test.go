package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/abi"
)

var errRepository = errors.New("repository unavailable")

// runModule is a hand-assembled wasm binary exporting a no-arg, no-result
// function named "run" with an empty body.
var runModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

type stubRepository struct {
	bytes []byte
	err   error
}

func (r stubRepository) Read(string) ([]byte, error) { return r.bytes, r.err }

func TestSandboxProcessStartRunsEntrypointAndReturnsInstance(t *testing.T) {
	eng := newTestEngine(t)
	sp := NewSandboxProcess(eng, stubRepository{bytes: runModule})

	process, err := sp.Start("module", "job", nil, abi.EntrypointInvocation{Entrypoint: "run"})
	require.NoError(t, err)

	inst, ok := process.(*Instance)
	require.True(t, ok)
	assert.NotEmpty(t, inst.ID)

	require.NoError(t, sp.Stop(process))
}

func TestSandboxProcessStartSurfacesRepositoryError(t *testing.T) {
	eng := newTestEngine(t)
	sp := NewSandboxProcess(eng, stubRepository{err: errRepository})

	_, err := sp.Start("missing", "job", nil, abi.EntrypointInvocation{Entrypoint: "run"})
	require.Error(t, err)
}

func TestSandboxProcessStartSurfacesMissingEntrypoint(t *testing.T) {
	eng := newTestEngine(t)
	sp := NewSandboxProcess(eng, stubRepository{bytes: runModule})

	_, err := sp.Start("module", "job", nil, abi.EntrypointInvocation{Entrypoint: "does_not_exist"})
	require.Error(t, err)
}

func TestSandboxProcessStopRejectsForeignHandle(t *testing.T) {
	eng := newTestEngine(t)
	sp := NewSandboxProcess(eng, stubRepository{bytes: runModule})

	err := sp.Stop("not-an-instance")
	require.Error(t, err)
}

func TestSandboxProcessLowersScalarArguments(t *testing.T) {
	eng := newTestEngine(t)
	sp := NewSandboxProcess(eng, stubRepository{bytes: scalarArgModule})

	invocation := abi.EntrypointInvocation{
		Entrypoint: "run",
		Signature:  abi.EntrypointSignature{Params: []abi.AbiParam{{Scalar: abi.ScalarI32}}},
		Args:       []abi.EntrypointArg{{Scalar: &abi.AbiScalarValue{Kind: abi.ScalarI32, I32: 7}}},
	}

	process, err := sp.Start("module", "job", nil, invocation)
	require.NoError(t, err)
	require.NoError(t, sp.Stop(process))
}

// scalarArgModule exports a "run" function taking one i32 parameter and an
// empty body, exercising the scalar-argument lowering path.
var scalarArgModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x05, 0x01, 0x60, 0x01, 0x7f, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}
