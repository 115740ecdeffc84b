package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"amq/cuckoo"
	"amq/iblt"
	"amq/lib/hashing"

	"github.com/alexflint/go-arg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, argv []string) FilterArgs {
	var args FilterArgs
	p, err := arg.NewParser(arg.Config{}, &args)
	require.NoError(t, err)
	require.NoError(t, p.Parse(argv))
	return args
}

func TestDefaultsMatchTags(t *testing.T) {
	assert.Equal(t, DefaultFilterArgs(), parse(t, []string{}))
	assert.NoError(t, DefaultFilterArgs().Valid())
}

func TestFlagsAndEnv(t *testing.T) {
	t.Setenv("AMQ_HASH_COUNT", "5")
	args := parse(t, []string{"--seed", "7", "--hash-algorithm", "murmur3", "--error-rate", "0.001"})
	assert.Equal(t, uint64(7), args.Seed)
	assert.Equal(t, hashing.Murmur3Name, args.HashAlgorithm)
	assert.Equal(t, 0.001, args.ErrorRate)
	assert.Equal(t, 5, args.HashCount)
	assert.NoError(t, args.Valid())
}

func TestValid(t *testing.T) {
	args := DefaultFilterArgs()
	args.HashAlgorithm = "md5"
	args.ErrorRate = 1
	args.BucketSize = 0
	args.MaxKicks = -1
	args.HashCount = 0
	args.Alpha = 0
	args.ExpectedDifferences = 0
	args.ReseedAfter = -1
	err := args.Valid()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgs))
	for _, field := range []string{
		"AMQ_HASH_ALGORITHM", "AMQ_ERROR_RATE", "AMQ_BUCKET_SIZE", "AMQ_MAX_KICKS",
		"AMQ_HASH_COUNT", "AMQ_ALPHA", "AMQ_EXPECTED_DIFFERENCES", "AMQ_RESEED_AFTER",
	} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestOverlay(t *testing.T) {
	args := DefaultFilterArgs()
	data := []byte(`{
		"hash_algorithm": "fnv1a",
		"seed": 18446744073709551615,
		"reseed_after": 9,
		"error_rate": 0.05,
		"bucket_size": 2,
		"max_kicks": 100,
		"hash_count": 4,
		"alpha": 1.5,
		"expected_differences": 20
	}`)
	require.NoError(t, Overlay(data, &args))
	assert.Equal(t, FilterArgs{
		HashAlgorithm:       hashing.FNV1aName,
		Seed:                18446744073709551615,
		ReseedAfter:         9,
		ErrorRate:           0.05,
		BucketSize:          2,
		MaxKicks:            100,
		HashCount:           4,
		Alpha:               1.5,
		ExpectedDifferences: 20,
	}, args)

	// absent keys are left alone
	args = DefaultFilterArgs()
	require.NoError(t, Overlay([]byte(`{"max_kicks": 3}`), &args))
	expected := DefaultFilterArgs()
	expected.MaxKicks = 3
	assert.Equal(t, expected, args)
}

func TestOverlayErrors(t *testing.T) {
	cases := []string{
		`{"unknown": 1}`,
		`{"seed": "abc"}`,
		`{"seed": -1}`,
		`{"hash_algorithm": 3}`,
		`{"bucket_size": 1.5}`,
		`{"alpha": true}`,
	}
	for _, data := range cases {
		args := DefaultFilterArgs()
		assert.Error(t, Overlay([]byte(data), &args), data)
	}
	args := DefaultFilterArgs()
	assert.Error(t, Overlay([]byte(`not json`), &args))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amq.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hash_count": 6, "seed": 1}`), 0o644))
	args := DefaultFilterArgs()
	require.NoError(t, LoadFile(path, &args))
	assert.Equal(t, 6, args.HashCount)
	assert.Equal(t, uint64(1), args.Seed)

	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.json"), &args))
}

func TestOptions(t *testing.T) {
	args := DefaultFilterArgs()
	args.HashAlgorithm = hashing.XXHashName
	args.Seed = 11
	args.BucketSize = 8
	args.MaxKicks = 42
	args.HashCount = 5
	args.Alpha = 3
	args.ReseedAfter = 2

	co, err := args.CuckooOptions()
	require.NoError(t, err)
	f, err := cuckoo.Create(100, args.ErrorRate, co)
	require.NoError(t, err)
	assert.Equal(t, 8, f.BucketSize())
	assert.Equal(t, 42, f.MaxKicks())
	assert.Equal(t, uint64(11), f.Seed())

	opts, err := args.IBLTOptions()
	require.NoError(t, err)
	table, err := iblt.Create(args.ExpectedDifferences, opts)
	require.NoError(t, err)
	assert.Equal(t, 5, table.HashCount())
	assert.Equal(t, 300, table.Size())
	assert.Equal(t, uint64(11), table.Seed())
	assert.Equal(t, hashing.XXHashName, table.Hasher().Name())

	args.HashAlgorithm = "nope"
	_, err = args.CuckooOptions()
	assert.True(t, errors.Is(err, hashing.ErrUnknownHasher))
	_, err = args.IBLTOptions()
	assert.True(t, errors.Is(err, hashing.ErrUnknownHasher))
}

func TestNewLogger(t *testing.T) {
	for _, dev := range []bool{true, false} {
		logger, err := NewLogger(dev)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
