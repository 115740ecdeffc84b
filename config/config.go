package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"amq/cuckoo"
	"amq/iblt"
	"amq/lib/hashing"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrInvalidArgs = errors.New("invalid filter args")

// FilterArgs configures both filters. Defaults in the tags match
// DefaultFilterArgs.
type FilterArgs struct {
	HashAlgorithm string `arg:"--hash-algorithm,env:AMQ_HASH_ALGORITHM" default:"xxh3" json:"hash_algorithm,omitempty"`
	Seed          uint64 `arg:"--seed,env:AMQ_SEED" default:"78187493520" json:"seed,omitempty"`
	ReseedAfter   int    `arg:"--reseed-after,env:AMQ_RESEED_AFTER" default:"0" json:"reseed_after,omitempty"`
	// cuckoo filter
	ErrorRate  float64 `arg:"--error-rate,env:AMQ_ERROR_RATE" default:"0.01" json:"error_rate,omitempty"`
	BucketSize int     `arg:"--bucket-size,env:AMQ_BUCKET_SIZE" default:"4" json:"bucket_size,omitempty"`
	MaxKicks   int     `arg:"--max-kicks,env:AMQ_MAX_KICKS" default:"500" json:"max_kicks,omitempty"`
	// iblt
	HashCount           int     `arg:"--hash-count,env:AMQ_HASH_COUNT" default:"3" json:"hash_count,omitempty"`
	Alpha               float64 `arg:"--alpha,env:AMQ_ALPHA" default:"2" json:"alpha,omitempty"`
	ExpectedDifferences int     `arg:"--expected-differences,env:AMQ_EXPECTED_DIFFERENCES" default:"100" json:"expected_differences,omitempty"`
}

func DefaultFilterArgs() FilterArgs {
	return FilterArgs{
		HashAlgorithm:       hashing.XXH3Name,
		Seed:                hashing.DefaultSeed,
		ReseedAfter:         0,
		ErrorRate:           0.01,
		BucketSize:          cuckoo.DefaultBucketSize,
		MaxKicks:            cuckoo.DefaultMaxKicks,
		HashCount:           iblt.DefaultHashCount,
		Alpha:               iblt.DefaultAlpha,
		ExpectedDifferences: 100,
	}
}

func (args FilterArgs) Valid() error {
	invalidFields := make([]string, 0)
	if _, err := hashing.ByName(args.HashAlgorithm); err != nil {
		invalidFields = append(invalidFields, "AMQ_HASH_ALGORITHM")
	}
	if args.ReseedAfter < 0 {
		invalidFields = append(invalidFields, "AMQ_RESEED_AFTER")
	}
	if args.ErrorRate <= 0 || args.ErrorRate >= 1 {
		invalidFields = append(invalidFields, "AMQ_ERROR_RATE")
	}
	if args.BucketSize < 1 {
		invalidFields = append(invalidFields, "AMQ_BUCKET_SIZE")
	}
	if args.MaxKicks < 0 {
		invalidFields = append(invalidFields, "AMQ_MAX_KICKS")
	}
	if args.HashCount < 1 {
		invalidFields = append(invalidFields, "AMQ_HASH_COUNT")
	}
	if args.Alpha <= 0 {
		invalidFields = append(invalidFields, "AMQ_ALPHA")
	}
	if args.ExpectedDifferences < 1 {
		invalidFields = append(invalidFields, "AMQ_EXPECTED_DIFFERENCES")
	}
	if len(invalidFields) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidArgs, strings.Join(invalidFields, ", "))
	}
	return nil
}

func (args FilterArgs) Hasher() (hashing.Hasher, error) {
	return hashing.ByName(args.HashAlgorithm)
}

func (args FilterArgs) CuckooOptions() (cuckoo.Options, error) {
	h, err := args.Hasher()
	if err != nil {
		return cuckoo.Options{}, err
	}
	return cuckoo.DefaultOptions().
		WithBucketSize(args.BucketSize).
		WithMaxKicks(args.MaxKicks).
		WithSeed(args.Seed).
		WithHasher(h), nil
}

func (args FilterArgs) IBLTOptions() (iblt.Options, error) {
	h, err := args.Hasher()
	if err != nil {
		return iblt.Options{}, err
	}
	return iblt.DefaultOptions().
		WithHashCount(args.HashCount).
		WithAlpha(args.Alpha).
		WithSeed(args.Seed).
		WithHasher(h).
		WithReseedAfter(args.ReseedAfter), nil
}

// LoadFile overlays the JSON object in path onto args. Keys present in the
// file win over flags and environment.
func LoadFile(path string, args *FilterArgs) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Overlay(data, args); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Overlay sets the fields of args named by the keys of a JSON object, using
// the same names as the json tags of FilterArgs.
func Overlay(data []byte, args *FilterArgs) error {
	return jsonparser.ObjectEach(data, func(key []byte, value []byte, vtype jsonparser.ValueType, _ int) error {
		var err error
		switch k := string(key); k {
		case "hash_algorithm":
			args.HashAlgorithm, err = parseString(k, value, vtype)
		case "seed":
			args.Seed, err = parseUint(k, value, vtype)
		case "reseed_after":
			args.ReseedAfter, err = parseInt(k, value, vtype)
		case "error_rate":
			args.ErrorRate, err = parseFloat(k, value, vtype)
		case "bucket_size":
			args.BucketSize, err = parseInt(k, value, vtype)
		case "max_kicks":
			args.MaxKicks, err = parseInt(k, value, vtype)
		case "hash_count":
			args.HashCount, err = parseInt(k, value, vtype)
		case "alpha":
			args.Alpha, err = parseFloat(k, value, vtype)
		case "expected_differences":
			args.ExpectedDifferences, err = parseInt(k, value, vtype)
		default:
			err = fmt.Errorf("%w: unknown key %q", ErrInvalidArgs, k)
		}
		return err
	})
}

func expect(key string, got, want jsonparser.ValueType) error {
	if got != want {
		return fmt.Errorf("%w: %s must be a %s, got %s", ErrInvalidArgs, key, want, got)
	}
	return nil
}

func parseString(key string, value []byte, vtype jsonparser.ValueType) (string, error) {
	if err := expect(key, vtype, jsonparser.String); err != nil {
		return "", err
	}
	return jsonparser.ParseString(value)
}

func parseInt(key string, value []byte, vtype jsonparser.ValueType) (int, error) {
	if err := expect(key, vtype, jsonparser.Number); err != nil {
		return 0, err
	}
	v, err := jsonparser.ParseInt(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, key, err)
	}
	return int(v), nil
}

func parseUint(key string, value []byte, vtype jsonparser.ValueType) (uint64, error) {
	if err := expect(key, vtype, jsonparser.Number); err != nil {
		return 0, err
	}
	// seeds may not fit in an int64
	v, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, key, err)
	}
	return v, nil
}

func parseFloat(key string, value []byte, vtype jsonparser.ValueType) (float64, error) {
	if err := expect(key, vtype, jsonparser.Number); err != nil {
		return 0, err
	}
	v, err := jsonparser.ParseFloat(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, key, err)
	}
	return v, nil
}

// NewLogger builds the process logger: a development logger in dev mode and
// a JSON production logger otherwise.
func NewLogger(dev bool) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		logger, err = config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zap.ErrorLevel),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to construct logger: %v", err)
	}
	return logger, nil
}
