package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"amq/config"
	"amq/cuckoo"
	"amq/iblt"

	"github.com/alexflint/go-arg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type MembershipCmd struct {
	Items    string `arg:"--items" help:"file with one element per line to add to the filter"`
	Load     string `arg:"--load" help:"restore the filter from a snapshot instead of building it"`
	Queries  string `arg:"--queries" help:"file with one element per line to look up"`
	Snapshot string `arg:"--snapshot" help:"write the filter snapshot to this file"`
}

type ReconcileCmd struct {
	Left    string `arg:"--left,required" help:"file with the local elements"`
	Right   string `arg:"--right,required" help:"file with the remote elements"`
	Retries int    `arg:"--retries" default:"2" help:"times to retry with a table twice as large when decoding fails"`
}

type Args struct {
	config.FilterArgs
	Config      string         `arg:"--config,env:AMQ_CONFIG" help:"JSON file overriding the filter args"`
	Dev         bool           `arg:"--dev,env:AMQ_DEV" default:"false"`
	MetricsFile string         `arg:"--metrics-file,env:AMQ_METRICS_FILE" help:"write prometheus metrics to this file on exit"`
	Membership  *MembershipCmd `arg:"subcommand:membership"`
	Reconcile   *ReconcileCmd  `arg:"subcommand:reconcile"`
}

func main() {
	var args Args
	p := arg.MustParse(&args)

	logger, err := config.NewLogger(args.Dev)
	if err != nil {
		panic(err)
	}
	_ = zap.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	if args.Config != "" {
		if err := config.LoadFile(args.Config, &args.FilterArgs); err != nil {
			p.Fail(err.Error())
		}
	}
	if err := args.FilterArgs.Valid(); err != nil {
		p.Fail(err.Error())
	}

	switch {
	case args.Membership != nil:
		err = membership(os.Stdout, args.FilterArgs, *args.Membership)
	case args.Reconcile != nil:
		err = reconcile(os.Stdout, args.FilterArgs, *args.Reconcile)
	default:
		p.Fail("missing subcommand")
	}
	if err != nil {
		zap.L().Fatal("command failed", zap.Error(err))
	}

	if args.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(args.MetricsFile, prometheus.DefaultGatherer); err != nil {
			zap.L().Error("failed to write metrics", zap.String("file", args.MetricsFile), zap.Error(err))
		}
	}
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

func buildFilter(args config.FilterArgs, cmd MembershipCmd) (*cuckoo.Filter, error) {
	if cmd.Load != "" {
		data, err := os.ReadFile(cmd.Load)
		if err != nil {
			return nil, err
		}
		var cf cuckoo.Filter
		if err := cf.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return &cf, nil
	}
	if cmd.Items == "" {
		return nil, fmt.Errorf("one of --items or --load is required")
	}
	items, err := readLines(cmd.Items)
	if err != nil {
		return nil, err
	}
	opts, err := args.CuckooOptions()
	if err != nil {
		return nil, err
	}
	cf, err := cuckoo.Create(uint64(max(len(items), 1)), args.ErrorRate, opts)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, item := range items {
		if _, err := cf.Insert(item, cuckoo.InsertOptions{ErrorOnFull: true}); err != nil {
			zap.L().Warn("could not add element", zap.ByteString("element", item), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		zap.L().Warn("filter rejected elements", zap.Int("failed", failed), zap.Int("items", len(items)))
	}
	return cf, nil
}

func membership(w io.Writer, args config.FilterArgs, cmd MembershipCmd) error {
	cf, err := buildFilter(args, cmd)
	if err != nil {
		return err
	}
	if cmd.Queries != "" {
		queries, err := readLines(cmd.Queries)
		if err != nil {
			return err
		}
		for _, q := range queries {
			fmt.Fprintf(w, "%s\t%t\n", q, cf.Has(q))
		}
	}
	fmt.Fprintf(w, "count=%d capacity=%d load_factor=%.4f rate=%.6f\n", cf.Count(), cf.Capacity(), cf.LoadFactor(), cf.Rate())
	cf.PublishStats("membership")

	if cmd.Snapshot != "" {
		data, err := cf.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(cmd.Snapshot, data, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	return nil
}

func fill(args config.FilterArgs, expectedDifferences int, elements [][]byte) (*iblt.Table, error) {
	opts, err := args.IBLTOptions()
	if err != nil {
		return nil, err
	}
	table, err := iblt.Create(expectedDifferences, opts)
	if err != nil {
		return nil, err
	}
	for _, e := range elements {
		table.Add(e)
	}
	return table, nil
}

func reconcile(w io.Writer, args config.FilterArgs, cmd ReconcileCmd) error {
	left, err := readLines(cmd.Left)
	if err != nil {
		return err
	}
	right, err := readLines(cmd.Right)
	if err != nil {
		return err
	}
	var res iblt.Result
	for attempt := 0; attempt <= cmd.Retries; attempt++ {
		d := args.ExpectedDifferences << attempt
		l, err := fill(args, d, left)
		if err != nil {
			return err
		}
		r, err := fill(args, d, right)
		if err != nil {
			return err
		}
		diff, err := l.Subtract(r)
		if err != nil {
			return err
		}
		res = diff.Decode()
		diff.PublishStats("reconcile")
		if res.Success {
			break
		}
		zap.L().Info("reconciliation table too small, retrying",
			zap.Int("expected_differences", d), zap.Int("residual", len(res.Residual)))
	}
	if !res.Success {
		return fmt.Errorf("decode incomplete after %d attempts: %d cells left", cmd.Retries+1, len(res.Residual))
	}
	for _, e := range sorted(res.Additional) {
		fmt.Fprintf(w, "+ %s\n", e)
	}
	for _, e := range sorted(res.Missing) {
		fmt.Fprintf(w, "- %s\n", e)
	}
	return nil
}

func sorted(elements [][]byte) []string {
	ret := lo.Map(elements, func(e []byte, _ int) string {
		return string(e)
	})
	sort.Strings(ret)
	return ret
}
