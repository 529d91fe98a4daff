// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Command otik creates and extracts L3ARCH archives, and produces entropy
// reports for arbitrary inputs.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dariprim/otik/archive"
	"github.com/dariprim/otik/entropy"
	"github.com/dariprim/otik/support/fmtutil"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

func main() {
	archive.RegisterMonitoring(prometheus.DefaultRegisterer)

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "otik:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "encode":
		return runEncode(rest)
	case "decode":
		return runDecode(rest)
	case "entropy":
		return runEntropy(rest)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return errors.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  otik encode -o ARCHIVE [flags] INPUT...
  otik decode [-d DIR] ARCHIVE
  otik entropy [flags] FILE
`)
}

func runEncode(args []string) error {
	fs := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	out := fs.StringP("out", "o", "", "output archive path (required)")
	policy := archive.PolicyFlag(archive.PolicyAdaptive)
	fs.Var(&policy, "policy", "codec policy, one of: "+archive.PolicyFlagValues())
	crc := fs.Bool("crc", false, "protect entries with a CRC32 checksum")
	version := fs.Uint16("format-version", archive.VersionCurrent, "schema version to emit (1-3)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("encode: -o is required")
	}
	if fs.NArg() == 0 {
		return errors.New("encode: no inputs")
	}

	logger := stderrLogger{}
	entries, err := archive.Collect(fs.Args(), logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("encode: no usable inputs")
	}

	cfg := archive.WriterConfig{
		Version: *version,
		Policy:  policy.Value(),
		Protect: *crc,
		Logger:  logger,
	}
	report, err := cfg.WriteArchive(*out, entries)
	if err != nil {
		return err
	}

	for i := range report.Entries {
		er := &report.Entries[i]
		fmt.Printf("  %-40s %-8s %8s => %8s  %s\n",
			er.Path, er.Codec,
			fmtutil.Size(er.OrigSize), fmtutil.Size(er.StoredSize),
			fmtutil.Efficiency(er.OrigSize, er.StoredSize))
	}
	fmt.Printf("wrote %s (%d entries, schema v%d)\n", *out, len(report.Entries), report.Version)
	return nil
}

func runDecode(args []string) error {
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	outDir := fs.StringP("outdir", "d", ".", "directory to extract into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("decode: exactly one archive path is required")
	}

	opts := archive.DecodeOptions{Logger: stderrLogger{}}
	report, err := opts.DecodeArchive(fs.Arg(0), *outDir)
	if err != nil {
		return err
	}

	for i := range report.Entries {
		er := &report.Entries[i]
		fmt.Printf("  %-40s %-8s %8s\n", er.Path, er.Codec, fmtutil.Size(er.OrigSize))
	}
	if failed := report.IntegrityFailures(); len(failed) > 0 {
		fmt.Printf("restored %d entries from schema v%d; %d failed their checksum\n",
			len(report.Entries), report.Version, len(failed))
		return nil
	}
	fmt.Printf("restored %d entries from schema v%d\n", len(report.Entries), report.Version)
	return nil
}

func runEntropy(args []string) error {
	fs := pflag.NewFlagSet("entropy", pflag.ContinueOnError)
	out := fs.StringP("out", "o", "", "write the report to this file instead of stdout")
	unicode := fs.Bool("unicode", false, "analyze as Unicode text instead of raw bytes")
	encoding := fs.String("encoding", "UTF-32", "symbol encoding for the Unicode model: UTF-8, UTF-16 or UTF-32")
	codeLengths := fs.Bool("code-lengths", false, "compare coded sizes across frequency-table storage widths")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("entropy: exactly one input file is required")
	}
	input := fs.Arg(0)

	w := os.Stdout
	if *out != "" {
		fd, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer func() {
			_ = fd.Close()
		}()
		w = fd
	}

	if *unicode {
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		enc, err := parseEncoding(*encoding)
		if err != nil {
			return err
		}
		return entropy.AnalyzeText(string(data)).WriteReport(w, enc)
	}

	fd, err := os.Open(input)
	if err != nil {
		return err
	}
	defer func() {
		_ = fd.Close()
	}()

	report, err := entropy.AnalyzeBytes(fd)
	if err != nil {
		return err
	}
	if err := report.WriteReport(w, input); err != nil {
		return err
	}

	if *codeLengths {
		clr, err := report.AnalyzeCodeLengths()
		if err != nil {
			return err
		}
		return clr.WriteReport(w)
	}
	return nil
}

func parseEncoding(name string) (entropy.Encoding, error) {
	switch name {
	case "UTF-8":
		return entropy.UTF8, nil
	case "UTF-16":
		return entropy.UTF16, nil
	case "UTF-32":
		return entropy.UTF32, nil
	default:
		return 0, errors.Errorf("unknown encoding %q", name)
	}
}

// stderrLogger adapts the standard library logger to logging.L.
type stderrLogger struct{}

func (stderrLogger) Error(args ...interface{}) { log.Print(args...) }
func (stderrLogger) Warn(args ...interface{})  { log.Print(args...) }
func (stderrLogger) Info(args ...interface{})  { log.Print(args...) }
func (stderrLogger) Debug(args ...interface{}) {}

func (stderrLogger) Errorf(fmt string, args ...interface{}) { log.Printf(fmt, args...) }
func (stderrLogger) Warnf(fmt string, args ...interface{})  { log.Printf(fmt, args...) }
func (stderrLogger) Infof(fmt string, args ...interface{})  { log.Printf(fmt, args...) }
func (stderrLogger) Debugf(fmt string, args ...interface{}) {}
