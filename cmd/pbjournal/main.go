package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var run func([]string) error
	switch os.Args[1] {
	case "decode":
		run = decodeCmd
	case "validate":
		run = validateCmd
	case "get":
		run = getCmd
	case "set":
		run = setCmd
	case "erase":
		run = eraseCmd
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err := run(os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `pbjournal CLI

Usage:
  pbjournal decode   --schema FILE --message NAME [--json] INPUT
  pbjournal validate --schema FILE --message NAME [--lang en|ja] INPUT
  pbjournal get      --schema FILE --message NAME --path 7.street INPUT
  pbjournal set      --schema FILE --message NAME --path 7.street --value V [-o OUT] INPUT
  pbjournal erase    --schema FILE --message NAME --path 7.street [-o OUT] INPUT

Notes:
  - FILE is a YAML or JSON descriptor document, or a compiled FileDescriptorSet (.pb, .protoset).
  - INPUT may be "-" for stdin; .zst and .gz inputs are decompressed.
  - Paths are dot-separated field numbers or names.`)
}

func newLogger(lvl string) (log.Logger, error) {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "info", "":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}
