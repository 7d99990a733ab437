package main

import (
	"fmt"
	"os"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/reoring/pbjournal"
	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/i18n"
)

// common holds the flags every subcommand takes.
type common struct {
	schema   string
	message  string
	logLevel string
	lang     string

	desc   *descriptor.Message
	input  []byte
	logger log.Logger
}

func (c *common) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.schema, "schema", "", "descriptor file (.yaml, .json, .pb)")
	fs.StringVar(&c.message, "message", "", "top-level message name")
	fs.StringVar(&c.logLevel, "log.level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&c.lang, "lang", "en", "language of error messages: en, ja")
}

// parse parses args and loads the schema and the single positional input.
func (c *common) parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.schema == "" || c.message == "" || fs.NArg() != 1 {
		fs.Usage()
		return errors.New("--schema, --message and one INPUT are required")
	}
	logger, err := newLogger(c.logLevel)
	if err != nil {
		return err
	}
	c.logger = log.With(logger, "cmd", fs.Name())
	i18n.SetLanguage(c.lang)

	if c.desc, err = loadSchema(c.schema, c.message); err != nil {
		return err
	}
	if c.input, err = readInput(fs.Arg(0)); err != nil {
		return err
	}
	level.Debug(c.logger).Log("msg", "loaded input", "schema", c.schema, "message", c.message, "bytes", len(c.input))
	return nil
}

// explain renders pbjournal errors through the current translator.
func explain(err error) error {
	if pe, ok := pbjournal.AsError(err); ok {
		return errors.New(pe.Message(i18n.Current()))
	}
	return err
}

type entry struct {
	Path  string `json:"path"`
	Tag   uint32 `json:"tag"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

// collect decodes buf into a flat list of entries, descending into
// submessages.
func collect(desc *descriptor.Message, buf []byte) ([]entry, error) {
	var out []entry
	var walk func(prefix string, d *pbjournal.Decoder) error
	walk = func(prefix string, d *pbjournal.Decoder) error {
		return d.Decode(func(f *descriptor.Field, v pbjournal.Value) error {
			p := prefix + strconv.FormatUint(uint64(f.Tag), 10)
			if sub := v.Message(); sub != nil {
				out = append(out, entry{Path: p, Tag: f.Tag, Name: f.Name, Type: f.Type.String()})
				return walk(p+".", sub)
			}
			val := v.Interface()
			if f.Type == descriptor.TypeEnum {
				val = v.String()
			}
			out = append(out, entry{Path: p, Tag: f.Tag, Name: f.Name, Type: f.Type.String(), Value: val})
			return nil
		})
	}
	err := walk("", pbjournal.NewDecoder(desc, buf))
	return out, err
}

func printEntries(entries []entry, asJSON bool) error {
	if asJSON {
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal")
		}
		_, err = fmt.Fprintln(os.Stdout, string(b))
		return err
	}
	for _, e := range entries {
		if e.Value == nil {
			fmt.Fprintf(os.Stdout, "%s %s (%s)\n", e.Path, e.Name, e.Type)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s %s (%s) = %v\n", e.Path, e.Name, e.Type, e.Value)
	}
	return nil
}

func decodeCmd(args []string) error {
	var c common
	var asJSON bool
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	c.register(fs)
	fs.BoolVar(&asJSON, "json", false, "print entries as JSON")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	entries, err := collect(c.desc, c.input)
	if err != nil {
		level.Error(c.logger).Log("msg", "decode failed", "err", err)
		return explain(err)
	}
	return printEntries(entries, asJSON)
}

func validateCmd(args []string) error {
	var c common
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	c.register(fs)
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := pbjournal.Validate(c.desc, c.input); err != nil {
		level.Warn(c.logger).Log("msg", "invalid message", "code", pbjournal.CodeOf(err), "err", err)
		return explain(err)
	}
	fmt.Fprintln(os.Stdout, "ok")
	return nil
}

func getCmd(args []string) error {
	var c common
	var pathFlag string
	fs := pflag.NewFlagSet("get", pflag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&pathFlag, "path", "", "dot-separated field path")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	path, f, err := parsePath(c.desc, pathFlag)
	if err != nil {
		return err
	}
	m, err := pbjournal.Open(c.input, c.desc)
	if err != nil {
		return explain(err)
	}
	if f.Type == descriptor.TypeMessage {
		sub, err := m.NestedMessage(path...)
		if err != nil {
			return explain(err)
		}
		b, err := sub.Bytes()
		if err != nil {
			return explain(err)
		}
		entries, err := collect(f.Message, b)
		if err != nil {
			return explain(err)
		}
		return printEntries(entries, true)
	}
	var v any
	if err := m.NestedGet(path, &v); err != nil {
		return explain(err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}

// edit opens the input as a journal that logs every splice at debug level.
func (c *common) edit() (*pbjournal.Message, error) {
	return pbjournal.Open(c.input, c.desc, pbjournal.WithObserver(func(e pbjournal.Edit) {
		level.Debug(c.logger).Log("msg", "edit", "version", e.Version, "kind", e.Kind, "pos", e.Pos, "old", e.Old, "new", e.New)
	}))
}

func setCmd(args []string) error {
	var c common
	var pathFlag, value, out string
	fs := pflag.NewFlagSet("set", pflag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&pathFlag, "path", "", "dot-separated field path")
	fs.StringVar(&value, "value", "", "new value")
	fs.StringVarP(&out, "output", "o", "", "output file (default stdout)")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	path, f, err := parsePath(c.desc, pathFlag)
	if err != nil {
		return err
	}
	v, err := parseValue(f, value)
	if err != nil {
		return err
	}
	m, err := c.edit()
	if err != nil {
		return explain(err)
	}
	if err := m.NestedPut(path, v); err != nil {
		level.Error(c.logger).Log("msg", "set failed", "path", pathFlag, "err", err)
		return explain(err)
	}
	level.Info(c.logger).Log("msg", "field set", "path", pathFlag, "bytes", m.Journal().Len())
	return writeOutput(out, m.Journal().Bytes())
}

func eraseCmd(args []string) error {
	var c common
	var pathFlag, out string
	fs := pflag.NewFlagSet("erase", pflag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&pathFlag, "path", "", "dot-separated field path")
	fs.StringVarP(&out, "output", "o", "", "output file (default stdout)")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	path, _, err := parsePath(c.desc, pathFlag)
	if err != nil {
		return err
	}
	m, err := c.edit()
	if err != nil {
		return explain(err)
	}
	if err := m.NestedErase(path...); err != nil {
		level.Error(c.logger).Log("msg", "erase failed", "path", pathFlag, "err", err)
		return explain(err)
	}
	level.Info(c.logger).Log("msg", "field erased", "path", pathFlag, "bytes", m.Journal().Len())
	return writeOutput(out, m.Journal().Bytes())
}
