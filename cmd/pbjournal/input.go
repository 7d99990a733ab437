package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/reoring/pbjournal/descriptor"
)

// loadSchema picks a loader from the file extension.
func loadSchema(path, message string) (*descriptor.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read schema")
	}
	var set *descriptor.Set
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		set, err = descriptor.LoadYAML(data)
	case ".json":
		set, err = descriptor.LoadJSON(data)
	case ".pb", ".protoset", ".desc", ".binpb":
		set, err = descriptor.LoadProtoSet(data)
	default:
		return nil, errors.Errorf("unknown schema format %q", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", path)
	}
	m := set.Message(message)
	if m == nil {
		return nil, errors.Errorf("message %q not found in %s", message, path)
	}
	return m, nil
}

// readInput reads path, or stdin for "-", decompressing .zst and .gz files.
func readInput(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		return out, errors.Wrap(err, "zstd decode")
	case ".gz":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		return out, errors.Wrap(err, "gzip decode")
	}
	return data, nil
}

// writeOutput writes data to path, or stdout when path is empty or "-".
// Output paths ending in .zst or .gz are compressed.
func writeOutput(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errors.Wrap(err, "zstd")
		}
		data = enc.EncodeAll(data, nil)
		_ = enc.Close()
	case ".gz":
		var b bytes.Buffer
		w := gzip.NewWriter(&b)
		if _, err := w.Write(data); err != nil {
			return errors.Wrap(err, "gzip")
		}
		if err := w.Close(); err != nil {
			return errors.Wrap(err, "gzip")
		}
		data = b.Bytes()
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return errors.Wrap(err, "write output")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write output")
}

// parsePath resolves "7.street.1" against desc. It returns the tag path and
// the declaration of the last field.
func parsePath(desc *descriptor.Message, s string) ([]uint32, *descriptor.Field, error) {
	if s == "" {
		return nil, nil, errors.New("empty path")
	}
	var (
		path []uint32
		f    *descriptor.Field
		cur  = desc
	)
	for i, seg := range strings.Split(s, ".") {
		if cur == nil {
			return nil, nil, errors.Errorf("path %q: %s is not a message", s, strings.Join(strings.Split(s, ".")[:i], "."))
		}
		if n, err := strconv.ParseUint(seg, 10, 32); err == nil {
			f = cur.Lookup(uint32(n))
		} else {
			f = cur.FieldByName(seg)
		}
		if f == nil {
			return nil, nil, errors.Errorf("path %q: no field %q in %s", s, seg, cur.Name)
		}
		path = append(path, f.Tag)
		cur = f.Message
	}
	return path, f, nil
}

// parseValue converts a command-line value to the Go type the field takes.
func parseValue(f *descriptor.Field, s string) (any, error) {
	var (
		v   any
		err error
	)
	switch f.Type {
	case descriptor.TypeBool:
		v, err = strconv.ParseBool(s)
	case descriptor.TypeInt32, descriptor.TypeSint32, descriptor.TypeSfixed32,
		descriptor.TypeInt64, descriptor.TypeSint64, descriptor.TypeSfixed64:
		v, err = strconv.ParseInt(s, 0, 64)
	case descriptor.TypeUint32, descriptor.TypeFixed32, descriptor.TypeUint64, descriptor.TypeFixed64:
		v, err = strconv.ParseUint(s, 0, 64)
	case descriptor.TypeFloat, descriptor.TypeDouble:
		v, err = strconv.ParseFloat(s, 64)
	case descriptor.TypeEnum:
		if n, perr := strconv.ParseInt(s, 0, 32); perr == nil {
			return n, nil
		}
		return s, nil
	case descriptor.TypeString, descriptor.TypeBytes:
		return s, nil
	default:
		return nil, errors.Errorf("cannot set %s field %s from the command line", f.Type, f.Name)
	}
	return v, errors.Wrapf(err, "value for %s", f.Name)
}
