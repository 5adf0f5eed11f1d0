// Package jsonutil wraps github.com/go-json-experiment/json with the two
// option sets the benchmark needs: a lenient profile for decoding
// third-party scanner output, and a deterministic profile for writing
// pipeline artifacts that must be byte-identical across runs.
//
// Usage:
//
//	var report trivyReport
//	err := jsonutil.UnmarshalLenient(data, &report)
//
//	out, err := jsonutil.MarshalIndent(doc)
package jsonutil

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Scanner output is not always well-formed in the details: field names
// change case between tool versions, and some tools emit duplicate keys
// or raw bytes from the scanned files.
var lenient = json.JoinOptions(
	json.MatchCaseInsensitiveNames(true),
	jsontext.AllowDuplicateNames(true),
	jsontext.AllowInvalidUTF8(true),
)

var deterministic = json.JoinOptions(
	json.Deterministic(true),
	jsontext.WithIndent("  "),
)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalLenient parses scanner output, tolerating name case
// differences, duplicate names and invalid UTF-8.
func UnmarshalLenient(data []byte, v any) error {
	return json.Unmarshal(data, v, lenient)
}

// Marshal returns the compact JSON encoding of v with map keys sorted.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// MarshalIndent returns the indented JSON encoding of v with map keys
// sorted, followed by a trailing newline.
func MarshalIndent(v any) ([]byte, error) {
	out, err := json.Marshal(v, deterministic)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Write encodes v to w with MarshalIndent formatting.
func Write(w io.Writer, v any) error {
	out, err := MarshalIndent(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid(jsontext.AllowDuplicateNames(true), jsontext.AllowInvalidUTF8(true))
}

// Kind returns the kind of the first JSON value in data: '{', '[', '"',
// '0', 'n', 't', 'f', or 0 for empty or invalid input.
func Kind(data []byte) jsontext.Kind {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; c {
	case '{', '[', '"', 'n', 't', 'f':
		return jsontext.Kind(c)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return '0'
	}
	return 0
}

// SplitLines decodes a stream of concatenated or newline-delimited JSON
// values (JSONL). Each returned value is an independent copy.
func SplitLines(data []byte) ([]jsontext.Value, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data), jsontext.AllowDuplicateNames(true), jsontext.AllowInvalidUTF8(true))
	var values []jsontext.Value
	for {
		v, err := dec.ReadValue()
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return values, err
		}
		values = append(values, v.Clone())
	}
}

// Scalar is a string field that tools sometimes emit as a JSON number,
// boolean or null. Numbers and booleans keep their literal spelling.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	v := jsontext.Value(b)
	switch v.Kind() {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str, jsontext.AllowInvalidUTF8(true)); err != nil {
			return err
		}
		*s = Scalar(str)
	case 'n':
		*s = ""
	case '0', 't', 'f':
		*s = Scalar(bytes.TrimSpace(b))
	default:
		return errors.New("jsonutil: scalar must be a string, number, boolean or null")
	}
	return nil
}

// String returns the scalar text.
func (s Scalar) String() string {
	return string(s)
}

// Strings is a list field that tools sometimes emit as a single scalar.
type Strings []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Strings) UnmarshalJSON(b []byte) error {
	if jsontext.Value(b).Kind() == '[' {
		var items []Scalar
		if err := json.Unmarshal(b, &items, lenient); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				out = append(out, string(it))
			}
		}
		*s = out
		return nil
	}
	var one Scalar
	if err := one.UnmarshalJSON(b); err != nil {
		return err
	}
	if one == "" {
		*s = nil
		return nil
	}
	*s = Strings{string(one)}
	return nil
}
