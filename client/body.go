package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
)

// payload is a transport-ready query body with its content headers.
type payload struct {
	reader      io.Reader
	contentType string

	// contentLength is -1 when the transport should derive the length
	// from the stream, as with file bodies.
	contentLength int64
}

// buildPayload converts a logical query body into its wire form.
// Unrecognized body types are silently dropped rather than rejected.
func buildPayload(body any) (*payload, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil

	case map[string]any:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding query body: %w", err)
		}

		return &payload{
			reader:        bytes.NewReader(data),
			contentType:   contentTypeJSON,
			contentLength: int64(len(data)),
		}, nil

	case FilePath:
		f, err := os.Open(string(b))
		if err != nil {
			return nil, fmt.Errorf("opening body file: %w", err)
		}

		return &payload{
			reader:        f,
			contentType:   contentTypeOctet,
			contentLength: -1,
		}, nil

	case string:
		return &payload{
			reader:        strings.NewReader(b),
			contentType:   contentTypeOctet,
			contentLength: int64(len(b)),
		}, nil

	case []byte:
		return &payload{
			reader:        bytes.NewReader(b),
			contentType:   contentTypeOctet,
			contentLength: int64(len(b)),
		}, nil

	default:
		// Structs (and pointers to them) are accepted as JSON documents
		// so callers can send typed request models.
		rv := reflect.ValueOf(body)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, nil
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, nil
		}

		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding query body: %w", err)
		}

		return &payload{
			reader:        bytes.NewReader(data),
			contentType:   contentTypeJSON,
			contentLength: int64(len(data)),
		}, nil
	}
}

// countingReader reports cumulative bytes read to fn, forwarding the
// upload byte counts of a query body to the progress meter. Close is
// delegated so file bodies are released by the transport.
type countingReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(sent, total int64)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.read += int64(n)
		cr.fn(cr.read, cr.total)
	}

	return n, err
}

func (cr *countingReader) Close() error {
	if closer, ok := cr.r.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
