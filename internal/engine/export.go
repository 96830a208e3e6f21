package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/logging"
	"github.com/rcliao/memstore/internal/model"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ImportResult reports the outcome of an Import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Export writes every record to w as JSON lines in insertion order. With
// compress set the stream is zstd-compressed.
func (e *Engine) Export(ctx context.Context, w io.Writer, compress bool) (int, error) {
	e.mu.RLock()
	records, err := e.store.List(ctx)
	e.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	out := w
	var zw *zstd.Encoder
	if compress {
		if zw, err = zstd.NewWriter(w); err != nil {
			return 0, goerr.Wrap(err, "create zstd writer")
		}
		out = zw
	}

	enc := json.NewEncoder(out)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return 0, goerr.Wrap(err, "write export", goerr.V("key", r.Key))
		}
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return 0, goerr.Wrap(err, "flush zstd writer")
		}
	}
	return len(records), nil
}

// Import reads JSON-lines records from r, plain or zstd-compressed, and stores
// each one with its original key and timestamp. Records whose key is already
// taken are skipped; records without a key get a generated one.
func (e *Engine) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	br := bufio.NewReader(r)
	var in io.Reader = br
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, goerr.Wrap(err, "create zstd reader")
		}
		defer zr.Close()
		in = zr
	}

	res := &ImportResult{}
	dec := json.NewDecoder(in)
	for {
		var rec model.Record
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return res, goerr.Wrap(model.ErrInvalidInput, "malformed import record", goerr.V("line", res.Imported+res.Skipped+1), goerr.V("cause", err.Error()))
		}

		_, err := e.put(ctx, rec.Key, rec.Content, rec.Metadata, rec.CreatedAt)
		switch {
		case err == nil:
			res.Imported++
		case model.KindOf(err) == model.KindDuplicateKey:
			res.Skipped++
		default:
			return res, err
		}
	}

	logging.From(ctx).Info("import finished", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}
