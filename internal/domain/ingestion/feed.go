package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/sagerock/ai-law-research/pkg/errors"
)

// MaxLineBytes bounds a single JSONL record.
const MaxLineBytes = 32 << 20

// FeedReader yields the records of a JSON-lines stream. Blank lines are
// skipped and do not consume an offset.
type FeedReader struct {
	scanner *bufio.Scanner
	offset  int64
	err     error
}

func NewFeedReader(r io.Reader) *FeedReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &FeedReader{scanner: sc}
}

// Next returns the next item and false at end of stream. A record that
// fails to decode is returned with Err set; reading continues after it.
func (f *FeedReader) Next() (FeedItem, bool) {
	for f.scanner.Scan() {
		line := bytes.TrimSpace(f.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		item := FeedItem{Offset: f.offset}
		f.offset++
		if err := json.Unmarshal(line, &item.Record); err != nil {
			item.Err = errors.IngestionFailure(errors.Wrap(err, errors.ErrCodeSerialization, "malformed record"), "")
		} else if strings.TrimSpace(item.Record.ID) == "" {
			item.Err = errors.IngestionFailure(errors.New(errors.ErrCodeValidation, "record has no id"), "")
		}
		return item, true
	}
	f.err = f.scanner.Err()
	return FeedItem{}, false
}

// Err reports a stream failure after Next returns false.
func (f *FeedReader) Err() error {
	if f.err == nil {
		return nil
	}
	return errors.Wrap(f.err, errors.ErrCodeFeedFailure, "feed read failed")
}

// Stream sends items at or after from to out until the feed ends or ctx is
// done. out is closed on return.
func Stream(ctx context.Context, r io.Reader, from int64, out chan<- FeedItem) error {
	defer close(out)
	fr := NewFeedReader(r)
	for {
		item, ok := fr.Next()
		if !ok {
			return fr.Err()
		}
		if item.Offset < from {
			continue
		}
		select {
		case out <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

//Personal.AI order the ending
