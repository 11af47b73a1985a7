// Package runner decides batches of newline-delimited JSON requests. It is
// how the conversational layer calls the engine out of process: one
// request per line in, one response per line out, in input order.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triage-ai/palisade/services/order_strategy/internal/caller"
	"github.com/triage-ai/palisade/services/order_strategy/internal/wire"
)

const (
	DefaultWorkers   = 8
	DefaultBatchSize = 256

	maxLineBytes = 1 << 20
)

// Config controls parallelism.
type Config struct {
	// Workers bounds concurrent decisions within a batch.
	Workers int
	// BatchSize is the number of lines decided before output is flushed.
	BatchSize int
}

// Stats summarises a Process run.
type Stats struct {
	Lines     int
	Succeeded int
	Failed    int
}

// Runner reads requests, decides them in parallel and writes responses.
type Runner struct {
	caller  *caller.Caller
	decoder *wire.Decoder
	workers int
	batch   int
	maxLine int
	logger  *zap.Logger
	newID   func() string
}

func New(c *caller.Caller, dec *wire.Decoder, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Runner{
		caller:  c,
		decoder: dec,
		workers: cfg.Workers,
		batch:   cfg.BatchSize,
		maxLine: maxLineBytes,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

type line struct {
	num     int
	data    []byte
	// tooLong marks a line over the size limit; data is dropped.
	tooLong bool
}

// Process decides every non-blank line of in and writes one response line
// per request to out. A line longer than the size limit is answered as a
// malformed request. It stops between batches when ctx is cancelled; a read
// error stops it after the lines read so far are answered.
func (r *Runner) Process(ctx context.Context, in io.Reader, out io.Writer) (Stats, error) {
	var stats Stats
	br := bufio.NewReaderSize(in, 64*1024)
	w := bufio.NewWriter(out)

	pending := make([]line, 0, r.batch)
	num := 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		responses := r.decideBatch(ctx, pending)
		for _, resp := range responses {
			if _, err := w.Write(append(resp.data, '\n')); err != nil {
				return fmt.Errorf("runner: write: %w", err)
			}
			stats.Lines++
			if resp.ok {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
		}
		pending = pending[:0]
		if err := w.Flush(); err != nil {
			return fmt.Errorf("runner: flush: %w", err)
		}
		return ctx.Err()
	}

	for {
		data, tooLong, readErr := readLine(br, r.maxLine)
		if readErr == nil || len(data) > 0 || tooLong {
			num++
		}
		if tooLong || len(bytes.TrimSpace(data)) > 0 {
			pending = append(pending, line{num: num, data: data, tooLong: tooLong})
		}

		if readErr != nil {
			if err := flush(); err != nil {
				return stats, err
			}
			if errors.Is(readErr, io.EOF) {
				break
			}
			return stats, fmt.Errorf("runner: read line %d: %w", num+1, readErr)
		}
		if len(pending) == r.batch {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	r.logger.Info("batch processed",
		zap.Int("lines", stats.Lines),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// readLine returns the next line without its line ending. Bytes beyond
// limit are discarded and reported with tooLong so the reader stays aligned
// on the following line.
func readLine(br *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		data    []byte
		tooLong bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			data = append(data, chunk...)
			if len(data) > limit+2 {
				tooLong = true
				data = nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		data = bytes.TrimRight(data, "\r\n")
		if len(data) > limit {
			tooLong = true
			data = nil
		}
		return data, tooLong, err
	}
}

type encoded struct {
	data []byte
	ok   bool
}

func (r *Runner) decideBatch(ctx context.Context, lines []line) []encoded {
	results := make([]encoded, len(lines))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, l := range lines {
		i, l := i, l
		g.Go(func() error {
			results[i] = r.decideLine(ctx, l)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) decideLine(ctx context.Context, l line) encoded {
	var (
		req wire.Request
		err error
	)
	if l.tooLong {
		err = fmt.Errorf("request exceeds %d bytes", r.maxLine)
	} else {
		req, err = r.decoder.Decode(l.data)
	}
	id := req.ID
	if id == "" {
		id = r.newID()
	}

	var resp caller.DecisionResponse
	if err != nil {
		r.logger.Debug("malformed request", zap.Int("line", l.num), zap.String("request_id", id), zap.Error(err))
		resp = r.caller.Malformed(err)
	} else {
		resp = r.caller.DecideContext(ctx, req.Context)
	}

	data, err := wire.EncodeResponse(id, resp)
	if err != nil {
		r.logger.Error("encode response", zap.String("request_id", id), zap.Error(err))
		data = []byte(fmt.Sprintf(`{"request_id":%q,"response":{"outcome":"INTERNAL_ERROR","strategy":null,"error_code":"UNEXPECTED_ERROR","error_message":"response encoding failed"}}`, id))
		return encoded{data: data}
	}
	return encoded{data: data, ok: resp.Succeeded()}
}
