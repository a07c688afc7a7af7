package ingest

import (
	"context"
	"io"
	"time"
)

const (
	DefaultMaxDrainChunks = 128
	DefaultChunkTimeout   = 500 * time.Millisecond
	defaultDrainChunkSize = 16 << 10
)

// Drain outcomes.
const (
	DrainEOF        = "eof"
	DrainChunkLimit = "chunk_limit"
	DrainTimeout    = "timeout"
	DrainCanceled   = "canceled"
	DrainError      = "error"
)

// DrainResult describes how much was discarded and why draining stopped.
type DrainResult struct {
	Chunks   int
	Bytes    int64
	Complete bool
	Reason   string
}

// Drainer discards unread request bytes within a chunk budget and a per-chunk deadline.
// Both bounds always apply; zero fields take the defaults.
type Drainer struct {
	MaxChunks    int
	ChunkTimeout time.Duration
	ChunkSize    int
}

type chunk struct {
	n   int
	err error
}

func (d Drainer) limits() (int, time.Duration, int) {
	maxChunks, timeout, size := d.MaxChunks, d.ChunkTimeout, d.ChunkSize
	if maxChunks <= 0 {
		maxChunks = DefaultMaxDrainChunks
	}
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}
	if size <= 0 {
		size = defaultDrainChunkSize
	}
	return maxChunks, timeout, size
}

// Drain reads and discards r until EOF, the chunk budget runs out, one read exceeds the
// timeout, or ctx is done. unblock, when set, must make a pending Read on r return; it is
// invoked when Drain gives up while a read is still in flight.
func (d Drainer) Drain(ctx context.Context, r io.Reader, unblock func()) DrainResult {
	maxChunks, timeout, size := d.limits()

	reqs := make(chan struct{})
	results := make(chan chunk, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, size)
		for range reqs {
			n, err := r.Read(buf)
			results <- chunk{n: n, err: err}
		}
	}()

	stop := func(pending bool) {
		close(reqs)
		if !pending {
			<-done
			return
		}
		if unblock != nil {
			unblock()
		}
		select {
		case <-done:
		case <-time.After(timeout):
		}
	}

	var res DrainResult
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for res.Chunks < maxChunks {
		reqs <- struct{}{}
		timer.Reset(timeout)

		select {
		case c := <-results:
			res.Chunks++
			res.Bytes += int64(c.n)
			if c.err == io.EOF {
				res.Complete = true
				res.Reason = DrainEOF
				stop(false)
				return res
			}
			if c.err != nil {
				res.Reason = DrainError
				stop(false)
				return res
			}
		case <-timer.C:
			res.Reason = DrainTimeout
			stop(true)
			return res
		case <-ctx.Done():
			res.Reason = DrainCanceled
			stop(true)
			return res
		}
	}

	res.Reason = DrainChunkLimit
	stop(false)
	return res
}

// chainReader reads its sources in order. Any error from a source other than the last
// moves on to the next one; the last source's error is returned as is.
type chainReader struct {
	srcs []io.Reader
}

func newChainReader(srcs ...io.Reader) *chainReader {
	return &chainReader{srcs: srcs}
}

func (c *chainReader) Read(p []byte) (int, error) {
	for len(c.srcs) > 0 {
		n, err := c.srcs[0].Read(p)
		if err != nil && len(c.srcs) > 1 {
			c.srcs = c.srcs[1:]
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
	return 0, io.EOF
}
