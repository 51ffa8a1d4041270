package transport

import (
	"bytes"
	"sync"

	vistream "github.com/vistream/vistream-go"
)

// progressGuard enforces the progress contract across dispatch and replay:
// fractions are monotonically non-decreasing and 1.0 is reported exactly
// once, by the success path.
type progressGuard struct {
	mu   sync.Mutex
	last float64
	fn   vistream.ProgressFunc
}

func (g *progressGuard) report(fraction float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fraction <= g.last {
		return
	}
	g.last = fraction
	g.fn(fraction)
}

// guardProgress returns a copy of req whose Progress callback is routed
// through a shared guard, so a 401 replay restarting the body reader cannot
// make reported progress go backwards.
func guardProgress(req *Request) *Request {
	if req.Progress == nil {
		return req
	}
	g := &progressGuard{fn: req.Progress}
	guarded := *req
	guarded.Progress = g.report
	return &guarded
}

// progressReader reports upload progress as the transport drains the body.
// The final 1.0 is withheld here; the transport reports it only once the
// server has answered with a success status.
type progressReader struct {
	r      *bytes.Reader
	total  int64
	read   int64
	report vistream.ProgressFunc
}

func newProgressReader(data []byte, report vistream.ProgressFunc) *progressReader {
	return &progressReader{
		r:      bytes.NewReader(data),
		total:  int64(len(data)),
		report: report,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		if fraction := float64(p.read) / float64(p.total); fraction < 1.0 {
			p.report(fraction)
		}
	}
	return n, err
}
