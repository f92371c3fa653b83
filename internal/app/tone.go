package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/bedclock/internal/audio"
)

// toneOutput is the part of the audio coordinator the tone player drives.
type toneOutput interface {
	PlayTone(ctx context.Context, freq int, d time.Duration) error
}

type toneRequest struct {
	pattern audio.Pattern
	limit   time.Duration // zero repeats until stopped
	seq     uint64
}

// tonePlayer repeats a beep pattern by issuing short blocking bursts on
// its own goroutine, so the main loop keeps polling the button.
type tonePlayer struct {
	out   toneOutput
	burst time.Duration

	reqs   chan toneRequest
	seq    atomic.Uint64
	active atomic.Uint64 // seq of the sounding request, 0 when silent

	mu          sync.Mutex // orders bursts against Play and Stop
	cancelBurst context.CancelFunc
	burstDone   chan struct{}
}

func newTonePlayer(out toneOutput, burst time.Duration) *tonePlayer {
	if burst <= 0 {
		burst = 50 * time.Millisecond
	}
	return &tonePlayer{out: out, burst: burst, reqs: make(chan toneRequest, 1)}
}

// Play starts p, replacing whatever was playing. A positive limit stops
// it after that long.
func (t *tonePlayer) Play(p audio.Pattern, limit time.Duration) {
	seq := t.seq.Add(1)
	t.switchTo(seq)
	t.send(toneRequest{pattern: p, limit: limit, seq: seq})
}

// Stop silences the player. When it returns no burst is being written, so
// the caller may hand the output to a file.
func (t *tonePlayer) Stop() {
	t.switchTo(0)
	t.send(toneRequest{})
}

// switchTo makes seq the only request allowed to start bursts, then
// cancels the burst in flight and waits for it to return.
func (t *tonePlayer) switchTo(seq uint64) {
	t.mu.Lock()
	t.active.Store(seq)
	cancel, done := t.cancelBurst, t.burstDone
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// beginBurst registers a burst for seq. It fails if seq was superseded.
func (t *tonePlayer) beginBurst(ctx context.Context, seq uint64) (context.Context, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active.Load() != seq {
		return nil, nil, false
	}
	bctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancelBurst, t.burstDone = cancel, done
	return bctx, func() {
		cancel()
		t.mu.Lock()
		t.cancelBurst, t.burstDone = nil, nil
		t.mu.Unlock()
		close(done)
	}, true
}

// Active reports whether a pattern is playing.
func (t *tonePlayer) Active() bool { return t.active.Load() != 0 }

// send keeps only the newest request.
func (t *tonePlayer) send(r toneRequest) {
	for {
		select {
		case t.reqs <- r:
			return
		default:
		}
		select {
		case <-t.reqs:
		default:
		}
	}
}

func (t *tonePlayer) run(ctx context.Context) {
	var (
		cur     toneRequest
		started time.Time
	)
	for {
		if cur.pattern == nil {
			select {
			case <-ctx.Done():
				return
			case cur = <-t.reqs:
				started = time.Now()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case cur = <-t.reqs:
			started = time.Now()
			continue
		default:
		}

		elapsed := time.Since(started)
		if cur.limit > 0 && elapsed >= cur.limit {
			t.active.CompareAndSwap(cur.seq, 0)
			cur = toneRequest{}
			continue
		}

		freq, on := cur.pattern.At(elapsed)
		if on {
			bctx, end, ok := t.beginBurst(ctx, cur.seq)
			if !ok {
				cur = toneRequest{}
				continue
			}
			err := t.out.PlayTone(bctx, freq, t.burst)
			cancelled := bctx.Err() != nil
			end()
			if err == nil || cancelled {
				continue
			}
			slog.Debug("[AUDIO] tone burst failed", "freq", freq, "error", err)
		}

		timer := time.NewTimer(t.burst)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case cur = <-t.reqs:
			started = time.Now()
		case <-timer.C:
		}
		timer.Stop()
	}
}
