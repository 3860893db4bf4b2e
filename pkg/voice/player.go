package voice

import (
	"log/slog"
	"sync"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
)

// PlaybackEnd describes how a stretch of playback ended.
type PlaybackEnd int

const (
	// PlaybackCompleted means the queue drained naturally.
	PlaybackCompleted PlaybackEnd = iota
	// PlaybackCanceled means Cancel discarded queued audio.
	PlaybackCanceled
	// PlaybackFailed means the speaker returned an error.
	PlaybackFailed
)

func (e PlaybackEnd) String() string {
	switch e {
	case PlaybackCompleted:
		return "completed"
	case PlaybackCanceled:
		return "canceled"
	case PlaybackFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Player writes queued PCM to a Speaker in PlaybackSlice pieces so that
// playback can be cancelled between slices.
//
// The end callback fires once per stretch of playback, outside the player's
// lock. It reports when playback is finished; it never resumes recording.
type Player struct {
	speaker Speaker
	slice   int
	onEnd   func(PlaybackEnd, error)

	mu      sync.Mutex
	queue   [][]byte
	playing bool
	gen     uint64
	closed  bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewPlayer starts a player goroutine writing format audio to speaker.
// onEnd may be nil.
func NewPlayer(speaker Speaker, format pcm.Format, onEnd func(PlaybackEnd, error)) *Player {
	slice := int(format.BytesInDuration(PlaybackSlice))
	if slice <= 0 {
		slice = 2
	}
	p := &Player{
		speaker: speaker,
		slice:   slice,
		onEnd:   onEnd,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Enqueue appends audio to the playback queue.
func (p *Player) Enqueue(data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	for len(data) > 0 {
		n := min(p.slice, len(data))
		p.queue = append(p.queue, data[:n:n])
		data = data[n:]
	}
	p.playing = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Cancel discards queued audio and aborts the device. It reports whether
// anything was playing.
func (p *Player) Cancel() bool {
	p.mu.Lock()
	was := p.playing
	p.queue = nil
	p.playing = false
	p.gen++
	p.mu.Unlock()

	if !was {
		return false
	}
	if err := p.speaker.Abort(); err != nil {
		slog.Warn("voice: abort playback", "err", err)
	}
	p.notify(PlaybackCanceled, nil)
	return true
}

// Playing reports whether audio is queued or being written.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Close stops the player goroutine and closes the speaker. It is safe to
// call more than once.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue = nil
	p.playing = false
	p.gen++
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	return p.speaker.Close()
}

func (p *Player) loop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.done:
				return
			case <-p.wake:
			}
			continue
		}
		buf := p.queue[0]
		p.queue = p.queue[1:]
		gen := p.gen
		p.mu.Unlock()

		err := p.speaker.Write(buf)

		p.mu.Lock()
		if gen != p.gen {
			// Cancelled or closed while writing.
			p.mu.Unlock()
			continue
		}
		if err != nil {
			p.queue = nil
			p.playing = false
			p.mu.Unlock()
			p.notify(PlaybackFailed, err)
			continue
		}
		finished := len(p.queue) == 0
		if finished {
			p.playing = false
		}
		p.mu.Unlock()
		if finished {
			p.notify(PlaybackCompleted, nil)
		}
	}
}

func (p *Player) notify(end PlaybackEnd, err error) {
	if p.onEnd != nil {
		p.onEnd(end, err)
	}
}
