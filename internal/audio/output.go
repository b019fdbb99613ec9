package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const outputBufferSize = 50 * time.Millisecond

var (
	globalContext *oto.Context
	contextOnce   sync.Once
	contextErr    error
)

// oto allows a single context per process.
func initContext(rate int) (*oto.Context, error) {
	contextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   outputBufferSize,
		}
		var ready chan struct{}
		globalContext, ready, contextErr = oto.NewContext(op)
		if contextErr == nil {
			<-ready
		}
	})
	return globalContext, contextErr
}

// Output is the speaker Device. The oto player pulls from a Timeline, so the
// device clock advances with the samples actually handed to the sound card.
type Output struct {
	*Timeline
	player *oto.Player
}

// NewOutput opens the system audio output at the given rate.
func NewOutput(rate int) (*Output, error) {
	if rate <= 0 {
		rate = SampleRate
	}

	ctx, err := initContext(rate)
	if err != nil {
		return nil, fmt.Errorf("opening audio output: %w", err)
	}

	tl := NewTimeline(rate)
	player := ctx.NewPlayer(tl)
	player.Play()

	return &Output{Timeline: tl, player: player}, nil
}

// Close stops the player and drops queued audio.
func (o *Output) Close() error {
	o.player.Pause()
	if err := o.Timeline.Close(); err != nil {
		return err
	}
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("closing audio player: %w", err)
	}
	return nil
}
