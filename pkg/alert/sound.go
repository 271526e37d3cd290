package alert

import (
	"context"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// SoundOptions configure a Sound channel.
type SoundOptions struct {
	// Player is the audio player executable, e.g. afplay or paplay.
	Player string
	// Args are passed to Player before File.
	Args []string
	// File is the alert sound. It may be empty if Args already name it.
	File string
	// Timeout stops playback that runs longer than this. 0 means no limit.
	Timeout time.Duration
	// Disabled turns the channel into a no-op.
	Disabled bool
	// OnRelease, if set, is called after the player process has exited and
	// been reaped, with the error returned by the process.
	OnRelease func(err error)
}

// Sound plays a fixed alert sound with an external player.
type Sound struct {
	opts SoundOptions
}

var (
	_ Channel = &Sound{}
	_ Enabler = &Sound{}
)

func NewSound(opts SoundOptions) *Sound {
	return &Sound{opts: opts}
}

func (s *Sound) Name() string { return "sound" }

func (s *Sound) Enabled() bool { return !s.opts.Disabled && s.opts.Player != "" }

func (s *Sound) Deliver(_ context.Context, _ Event) error {
	return s.Play()
}

// Play starts playback and returns without waiting for it to finish.
// The player process is released in the background once it exits.
func (s *Sound) Play() error {
	args := append([]string{}, s.opts.Args...)
	if s.opts.File != "" {
		args = append(args, s.opts.File)
	}

	// Not bound to a request context: playback outlives the cycle.
	cmd := exec.Command(s.opts.Player, args...)
	if err := cmd.Start(); err != nil {
		return &ChannelError{Channel: s.Name(), Kind: KindPlayback, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"player": s.opts.Player,
		"file":   s.opts.File,
		"pid":    cmd.Process.Pid,
	}).Debug("alert sound started")

	go s.release(cmd)

	return nil
}

func (s *Sound) release(cmd *exec.Cmd) {
	var timer *time.Timer
	if s.opts.Timeout > 0 {
		timer = time.AfterFunc(s.opts.Timeout, func() {
			logrus.WithField("timeout", s.opts.Timeout).Warn("alert sound took too long, stopping it")
			_ = cmd.Process.Kill()
		})
	}

	err := cmd.Wait()
	if timer != nil {
		timer.Stop()
	}

	if err != nil {
		logrus.WithError(err).Warn("alert sound player exited with error")
	} else {
		logrus.Trace("alert sound finished")
	}

	if s.opts.OnRelease != nil {
		s.opts.OnRelease(err)
	}
}
