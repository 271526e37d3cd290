package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatch delivers ev to every channel concurrently and waits for all of
// them. A failing or panicking channel never affects the others. Outcomes
// are returned in the order of channels.
func Dispatch(ctx context.Context, channels []Channel, ev Event) []Outcome {
	outcomes := make([]Outcome, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			outcomes[i] = deliver(ctx, ch, ev)
		}(i, ch)
	}
	wg.Wait()

	return outcomes
}

func deliver(ctx context.Context, ch Channel, ev Event) (o Outcome) {
	o.Channel = ch.Name()
	logger := logrus.WithFields(logrus.Fields{
		"channel":    o.Channel,
		"eventID":    ev.ID,
		"percentage": ev.Percentage,
	})

	if e, ok := ch.(Enabler); ok && !e.Enabled() {
		logger.Debug("channel disabled, skipping")
		o.Success = true
		o.Skipped = true
		return o
	}

	start := time.Now()
	defer func() {
		o.Duration = time.Since(start)
		if r := recover(); r != nil {
			o.Success = false
			o.Kind = KindPanic
			o.Error = fmt.Sprintf("panic: %v", r)
			logger.Errorf("channel panicked: %v", r)
		}
	}()

	err := ch.Deliver(ctx, ev)
	if err != nil {
		o.Error = err.Error()
		var ce *ChannelError
		if errors.As(err, &ce) {
			o.Kind = ce.Kind
		}
		logger.WithError(err).Warn("alert delivery failed")
		return o
	}

	o.Success = true
	logger.Debug("alert delivered")
	return o
}

// Failed counts the outcomes that did not succeed.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
