package timerctl

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"arena-timer/internal/domain"
)

// Timer is the countdown the sink drives. Time arithmetic lives behind it.
type Timer interface {
	Start()
	Stop()
	SetDuration(d time.Duration)
	Reset()
}

// EndMessageSetter is implemented by timers that show a message at zero
type EndMessageSetter interface {
	SetEndMessage(msg string)
}

// Sink is a domain.MessageSink applying timer updates to a Timer.
// Binary messages, invalid JSON and unknown actions are logged and ignored.
type Sink struct {
	timer Timer
	log   logr.Logger
}

// NewSink creates a Sink driving timer
func NewSink(timer Timer, log logr.Logger) *Sink {
	return &Sink{timer: timer, log: log}
}

// OnMessage implements domain.MessageSink
func (s *Sink) OnMessage(msg *domain.Message) {
	if msg.IsBinary() {
		s.log.V(1).Info("ignoring binary message", "length", len(msg.Payload))
		return
	}

	update, err := ParseUpdate(msg.Payload)
	if err != nil {
		s.log.Info("ignoring message", "error", err.Error(), "payload", preview(msg.Payload))
		return
	}
	if update == nil {
		s.log.V(1).Info("message is not a timer update", "payload", preview(msg.Payload))
		return
	}
	if err := s.Apply(update); err != nil {
		s.log.Info("ignoring timer update", "error", err.Error())
	}
}

// Apply performs one update on the timer
func (s *Sink) Apply(u *Update) error {
	switch u.Action {
	case ActionStart:
		s.log.Info("starting timer")
		s.timer.Start()

	case ActionStop:
		s.log.Info("stopping timer")
		s.timer.Stop()

	case ActionReset:
		d := u.Duration()
		if d < 0 {
			return fmt.Errorf("reset to negative duration %s", d)
		}
		s.log.Info("resetting timer", "duration", d.String())
		s.timer.SetDuration(d)
		s.timer.Reset()

	case ActionSettings:
		if u.Settings == nil {
			return nil
		}
		if u.Settings.EndMessage != nil {
			setter, ok := s.timer.(EndMessageSetter)
			if !ok {
				s.log.V(1).Info("timer has no end message", "endMessage", *u.Settings.EndMessage)
				return nil
			}
			s.log.Info("setting end message", "endMessage", *u.Settings.EndMessage)
			setter.SetEndMessage(*u.Settings.EndMessage)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, u.Action)
	}
	return nil
}

func preview(p []byte) string {
	if len(p) > 64 {
		p = p[:64]
	}
	return string(p)
}
