package wire

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const schedulerChanSize = 512

// Dispatcher routes received messages toward handling. Frame-scheduled
// message types are held back and coalesced until the next session frame.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Msg) error

	// HandleFrame releases the coalesced frame-scheduled message, if any.
	HandleFrame()
}

// Consumer exposes the messages ready to be handled.
type Consumer interface {
	Messages() <-chan Msg
}

// Scheduler is the in-order Dispatcher/Consumer used by connection pumps.
// Cursor updates are latest-wins within a frame; everything else passes
// straight through.
type Scheduler struct {
	messages chan Msg

	mutex     sync.Mutex
	frameMsg  Msg
	hasFrame  bool
	closeOnce sync.Once
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		messages: make(chan Msg, schedulerChanSize),
	}
}

func (s *Scheduler) Dispatch(ctx context.Context, msg Msg) error {
	if msg.Type == MsgTypeCursorUpdate {
		s.mutex.Lock()
		s.frameMsg = msg
		s.hasFrame = true
		s.mutex.Unlock()
		return nil
	}

	select {
	case s.messages <- msg:
		return nil

	case <-ctx.Done():
		return ctx.Err()

	default:
		return errors.New("message backlog is full").
			WithTag("msg_type", msg.Type).
			WithTag("backlog_size", schedulerChanSize)
	}
}

func (s *Scheduler) HandleFrame() {
	s.mutex.Lock()
	msg, ok := s.frameMsg, s.hasFrame
	s.hasFrame = false
	s.mutex.Unlock()

	if !ok {
		return
	}

	// Never blocks the frame tick; a stale cursor is droppable.
	select {
	case s.messages <- msg:
	default:
	}
}

func (s *Scheduler) Messages() <-chan Msg {
	return s.messages
}

func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		s.hasFrame = false
		s.mutex.Unlock()

		for len(s.messages) != 0 {
			<-s.messages
		}
	})
}
