package sse

import (
	"bufio"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster()
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

func (s *BroadcasterSuite) TestNewBroadcaster() {
	s.NotNil(s.broadcaster.clients)
	s.Equal(0, s.broadcaster.ClientCount())
}

func (s *BroadcasterSuite) TestSubscribeUnsubscribe() {
	c := s.broadcaster.subscribe()
	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.unsubscribe(c)
	s.Equal(0, s.broadcaster.ClientCount())

	// Double unsubscribe is safe.
	s.broadcaster.unsubscribe(c)
	s.Equal(0, s.broadcaster.ClientCount())
}

func (s *BroadcasterSuite) TestBroadcastDelivers() {
	c := s.broadcaster.subscribe()
	defer s.broadcaster.unsubscribe(c)

	s.broadcaster.Broadcast(map[string]string{"kind": "turn_completed"})

	select {
	case payload := <-c.ch:
		s.Contains(string(payload), "turn_completed")
	case <-time.After(time.Second):
		s.Fail("no payload delivered")
	}
}

func (s *BroadcasterSuite) TestBroadcastDropsSlowClient() {
	c := s.broadcaster.subscribe()
	for i := 0; i < clientBuffer+1; i++ {
		s.broadcaster.Broadcast(map[string]int{"seq": i})
	}
	s.Equal(0, s.broadcaster.ClientCount())

	// The channel was closed on drop.
	drained := 0
	for range c.ch {
		drained++
	}
	s.Equal(clientBuffer, drained)
}

func (s *BroadcasterSuite) TestBroadcastNoClients() {
	s.NotPanics(func() {
		s.broadcaster.Broadcast(map[string]string{"kind": "noop"})
	})
}

func (s *BroadcasterSuite) TestServeHTTPStreams() {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.broadcaster.ServeHTTP(rec, req)
	}()

	s.Require().Eventually(func() bool {
		return s.broadcaster.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	s.broadcaster.Broadcast(map[string]string{"kind": "session_reset"})

	s.Require().Eventually(func() bool {
		return strings.Contains(rec.Body.String(), "session_reset")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	s.Equal("text/event-stream", rec.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var dataLines int
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			dataLines++
		}
	}
	s.GreaterOrEqual(dataLines, 2)
}
