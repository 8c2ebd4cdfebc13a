package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestRecordEventAssignsIncreasingIDs() {
	var last int64
	for i := 0; i < 10; i++ {
		id, err := s.store.RecordEvent(s.ctx, Event{SessionID: "sess-a", Path: "/admin"})
		s.Require().NoError(err)
		s.Greater(id, last)
		last = id
	}
}

func (s *InMemoryStoreSuite) TestRecordEventConcurrentIDsUnique() {
	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	ids := make(chan int64, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id, err := s.store.RecordEvent(s.ctx, Event{SessionID: "sess-c"})
				if err == nil {
					ids <- id
				}
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		s.False(seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	s.Len(seen, writers*perWriter)
}

func (s *InMemoryStoreSuite) TestRecordSessionIsIdempotent() {
	first := Session{ID: "sess-a", FirstIP: "10.0.0.1", UserAgent: "curl/8.0"}
	s.Require().NoError(s.store.RecordSession(s.ctx, first))
	s.Require().NoError(s.store.RecordSession(s.ctx, Session{ID: "sess-a", FirstIP: "192.168.1.1", UserAgent: "other"}))

	summaries, err := s.store.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal("10.0.0.1", summaries[0].FirstIP)
	s.Equal("curl/8.0", summaries[0].UserAgent)
}

func (s *InMemoryStoreSuite) TestListEventsFilter() {
	events := []Event{
		{SessionID: "a", Action: "login_probe", Path: "/admin", Payload: "user=root", IP: "10.0.0.1"},
		{SessionID: "a", Action: "console_view", Path: "/admin", Payload: "", IP: "10.0.0.1"},
		{SessionID: "b", Action: "fake_db_query", Path: "/admin/fake/query", Payload: "select * from users where login='x'", IP: "172.16.0.9"},
	}
	for _, e := range events {
		_, err := s.store.RecordEvent(s.ctx, e)
		s.Require().NoError(err)
	}

	s.Run("matches across action path payload and ip", func() {
		got, err := s.store.ListEvents(s.ctx, "login", 10, 0)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		// Newest first.
		s.Equal("fake_db_query", got[0].Action)
		s.Equal("login_probe", got[1].Action)
	})

	s.Run("filter is case-insensitive", func() {
		got, err := s.store.ListEvents(s.ctx, "LOGIN", 10, 0)
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("count agrees with list", func() {
		count, err := s.store.CountEvents(s.ctx, "login")
		s.Require().NoError(err)
		s.EqualValues(2, count)
	})

	s.Run("empty filter matches everything", func() {
		count, err := s.store.CountEvents(s.ctx, "")
		s.Require().NoError(err)
		s.EqualValues(3, count)
	})

	s.Run("limit and offset page newest-first", func() {
		got, err := s.store.ListEvents(s.ctx, "", 1, 1)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("console_view", got[0].Action)
	})
}

func (s *InMemoryStoreSuite) TestListSessionsOrdering() {
	base := time.Now().Add(-time.Hour)

	s.Require().NoError(s.store.RecordSession(s.ctx, Session{ID: "quiet", CreatedAt: base}))
	s.Require().NoError(s.store.RecordSession(s.ctx, Session{ID: "older", CreatedAt: base.Add(time.Minute)}))
	s.Require().NoError(s.store.RecordSession(s.ctx, Session{ID: "busy", CreatedAt: base.Add(2 * time.Minute)}))

	_, err := s.store.RecordEvent(s.ctx, Event{SessionID: "older", TS: base.Add(10 * time.Minute)})
	s.Require().NoError(err)
	for i := 0; i < 3; i++ {
		_, err := s.store.RecordEvent(s.ctx, Event{SessionID: "busy", TS: base.Add(time.Duration(20+i) * time.Minute)})
		s.Require().NoError(err)
	}

	summaries, err := s.store.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(summaries, 3)

	s.Equal("busy", summaries[0].ID)
	s.EqualValues(3, summaries[0].EventCount)
	s.Equal("older", summaries[1].ID)
	s.Equal("quiet", summaries[2].ID, "event-less sessions sort last")
	s.Nil(summaries[2].LastEventAt)
}
