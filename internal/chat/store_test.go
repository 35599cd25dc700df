package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryStore interface {
	Store
	Entries(ctx context.Context, user string) ([]Entry, error)
}

type openFunc func(t *testing.T, opts ...Option) entryStore

// stepClock 每次调用前进一秒
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func runStoreTests(t *testing.T, open openFunc) {
	ctx := context.Background()

	t.Run("empty user", func(t *testing.T) {
		s := open(t)
		turns, err := s.FetchAll(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		s := open(t, WithClock(stepClock(epoch)))
		for i := 1; i <= 3; i++ {
			require.NoError(t, s.Append(ctx, "alice", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
		}

		turns, err := s.FetchAll(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []Turn{{"q1", "a1"}, {"q2", "a2"}, {"q3", "a3"}}, turns)
	})

	t.Run("caps at max entries", func(t *testing.T) {
		s := open(t, WithClock(stepClock(epoch)))
		for i := 1; i <= 12; i++ {
			require.NoError(t, s.Append(ctx, "alice", fmt.Sprintf("q%d", i), "a"))

			turns, err := s.FetchAll(ctx, "alice")
			require.NoError(t, err)
			assert.LessOrEqual(t, len(turns), MaxEntries)
		}

		turns, err := s.FetchAll(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, turns, MaxEntries)
		assert.Equal(t, "q8", turns[0].Query)
		assert.Equal(t, "q12", turns[4].Query)
	})

	t.Run("sixth entry evicts the oldest", func(t *testing.T) {
		s := open(t, WithClock(stepClock(epoch)))
		for i := 1; i <= 5; i++ {
			require.NoError(t, s.Append(ctx, "alice", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
		}
		before, err := s.Entries(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, before, 5)

		require.NoError(t, s.Append(ctx, "alice", "q6", "a6"))

		after, err := s.Entries(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, after, 5)
		assert.Equal(t, before[1:], after[:4])
		assert.Equal(t, "q6", after[4].Query)
		for _, e := range after {
			assert.NotEqual(t, before[0].ID, e.ID)
			assert.True(t, e.Timestamp.After(before[0].Timestamp))
		}
	})

	t.Run("users are isolated", func(t *testing.T) {
		s := open(t, WithClock(stepClock(epoch)))
		for i := 0; i < 6; i++ {
			require.NoError(t, s.Append(ctx, "alice", "qa", "aa"))
		}
		require.NoError(t, s.Append(ctx, "bob", "qb", "ab"))

		bob, err := s.FetchAll(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []Turn{{"qb", "ab"}}, bob)

		alice, err := s.FetchAll(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, alice, MaxEntries)
	})

	t.Run("fetch is idempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, "alice", "q", "a"))

		first, err := s.FetchAll(ctx, "alice")
		require.NoError(t, err)
		second, err := s.FetchAll(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("custom cap", func(t *testing.T) {
		s := open(t, WithMaxEntries(2))
		for i := 0; i < 4; i++ {
			require.NoError(t, s.Append(ctx, "alice", fmt.Sprintf("q%d", i), "a"))
		}
		turns, err := s.FetchAll(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []Turn{{"q2", "a"}, {"q3", "a"}}, turns)
	})

	concurrent := []struct {
		name  string
		prior int
		n     int
		want  int
	}{
		{name: "concurrent appends fill the cap", prior: 0, n: 20, want: MaxEntries},
		{name: "concurrent appends below the cap", prior: 1, n: 3, want: 4},
		{name: "concurrent appends on a full history", prior: 5, n: 8, want: MaxEntries},
	}
	for _, tt := range concurrent {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			for i := 0; i < tt.prior; i++ {
				require.NoError(t, s.Append(ctx, "alice", "prior", "a"))
			}

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				maxSeen  int
				appendOK int
			)
			stop := make(chan struct{})
			readerDone := make(chan struct{})
			go func() {
				defer close(readerDone)
				for {
					select {
					case <-stop:
						return
					default:
					}
					turns, err := s.FetchAll(ctx, "alice")
					if err == nil {
						mu.Lock()
						if len(turns) > maxSeen {
							maxSeen = len(turns)
						}
						mu.Unlock()
					}
				}
			}()

			for i := 0; i < tt.n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := s.Append(ctx, "alice", fmt.Sprintf("c%d", i), "a"); err == nil {
						mu.Lock()
						appendOK++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()
			close(stop)
			<-readerDone

			assert.Equal(t, tt.n, appendOK)
			assert.LessOrEqual(t, maxSeen, MaxEntries)

			entries, err := s.Entries(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)

			ids := map[int64]bool{}
			for _, e := range entries {
				assert.False(t, ids[e.ID], "duplicate id %d", e.ID)
				ids[e.ID] = true
			}
		})
	}
}
