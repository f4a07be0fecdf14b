package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract exercises the Store semantics every backend must share.
// advance moves the backend's clock forward.
func storeContract(t *testing.T, s Store, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "t:missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "t:a", []byte(`{"x":1}`), 0))
		v, err := s.Get(ctx, "t:a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"x":1}`, string(v))

		require.NoError(t, s.Put(ctx, "t:a", []byte(`{"x":2}`), 0))
		v, _ = s.Get(ctx, "t:a")
		assert.JSONEq(t, `{"x":2}`, string(v))
	})

	t.Run("put if absent", func(t *testing.T) {
		require.NoError(t, s.PutIfAbsent(ctx, "t:once", []byte(`1`), 0))
		assert.ErrorIs(t, s.PutIfAbsent(ctx, "t:once", []byte(`2`), 0), ErrConflict)
		v, _ := s.Get(ctx, "t:once")
		assert.Equal(t, `1`, string(v))
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, s.PutIfAbsent(ctx, "t:lock", []byte(`"held"`), 10*time.Second))
		assert.ErrorIs(t, s.PutIfAbsent(ctx, "t:lock", []byte(`"held"`), 10*time.Second), ErrConflict)
		advance(11 * time.Second)
		_, err := s.Get(ctx, "t:lock")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.PutIfAbsent(ctx, "t:lock", []byte(`"held"`), 10*time.Second), "expired key can be taken again")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "t:gone", []byte(`1`), 0))
		require.NoError(t, s.Delete(ctx, "t:gone"))
		_, err := s.Get(ctx, "t:gone")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.Delete(ctx, "t:gone"), "deleting a missing key is fine")
	})

	t.Run("list by prefix", func(t *testing.T) {
		for _, k := range []string{"p:booking:b", "p:booking:a", "p:bookings", "p:session:1"} {
			require.NoError(t, s.Put(ctx, k, []byte(`1`), 0))
		}
		keys, err := s.ListByPrefix(ctx, "p:booking:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p:booking:a", "p:booking:b"}, keys)

		keys, err = s.ListByPrefix(ctx, "p:nothing:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("adjust counter", func(t *testing.T) {
		tests := []struct {
			description string
			delta       int
			want        CounterResult
		}{
			{"created on first use", 2, CounterResult{Applied: true, Booked: 2, Capacity: 5}},
			{"fills to capacity", 3, CounterResult{Applied: true, Booked: 5, Capacity: 5}},
			{"refused past the ceiling", 1, CounterResult{Applied: false, Booked: 5, Capacity: 5}},
			{"release", -4, CounterResult{Applied: true, Booked: 1, Capacity: 5}},
			{"floors at zero", -3, CounterResult{Applied: true, Booked: 0, Capacity: 5}},
		}
		for _, test := range tests {
			got, err := s.AdjustCounter(ctx, "t:event:ny:counter", test.delta, 5)
			require.NoErrorf(t, err, test.description)
			assert.Equalf(t, test.want, got, test.description)
		}
	})

	t.Run("adjust keeps stored capacity", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "t:event:cap:counter", []byte(`{"v":1,"capacity":2,"booked":1}`), 0))
		got, err := s.AdjustCounter(ctx, "t:event:cap:counter", 1, 100)
		require.NoError(t, err)
		assert.Equal(t, CounterResult{Applied: true, Booked: 2, Capacity: 2}, got)
	})

	t.Run("concurrent reservations never exceed capacity", func(t *testing.T) {
		const workers = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.AdjustCounter(ctx, "t:event:race:counter", 3, 10)
				if assert.NoError(t, err) && res.Applied {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 3, applied)
		res, err := s.AdjustCounter(ctx, "t:event:race:counter", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 9, res.Booked)
	})

	t.Run("compare and swap", func(t *testing.T) {
		tests := []struct {
			description string
			old, next   string
			wantErr     error
			wantValue   string
		}{
			{"stale expectation", `"b"`, `"c"`, ErrConflict, `"a"`},
			{"matching expectation", `"a"`, `"c"`, nil, `"c"`},
			{"replayed expectation", `"a"`, `"d"`, ErrConflict, `"c"`},
		}
		require.NoError(t, s.Put(ctx, "t:cas", []byte(`"a"`), 0))
		for _, test := range tests {
			err := s.CompareAndSwap(ctx, "t:cas", []byte(test.old), []byte(test.next), 0)
			if test.wantErr != nil {
				assert.ErrorIsf(t, err, test.wantErr, test.description)
			} else {
				assert.NoErrorf(t, err, test.description)
			}
			v, err := s.Get(ctx, "t:cas")
			require.NoError(t, err)
			assert.Equalf(t, test.wantValue, string(v), test.description)
		}

		assert.ErrorIs(t, s.CompareAndSwap(ctx, "t:cas:missing", []byte(`"a"`), []byte(`"b"`), 0), ErrConflict)

		require.NoError(t, s.CompareAndSwap(ctx, "t:cas", []byte(`"c"`), nil, 0), "empty next deletes")
		_, err := s.Get(ctx, "t:cas")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("compare and swap with ttl", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "t:cas:ttl", []byte(`"a"`), 0))
		require.NoError(t, s.CompareAndSwap(ctx, "t:cas:ttl", []byte(`"a"`), []byte(`"b"`), 10*time.Second))
		advance(11 * time.Second)
		_, err := s.Get(ctx, "t:cas:ttl")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "t:cas:race", []byte(`"new"`), 0))
		const workers = 10
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.CompareAndSwap(ctx, "t:cas:race", []byte(`"new"`), []byte(fmt.Sprintf(`"w%d"`, i)), 0)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, ErrConflict)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 12, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
