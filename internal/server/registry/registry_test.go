package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ id string }

func (c *fakeConn) ID() string           { return c.id }
func (c *fakeConn) RemoteAddr() string  { return "127.0.0.1:0" }
func (c *fakeConn) Send(_ []byte) error { return nil }

func TestInsertLookupRemove(t *testing.T) {
	r := New()
	a := &fakeConn{id: "a"}

	require.True(t, r.Insert(7, a))
	got, ok := r.Lookup(7)
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, r.Remove(7))
	_, ok = r.Lookup(7)
	assert.False(t, ok)
	assert.False(t, r.Remove(7))
}

func TestInsert_NeverDuplicates(t *testing.T) {
	r := New()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}

	require.True(t, r.Insert(7, a))
	assert.False(t, r.Insert(7, b))

	got, _ := r.Lookup(7)
	assert.Same(t, a, got)
	assert.Equal(t, 1, r.Len())
}

func TestInsert_OneUserPerConn(t *testing.T) {
	r := New()
	a := &fakeConn{id: "a"}

	require.True(t, r.Insert(1, a))
	assert.False(t, r.Insert(2, a))
	assert.Equal(t, []int{1}, r.IDs())

	id, ok := r.Owner(a)
	require.True(t, ok)
	assert.Equal(t, 1, id)

	r.Remove(1)
	_, ok = r.Owner(a)
	assert.False(t, ok)
	assert.True(t, r.Insert(2, a), "conn is free again after its user left")
}

func TestRemoveByConn(t *testing.T) {
	r := New()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	r.Insert(9, a)
	r.Insert(10, b)

	id, ok := r.RemoveByConn(a)
	require.True(t, ok)
	assert.Equal(t, 9, id)

	_, ok = r.Lookup(9)
	assert.False(t, ok)
	_, ok = r.Lookup(10)
	assert.True(t, ok)

	_, ok = r.RemoveByConn(&fakeConn{id: "never logged in"})
	assert.False(t, ok)
}

func TestIDs_Sorted(t *testing.T) {
	r := New()
	for _, id := range []int{5, 1, 3} {
		r.Insert(id, &fakeConn{id: fmt.Sprint(id)})
	}
	assert.Equal(t, []int{1, 3, 5}, r.IDs())
	assert.Empty(t, New().IDs())
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := &fakeConn{id: fmt.Sprint(id)}
			r.Insert(id, c)
			r.Lookup(id)
			r.IDs()
			if id%2 == 0 {
				r.RemoveByConn(c)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, r.Len())
}
