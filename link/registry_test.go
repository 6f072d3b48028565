package link

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	mu    sync.Mutex
	calls []string
	log   *[]string
	onEv  func(Event)
}

func (r *recorder) OnNotify(ev Event) {
	r.mu.Lock()
	r.calls = append(r.calls, ev.Message)
	if r.log != nil {
		*r.log = append(*r.log, r.name)
	}
	r.mu.Unlock()
	if r.onEv != nil {
		r.onEv(ev)
	}
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestRegistryDispatchOrder(t *testing.T) {
	var order []string
	var reg registry
	a := &recorder{name: "a", log: &order}
	b := &recorder{name: "b", log: &order}
	c := &recorder{name: "c", log: &order}
	reg.add(a)
	reg.add(b)
	reg.add(c)

	reg.dispatch(Event{Message: "ping"})
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"ping"}, b.messages())
}

func TestRegistryRemoveFirstOccurrence(t *testing.T) {
	var reg registry
	a := &recorder{name: "a"}
	reg.add(a)
	reg.add(a)

	assert.True(t, reg.remove(a))
	assert.Equal(t, 1, reg.len())

	reg.dispatch(Event{Message: "x"})
	assert.Equal(t, []string{"x"}, a.messages())

	assert.True(t, reg.remove(a))
	assert.False(t, reg.remove(a))
	reg.add(nil)
	assert.Equal(t, 0, reg.len())
}

func TestRegistryRemovalDuringDispatch(t *testing.T) {
	var reg registry
	b := &recorder{name: "b"}
	a := &recorder{name: "a"}
	late := &recorder{name: "late"}
	reg.add(a)
	reg.add(b)

	a.onEv = func(Event) {
		reg.remove(b)
		reg.add(late)
	}

	reg.dispatch(Event{Message: "first"})
	assert.Equal(t, []string{"first"}, a.messages())
	assert.Empty(t, b.messages(), "removed listener is skipped")
	assert.Empty(t, late.messages(), "listener added mid-dispatch waits for the next event")

	a.onEv = nil
	reg.dispatch(Event{Message: "second"})
	assert.Equal(t, []string{"second"}, late.messages())
}

func TestRegistryConcurrentUse(t *testing.T) {
	var reg registry
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r := &recorder{}
				reg.add(r)
				reg.dispatch(Event{Message: "m"})
				reg.remove(r)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, reg.len())
}
