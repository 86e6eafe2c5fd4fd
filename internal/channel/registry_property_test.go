package channel_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/testutil"
)

// registryUnderTest is the surface shared by Dispatcher and Client.
type registryUnderTest interface {
	RegisterCallback(name string, cb *channel.Callback, once bool) error
	UnregisterCallback(name string, cb *channel.Callback)
	UnregisterAllCallbacks(name string)
	Channel(name string) (channel.ChannelInfo, bool)
	ListEvents() []channel.ChannelInfo
}

func checkStartedMatchesCallbacks(t *rapid.T, r registryUnderTest, tr *testutil.Transport, keepEmpty bool) {
	for _, info := range r.ListEvents() {
		if info.Started != (len(info.Callbacks) > 0) {
			t.Fatalf("channel %q: started=%v with %d callbacks", info.Name, info.Started, len(info.Callbacks))
		}
		want := 0
		if info.Started {
			want = 1
		}
		if got := tr.Listeners(info.Name); got != want {
			t.Fatalf("channel %q: %d transport listeners, want %d", info.Name, got, want)
		}
		if !keepEmpty && len(info.Callbacks) == 0 {
			t.Fatalf("client kept empty channel %q", info.Name)
		}
	}
}

func runRegistryModel(t *rapid.T, r registryUnderTest, tr *testutil.Transport, keepEmpty bool) {
	names := []string{"a", "b", "c"}
	pool := make([]*channel.Callback, 4)
	for i := range pool {
		pool[i] = channel.NewCallback(func(...any) {})
	}

	steps := rapid.IntRange(1, 40).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		name := rapid.SampledFrom(names).Draw(t, "name")
		cb := rapid.SampledFrom(pool).Draw(t, "cb")
		switch rapid.IntRange(0, 3).Draw(t, "op") {
		case 0:
			_ = r.RegisterCallback(name, cb, rapid.Bool().Draw(t, "once"))
		case 1:
			r.UnregisterCallback(name, cb)
		case 2:
			r.UnregisterAllCallbacks(name)
		case 3:
			tr.Deliver(name)
		}
		checkStartedMatchesCallbacks(t, r, tr, keepEmpty)
	}
}

func TestProperty_DispatcherStartedIffCallbacks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := testutil.NewTransport()
		d, err := channel.NewDispatcher(tr)
		if err != nil {
			t.Fatal(err)
		}
		runRegistryModel(t, d, tr, true)
	})
}

func TestProperty_ClientStartedIffCallbacks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := testutil.NewTransport()
		c, err := channel.NewClient(tr)
		if err != nil {
			t.Fatal(err)
		}
		runRegistryModel(t, c, tr, false)
	})
}

func TestProperty_OnceFiresExactlyOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := testutil.NewTransport()
		d, err := channel.NewDispatcher(tr)
		if err != nil {
			t.Fatal(err)
		}

		calls := 0
		if _, err := d.Once("once", func(...any) { calls++ }); err != nil {
			t.Fatal(err)
		}
		deliveries := rapid.IntRange(1, 10).Draw(t, "deliveries")
		for i := 0; i < deliveries; i++ {
			tr.Deliver("once", i)
		}
		if calls != 1 {
			t.Fatalf("once callback fired %d times over %d deliveries", calls, deliveries)
		}
		if info, _ := d.Channel("once"); len(info.Callbacks) != 0 {
			t.Fatalf("once callback still registered: %v", info.Callbacks)
		}
	})
}
