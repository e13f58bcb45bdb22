//go:build property

package watcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates the batching guarantees of the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	// Property: a burst faster than the delay yields exactly one batch
	// holding each distinct path once
	properties.Property("burst yields one deduplicated batch", prop.ForAll(
		func(paths []int) bool {
			if len(paths) == 0 {
				return true
			}

			d := NewDebouncer(40*time.Millisecond, len(paths))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go d.Run(ctx)

			distinct := make(map[string]bool)
			for _, p := range paths {
				path := fmt.Sprintf("content/%d.md", p)
				distinct[path] = true
				if !d.Add(ChangeEvent{Path: path, Type: EventTypeModified}) {
					return false
				}
			}

			var batch []ChangeEvent
			select {
			case batch = <-d.Output():
			case <-time.After(2 * time.Second):
				return false
			}

			if len(batch) != len(distinct) {
				return false
			}
			seen := make(map[string]bool)
			for _, e := range batch {
				if seen[e.Path] || !distinct[e.Path] {
					return false
				}
				seen[e.Path] = true
			}

			select {
			case <-d.Output():
				return false
			case <-time.After(100 * time.Millisecond):
				return true
			}
		},
		gen.SliceOfN(20, gen.IntRange(0, 5)),
	))

	// Property: the last event type for a path wins
	properties.Property("latest event type wins", prop.ForAll(
		func(types []int) bool {
			if len(types) == 0 {
				return true
			}

			d := NewDebouncer(30*time.Millisecond, len(types))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go d.Run(ctx)

			for _, ty := range types {
				d.Add(ChangeEvent{Path: "a.md", Type: EventType(ty)})
			}

			select {
			case batch := <-d.Output():
				return len(batch) == 1 && batch[0].Type == EventType(types[len(types)-1])
			case <-time.After(2 * time.Second):
				return false
			}
		},
		gen.SliceOfN(10, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
