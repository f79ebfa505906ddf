// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

//go:build integration

package resolver_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/permtree/permtree/pkg/perm"
	"github.com/permtree/permtree/pkg/resolver"
	"github.com/permtree/permtree/pkg/store"
)

// transientErrorStore fails Load for the first N calls, then delegates.
// Safe for concurrent use.
type transientErrorStore struct {
	store.Store
	mu        sync.Mutex
	callCount int
	failUntil int
	failErr   error
}

func newTransientErrorStore(backing store.Store, failUntil int, failErr error) *transientErrorStore {
	return &transientErrorStore{
		Store:     backing,
		failUntil: failUntil,
		failErr:   failErr,
	}
}

func (s *transientErrorStore) Load(ctx context.Context, scope string) ([]store.Record, error) {
	s.mu.Lock()
	s.callCount++
	count := s.callCount
	s.mu.Unlock()

	if count <= s.failUntil {
		return nil, s.failErr
	}
	return s.Store.Load(ctx, scope)
}

// alwaysErrorStore fails every Load. Safe for concurrent use.
type alwaysErrorStore struct {
	store.Store
	err error
}

func (s *alwaysErrorStore) Load(_ context.Context, _ string) ([]store.Record, error) {
	return nil, s.err
}

var _ = Describe("Concurrent resolution under store churn", func() {
	const goroutines = 50

	var (
		ctx   context.Context
		actor resolver.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		actor = resolver.Actor{ID: ulid.Make(), Groups: []string{"moderators"}}
	})

	seeded := func() *store.MemoryStore {
		s := store.NewMemoryStore()
		Expect(s.Save(ctx, store.ScopeDefault, []store.Record{
			{Key: "cmd.*", State: "deny"},
			{Key: "chat.say", State: "allow"},
		})).To(Succeed())
		Expect(s.Save(ctx, store.GroupScope("moderators"), []store.Record{
			{Key: "cmd.kick", State: "allow"},
		})).To(Succeed())
		return s
	}

	Describe("Concurrent queries and rebuilds", func() {
		It("always answers from a fully built tree", func() {
			r := resolver.New(seeded())

			var wg sync.WaitGroup
			results := make([]perm.Result, goroutines)
			errs := make([]error, goroutines)

			for i := range goroutines {
				wg.Add(1)
				go func(idx int) {
					defer GinkgoRecover()
					defer wg.Done()
					for range 100 {
						result, err := r.Query(ctx, actor, "cmd.kick", perm.EmptySet)
						results[idx] = result
						errs[idx] = err
						if err != nil {
							return
						}
					}
				}(i)
			}
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for range 25 {
					Expect(r.Rebuild(ctx, actor)).To(Succeed())
				}
			}()
			wg.Wait()

			// A query must never observe a half-merged tree: the group
			// grant is always present, so cmd.kick never falls back to
			// the wildcard denial.
			for i := range goroutines {
				Expect(errs[i]).NotTo(HaveOccurred(), fmt.Sprintf("goroutine %d", i))
				Expect(results[i].IsAllowed()).To(BeTrue(),
					fmt.Sprintf("goroutine %d: expected allow, got %v", i, results[i].State()))
			}
		})

		It("survives an invalidation storm without panicking", func() {
			r := resolver.New(seeded())

			var wg sync.WaitGroup
			for i := range goroutines {
				wg.Add(1)
				go func(idx int) {
					defer GinkgoRecover()
					defer wg.Done()
					for j := range 100 {
						switch (idx + j) % 3 {
						case 0:
							_, err := r.Query(ctx, actor, "chat.say", perm.EmptySet)
							Expect(err).NotTo(HaveOccurred())
						case 1:
							r.Invalidate(actor.ID)
						default:
							r.InvalidateAll()
						}
					}
				}(i)
			}
			wg.Wait()

			result, err := r.Query(ctx, actor, "chat.say", perm.EmptySet)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsAllowed()).To(BeTrue())
		})
	})

	Describe("Store failures", func() {
		It("recovers from transient load failures via retry", func() {
			flaky := newTransientErrorStore(seeded(), 2,
				oops.Code("STORE_IO").Errorf("connection reset"))
			r := resolver.New(flaky,
				resolver.WithRetryConfig(time.Millisecond, 5))

			result, err := r.Query(ctx, actor, "chat.say", perm.EmptySet)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsAllowed()).To(BeTrue())
		})

		It("surfaces a persistent failure to every concurrent caller", func() {
			broken := &alwaysErrorStore{
				Store: store.NewMemoryStore(),
				err:   oops.Code("STORE_IO").Errorf("store down"),
			}
			r := resolver.New(broken,
				resolver.WithRetryConfig(time.Millisecond, 1))

			var wg sync.WaitGroup
			errs := make([]error, goroutines)

			for i := range goroutines {
				wg.Add(1)
				go func(idx int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := r.Query(ctx, actor, "cmd.kick", perm.EmptySet)
					errs[idx] = err
				}(i)
			}
			wg.Wait()

			for i, err := range errs {
				Expect(err).To(HaveOccurred(), fmt.Sprintf("goroutine %d should have failed", i))
			}
			Expect(r.CachedActors()).To(BeZero(), "failed builds must not be cached")
		})
	})
})
