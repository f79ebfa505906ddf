// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

//go:build integration

package store_test

import (
	"context"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/permtree/permtree/pkg/perm"
	"github.com/permtree/permtree/pkg/resolver"
	"github.com/permtree/permtree/pkg/store"
	pgstore "github.com/permtree/permtree/pkg/store/postgres"
)

var _ = Describe("Postgres permission store", func() {
	var (
		ctx context.Context
		s   *pgstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupScopes(ctx, env.pool)
		s = pgstore.New(env.pool)
	})

	Describe("Record persistence", func() {
		It("preserves insertion order across save and load", func() {
			records := []store.Record{
				{Key: "ability.fly", State: "allow"},
				{Key: "ability.fly", State: "deny", Context: map[string]string{"world": "survival"}},
				{Key: "cmd.*", State: "deny"},
			}
			Expect(s.Save(ctx, store.ScopeDefault, records)).To(Succeed())

			loaded, err := s.Load(ctx, store.ScopeDefault)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(3))
			Expect(loaded[0].Key).To(Equal("ability.fly"))
			Expect(loaded[1].Context).To(HaveKeyWithValue("world", "survival"))
			Expect(loaded[2].Key).To(Equal("cmd.*"))
		})

		It("round-trips payloads through jsonb", func() {
			Expect(s.Save(ctx, store.ScopeDefault, []store.Record{
				{Key: "teleport.cooldown", State: "allow", Payload: map[string]any{"seconds": 30}},
			})).To(Succeed())

			loaded, err := s.Load(ctx, store.ScopeDefault)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded[0].Payload).To(HaveKeyWithValue("seconds", BeNumerically("==", 30)))
		})

		It("distinguishes an empty scope from a missing one", func() {
			Expect(s.Save(ctx, "group:empty", nil)).To(Succeed())

			loaded, err := s.Load(ctx, "group:empty")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())

			_, err = s.Load(ctx, "group:never-saved")
			Expect(store.IsScopeNotFound(err)).To(BeTrue())
		})

		It("appends after existing positions", func() {
			Expect(s.Save(ctx, store.ScopeDefault, []store.Record{
				{Key: "cmd.fly", State: "deny"},
			})).To(Succeed())
			Expect(s.Append(ctx, store.ScopeDefault, store.Record{
				Key: "cmd.fly", State: "allow",
			})).To(Succeed())

			loaded, err := s.Load(ctx, store.ScopeDefault)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
			Expect(loaded[1].State).To(Equal("allow"), "appended record must come back last")
		})

		It("removes every record at a key", func() {
			Expect(s.Save(ctx, store.ScopeDefault, []store.Record{
				{Key: "cmd.fly", State: "allow"},
				{Key: "cmd.fly", State: "deny", Context: map[string]string{"world": "survival"}},
				{Key: "chat.say", State: "allow"},
			})).To(Succeed())

			Expect(s.Remove(ctx, store.ScopeDefault, "cmd.fly")).To(Succeed())

			loaded, err := s.Load(ctx, store.ScopeDefault)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].Key).To(Equal("chat.say"))
		})

		It("lists stored scopes sorted", func() {
			Expect(s.Save(ctx, "group:moderators", nil)).To(Succeed())
			Expect(s.Save(ctx, store.ScopeDefault, nil)).To(Succeed())

			scopes, err := s.Scopes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(scopes).To(Equal([]string{"default", "group:moderators"}))
		})
	})

	Describe("Resolution against postgres", func() {
		It("flattens defaults, group, and personal scopes", func() {
			actor := resolver.Actor{ID: ulid.Make(), Groups: []string{"moderators"}}

			Expect(s.Save(ctx, store.ScopeDefault, []store.Record{
				{Key: "cmd.*", State: "deny"},
			})).To(Succeed())
			Expect(s.Save(ctx, store.GroupScope("moderators"), []store.Record{
				{Key: "cmd.kick", State: "allow"},
			})).To(Succeed())
			Expect(s.Save(ctx, store.ActorScope(actor.ID), []store.Record{
				{Key: "cmd.kick", State: "deny", Payload: "suspended"},
			})).To(Succeed())

			r := resolver.New(s)

			result, err := r.Query(ctx, actor, "cmd.kick", perm.EmptySet)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsDenied()).To(BeTrue())
			Expect(result.Str("")).To(Equal("suspended"))

			result, err = r.Query(ctx, actor, "cmd.ban", perm.EmptySet)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsDenied()).To(BeTrue(), "wildcard default applies")
		})
	})
})
