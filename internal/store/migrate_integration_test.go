// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskvault/taskvault/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(migrator.Close()).To(Succeed()) })
	})

	It("starts with every migration pending", func() {
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(BeZero())
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Applied).To(BeEmpty())
		Expect(status.Pending).To(HaveLen(3))
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(Equal(uint(3)))
		Expect(status.Dirty).To(BeFalse())
		Expect(status.UpToDate()).To(BeTrue())
	})

	It("rolls back the todos table and reapplies it", func() {
		Expect(migrator.Rollback()).To(Succeed())
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(Equal(uint(2)))
		Expect(status.Pending).To(ConsistOf(store.Migration{Version: 3, Name: "todos"}))

		Expect(migrator.Up()).To(Succeed())
	})

	It("rolls everything back and reapplies", func() {
		Expect(migrator.RollbackAll()).To(Succeed())
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(BeZero())

		Expect(migrator.Up()).To(Succeed())
	})

	It("rejects a token kind outside REFRESH and RESET", func() {
		ctx := context.Background()
		pool, err := store.Open(ctx, connStr, store.DefaultOpenOptions())
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(ctx, `INSERT INTO users (id, email, password_hash) VALUES ('u1', 'kind@example.com', 'h')`)
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, `INSERT INTO tokens (id, user_id, token_hash, kind, expires_at) VALUES ('t1', 'u1', 'h', 'ACCESS', NOW())`)
		Expect(err).To(HaveOccurred())
	})
})
