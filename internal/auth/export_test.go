// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import "time"

func (s *SessionService) SetClock(now func() time.Time) { s.now = now }

func (s *PasswordResetService) SetClock(now func() time.Time) { s.now = now }

const DummyPasswordHash = dummyPasswordHash
