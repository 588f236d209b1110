// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package repository

import (
	"context"
	"time"

	"github.com/poiesic/viewstore/storage"
)

// DefaultHeartbeatInterval is used when StartHeartbeat gets a non-positive
// interval.
const DefaultHeartbeatInterval = 30 * time.Second

// StartHeartbeat pings the backend every interval while the repository is
// connected. The first failed ping disconnects the repository, which emits
// EventDisconnect, and ends the heartbeat. Adapters that do not implement
// storage.Pinger get no heartbeat. The returned function stops the
// heartbeat and waits for it to exit.
func (r *Repository) StartHeartbeat(ctx context.Context, interval time.Duration) (stop func()) {
	pinger, ok := r.adapter.(storage.Pinger)
	if !ok {
		return func() {}
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if r.State() != Connected {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("heartbeat failed, disconnecting", "backend", r.adapter.Name(), "err", err)
				if err := r.Disconnect(context.WithoutCancel(ctx)); err != nil {
					r.logger.Error("disconnect after failed heartbeat", "backend", r.adapter.Name(), "err", err)
				}
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
