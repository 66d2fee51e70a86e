// Package timeouts defines shared timeout constants used across the engine.
// Centralizing these values prevents drift between components and makes the
// durations discoverable.
package timeouts

import "time"

// RemoteWrite caps the time allowed for a single remote order write.
const RemoteWrite = 10 * time.Second

// RemoteProbe caps the reachability probe against the remote store.
const RemoteProbe = 2 * time.Second

// StorageBusy is how long SQLite waits on a locked database before failing.
const StorageBusy = 5 * time.Second

// Shutdown limits how long the runtime waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
