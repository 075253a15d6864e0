// Copyright 2024 ledcat Authors
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

// Package cache provides the in-memory frame cache used by playback.
//
// Design Principles:
// 1. Whole-run lifetime - Entries live until the cache is closed; there is no per-entry eviction
// 2. Owned payloads - Every entry holds its own copy of the frame bytes
//
// Currently provides:
// - FrameCache: insertion-ordered frame store keyed by source identifier
// - SaveSnapshot/LoadSnapshot: persist a cache across runs
package cache

import "os"

// Disabled controls whether all frame caches are disabled.
// Set via LEDCAT_CACHE=0 environment variable.
// When true:
// - FrameCache.Lookup() always reports a miss
// - FrameCache.Insert() is a no-op
//
// This is useful for testing and debugging to verify playback works correctly
// without caching, and to isolate cache-related bugs.
var Disabled = os.Getenv("LEDCAT_CACHE") == "0"
