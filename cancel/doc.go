// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cancel provides the cooperative cancellation primitives used for
// request timeouts, graceful shutdown and streaming responses.
//
// An [Operation] wraps a unit of in-flight work. Work starts as soon as the
// Operation is constructed, [Operation.Cancel] asks the work to stop and the
// result becomes available once, and only once, through [Operation.Wait].
//
// [Callbacks] adapts "push" cancellation (somebody calls a method) into
// "pull" cancellation (an [Operation] which other code can select on), see
// [FromCallbacks].
//
// Every timeout is a race between the protected [Operation] and one produced
// by [Timeout]. Whichever settles first wins and the loser is canceled.
package cancel
