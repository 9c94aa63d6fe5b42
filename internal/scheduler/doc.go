// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package scheduler drives the detection engine on fixed intervals.

Two loops run while the scheduler is started:

	tick loop   every TickInterval   engine.Tick   (skipped while paused)
	decay loop  every DecayInterval  engine.Decay  (runs while paused)

Start and Stop are idempotent. Stop closes the stop channel and waits for
both loops, so an in-flight tick or decay always completes and no risk
state changes after Stop returns. Pause and Resume only gate the tick loop.

The scheduler implements suture.Service through Serve. Serve starts the
loops when Autostart is set and stops them when its context is canceled;
control requests from the API toggle the loops while Serve is running.
*/
package scheduler
