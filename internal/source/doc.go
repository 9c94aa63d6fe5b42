// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package source produces the activity events consumed by the detection engine.

Three sources implement the same Next/Commit contract:

  - Simulator synthesizes a random roster user and activity on every call.
    It never runs out. Committed events are appended to storage already
    marked processed, so they show up in the activity log.
  - Replay reads the storage replay queue in timestamp order. Commit marks
    the event processed. An empty queue returns models.ErrSourceExhausted.
  - Fallback composes the two. It serves Replay while replay mode is on and
    drops back to the Simulator when the queue is exhausted or storage is
    unavailable. Storage outages are logged once and probed again on an
    exponential backoff.

Loader turns CSV or JSON files, URLs and request bodies into validated events
and a LoadReport listing every rejected row. WriteSampleCSV and
WriteSampleJSON generate sample input files.
*/
package source
