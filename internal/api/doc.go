// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package api provides the HTTP control surface for the detection engine.

Routing uses go-chi/chi with go-chi/cors and go-chi/httprate. Every JSON
response uses the models.APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
	{"status": "error", "data": null, "metadata": {...}, "error": {"code": "...", "message": "..."}}

Routes:

	POST /api/v1/engine/start            start the tick and decay loops
	POST /api/v1/engine/stop             stop both loops
	POST /api/v1/engine/pause            pause ticks (decay continues)
	POST /api/v1/engine/resume           resume ticks
	POST /api/v1/engine/reset            reset every user and the anomaly model
	POST /api/v1/engine/load             load events from a path, URL or request body
	GET  /api/v1/engine/status           running, paused, mode and tick count

	GET  /api/v1/users                   every user with risk level
	GET  /api/v1/users/{id}              one user
	GET  /api/v1/incidents?limit=N       newest incidents first
	GET  /api/v1/incidents/export        incidents as CSV
	GET  /api/v1/events?limit=N          activity log, newest first
	GET  /api/v1/events/export           activity log as CSV
	GET  /api/v1/stats                   engine statistics and storage counts
	GET  /api/v1/checkpoints?limit=N     risk-score checkpoint history

	GET  /api/v1/health/live             liveness
	GET  /api/v1/health/ready            readiness, 503 while the storage breaker is open
	GET  /api/v1/ws                      websocket feed
	GET  /metrics                        Prometheus metrics

Error codes map as follows: VALIDATION_ERROR is 400, FORBIDDEN is 403,
NOT_FOUND is 404, CONFLICT is 409, STORAGE_UNAVAILABLE is 503 and
INTERNAL_ERROR is 500.

A load request naming a path must resolve, after symlinks, to a file inside
server.load_dir (LOAD_DIR). A load request naming a URL must use http or https
and a host listed in server.load_allowed_hosts (LOAD_ALLOWED_HOSTS). Either
setting left empty disables that kind of load and the request gets FORBIDDEN.
Uploads and raw request bodies are not affected.

Control actions are written to the audit log with the request ID and the
client IP.
*/
package api
