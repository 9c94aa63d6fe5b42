// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package config loads InsiderWatch configuration with koanf.

Sources are layered, later ones winning:

 1. Built-in defaults (defaultConfig)
 2. A YAML file from CONFIG_PATH, or the first of insiderwatch.yaml,
    config.yaml, /etc/insiderwatch/config.yaml
 3. Environment variables listed in envMappings

Example file:

	users:
	  - {id: user_A, role: developer}
	  - {id: user_B, role: sales}
	rules:
	  activities:
	    print_large_document: 4
	engine:
	  incident_threshold: 20
	scheduler:
	  tick_interval: 1.2s
	storage:
	  driver: duckdb
	  path: data/insiderwatch.duckdb
	  checkpoint_path: data/checkpoints

Activities from the file are merged over the built-in rule set, so adding a
kind does not drop the defaults. The roster may also be given as
USERS=id:role,id:role. Slice settings such as CORS_ORIGINS and
KAFKA_BROKERS accept comma-separated values.

A configuration that fails Validate aborts startup; this is the only class
of error that does.
*/
package config
