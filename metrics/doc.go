// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the Prometheus collectors for HTTP traffic,
// votes, survey responses, batch jobs and outbound mail.
package metrics
