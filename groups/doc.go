// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package groups manages target groups and their member rosters. City
// groups are derived from profile data by the group_sync batch job;
// manual groups are maintained through the admin API.
package groups
