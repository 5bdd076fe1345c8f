// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package profile reads member profiles owned by the host application.

Profile data lives in user_profile as key/value rows. A FieldMap
translates the logical fields used by the service (first_name,
last_name, nickname, email, phone, city) into deployment-specific meta
keys and flags sensitive fields:

	fields := profile.NewFieldMap(cfg.ProfileFields, cfg.SensitiveFields)
	store := profile.NewStore(conn, fields)

	p, err := store.Load(ctx, userID)
	missing := p.Missing(profile.RequiredFields)

Store satisfies Mapping, the narrow {Get, IsSensitive} view used where
only single-field lookups are needed.
*/
package profile
