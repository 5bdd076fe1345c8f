// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides caller identity, admin key checks, and ID generation.

# Caller Identity

Login belongs to the host application. The service only reads who the
caller is:

	identity := auth.NewIdentity(cfg.IdentitySecret)
	userID, err := identity.UserID(r)

Without a secret the X-User-ID header is trusted (deployments behind the
host's reverse proxy). With a secret the caller must present an HS256
bearer token whose subject is the user ID:

	token, _ := auth.SignUserToken("user-1", secret, time.Hour)
	req.Header.Set("Authorization", "Bearer "+token)

An empty user ID means an anonymous caller; eligibility reports
not_logged_in for it.

# Admin Keys

Administrative routes compare the X-Admin-Key header against the
configured ADMIN_KEY in constant time:

	err := auth.ValidateAdminKey(r.Header.Get(auth.HeaderAdminKey), cfg.AdminKey)

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
