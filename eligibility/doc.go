// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package eligibility decides whether a user may take part in a poll or
survey.

Checks run in a fixed order and the first failure wins:

 1. the caller is identified and exists (not_logged_in)
 2. required profile fields are filled (incomplete_profile, with the
    missing field names)
 3. the caller belongs to a target group, when the subject has any
    (wrong_group)
 4. the subject is open and now lies in its window (poll_not_active or
    survey_closed)
 5. polls only: the caller has not voted yet (already_voted)

The checker only reads. Store failures come back as errors; a user who
may not participate gets a Result with a reason.

Population computes the eligible set live at read time, limited to users
registered by the subject's end so later sign-ups do not inflate turnout
figures.
*/
package eligibility
