// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package mail sends invitation mail.
//
// SMTPSender uses gomail and dials once per message; LogSender stands in
// when SMTP_HOST is empty so development setups never reach a relay.
package mail
