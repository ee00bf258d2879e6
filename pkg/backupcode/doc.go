// Package backupcode generates and redeems single-use recovery codes for two-factor authentication.
package backupcode
