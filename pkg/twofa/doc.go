// Package twofa provides step-up authentication for logins: one-time codes
// over SMS or email, single-use backup codes and trusted devices.
//
// # Overview
//
// TwoFaService is assembled from the lower level packages:
//
//	repo := twofa.NewInMemSettingsRepository() // or NewPostgresSettingsRepository(pool)
//	manager := otp.NewManager(otpRepo, twofa.NewEnrollmentLookup(repo), dispatcher, otp.NewHMACHasher(pepper))
//	vault := backupcode.NewVault(backupcode.NewArgon2Hasher(pepper), repo)
//	registry := device.NewRegistry(deviceRepo)
//
//	service := twofa.NewTwoFaService(repo, manager, vault, registry,
//		twofa.WithProfiles(profiles),
//		twofa.WithCountryCode("233"),
//	)
//
// # Login flow
//
//	required, _ := service.Is2FARequired(ctx, userID, device.FingerprintFromRequest(r))
//	if required {
//		result, err := service.SendOTP(ctx, userID, ip, userAgent)
//		// ... later
//		err = service.VerifyOTP(ctx, twofa.VerifyRequest{UserID: userID, Code: code, RememberDevice: true, DeviceID: id})
//	}
//
// A failed VerifyOTP or VerifyBackupCode returns the same "invalid code" message
// to the user whatever the reason.
//
// # Enrollment
//
// Enable2FA returns eight backup codes. They are shown once; only argon2id
// hashes are stored. Calling Enable2FA or RegenerateBackupCodes again
// replaces the whole set.
//
// Accounts flagged with SetForceEnabled cannot disable 2FA.
package twofa
