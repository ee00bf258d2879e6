package backupcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/tendant/simple-stepup/pkg/errors"
)

const (
	CodeCount = 8
	// alphabet omits 0/O and 1/I; 32 symbols so a random byte maps without bias
	alphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	groupSize = 4
	groups    = 2
)

// ErrCodeNotFound is returned by a Store when no stored hash matches
var ErrCodeNotFound = errors.New("backup code not found")

// Store removes a hash from the user's backup code set in one atomic step
type Store interface {
	// RemoveBackupCode deletes hash from the user's set and returns how many remain.
	// It returns ErrCodeNotFound when the set does not contain hash.
	RemoveBackupCode(ctx context.Context, userID, hash string) (int, error)
}

// Vault generates and redeems single-use recovery codes
type Vault struct {
	hasher Hasher
	store  Store
}

func NewVault(hasher Hasher, store Store) *Vault {
	return &Vault{hasher: hasher, store: store}
}

// Generate returns CodeCount new codes and their hashes. Only the hashes may be persisted.
func (v *Vault) Generate() (codes []string, hashes []string, err error) {
	codes = make([]string, 0, CodeCount)
	hashes = make([]string, 0, CodeCount)
	seen := make(map[string]struct{}, CodeCount)
	for len(codes) < CodeCount {
		code, err := newCode()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		hashes = append(hashes, v.hasher.Hash(code))
	}
	return codes, hashes, nil
}

// Redeem consumes code for the user and returns the number of codes left
func (v *Vault) Redeem(ctx context.Context, userID, code string) (int, error) {
	if len(Normalize(code)) != groupSize*groups {
		return 0, apperrors.InvalidBackupCode()
	}

	remaining, err := v.store.RemoveBackupCode(ctx, userID, v.hasher.Hash(code))
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			slog.Warn("Backup code rejected", "userId", userID)
			return 0, apperrors.InvalidBackupCode()
		}
		return 0, apperrors.Persistence(err, "failed to redeem backup code")
	}

	slog.Info("Backup code redeemed", "userId", userID, "remaining", remaining)
	return remaining, nil
}

// newCode formats as XXXX-XXXX
func newCode() (string, error) {
	buf := make([]byte, groupSize*groups)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, groupSize*groups+groups-1)
	for i, b := range buf {
		if i > 0 && i%groupSize == 0 {
			out = append(out, '-')
		}
		out = append(out, alphabet[int(b)%len(alphabet)])
	}
	return string(out), nil
}
