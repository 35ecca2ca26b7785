package storage

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

const guestIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewGuestID returns an anonymous identifier of the form guest_<unix ms>_<7 chars>.
func NewGuestID(now time.Time) string {
	suffix := make([]byte, 7)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(guestIDAlphabet))))
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("guest id: %v", err))
		}
		suffix[i] = guestIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s%d_%s", constants.GuestIDPrefix, now.UnixMilli(), suffix)
}

// NewLocalMeta returns the bookkeeping for a freshly created local copy.
func NewLocalMeta(now time.Time) models.LocalMeta {
	return models.LocalMeta{GuestID: NewGuestID(now), CreatedAt: now.UTC()}
}

// NewLocalData returns an empty guest document.
func NewLocalData(now time.Time) models.LocalData {
	return models.LocalData{Data: models.NewSnapshot(), LocalMeta: NewLocalMeta(now)}
}
