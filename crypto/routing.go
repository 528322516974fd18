package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyMatchRoutePrefix prefixes every key-match notification route.
const KeyMatchRoutePrefix = "KeyMatch"

// InboxRoute derives the inbox route under which key-match notifications for
// the given identity are delivered. The route is a hash of the key so the host
// relaying mail learns nothing it could not already compute from public data,
// but it does not need to know which computation produced the notification.
func InboxRoute(pk PublicKey) string {
	sum := sha256.Sum256(pk)
	return KeyMatchRoutePrefix + hex.EncodeToString(sum[:])
}
