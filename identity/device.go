package identity

import (
	"fmt"

	"github.com/tobael/splitledger/crypto"
)

// DeviceIdentity is a short-lived Ed25519 keypair authorized by a root key;
// it signs ledger entries.
type DeviceIdentity struct {
	KeyPair crypto.KeyPair
}

// NewDeviceIdentity generates a fresh device identity.
func NewDeviceIdentity() (DeviceIdentity, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("identity: new device identity: %w", err)
	}
	return DeviceIdentity{KeyPair: kp}, nil
}

// PublicKey returns the device's public key.
func (d DeviceIdentity) PublicKey() crypto.PublicKey { return d.KeyPair.Public }

// DeviceAuthorizationMessage is the canonical signed message described in
// §3(a): `{device_public_key, root_public_key, authorized_at}`. It is
// signed by the owning root key and embedded in a DeviceAuthorized entry's
// payload as `authorization_signature`.
type DeviceAuthorizationMessage struct {
	DevicePublicKey crypto.PublicKey `json:"device_public_key"`
	RootPublicKey   crypto.PublicKey `json:"root_public_key"`
	AuthorizedAt    int64            `json:"authorized_at"`
}

// SignDeviceAuthorization lets a root identity authorize a device for a
// given timestamp (which, when embedded in a DeviceAuthorized entry, MUST
// equal that entry's timestamp per §3(a)).
func SignDeviceAuthorization(root RootIdentity, device crypto.PublicKey, authorizedAt int64) (crypto.Signature, error) {
	msg := DeviceAuthorizationMessage{
		DevicePublicKey: device,
		RootPublicKey:   root.PublicKey(),
		AuthorizedAt:    authorizedAt,
	}
	_, sig, err := root.Sign(msg)
	if err != nil {
		return "", fmt.Errorf("identity: sign device authorization: %w", err)
	}
	return sig, nil
}

// VerifyDeviceAuthorization verifies a DeviceAuthorizationMessage's
// signature under the claimed root public key (§4.3 DeviceAuthorized rule).
func VerifyDeviceAuthorization(msg DeviceAuthorizationMessage, sig crypto.Signature) bool {
	return crypto.VerifyMessage(msg.RootPublicKey, msg, sig)
}
