package cloud

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// appIDCode identifies this app install to the vendor; it is appended
// to the account username to form the broker username.
const appIDCode = "0123456789abcdef"

// vendorPublicKey seals the broker password before it is stored on
// the account record. Shipped by the vendor app, not account
// specific.
const vendorPublicKey = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA0f7mbMVc/YIYQbR8Ty3u
7yx0cKX6Gt7JkVQrWynI7xM6/yVPMC1I7nXdjMlVPpc06UXoc5ClQNsTbQ4vumFg
2RZPQwAOc7yL1Y8t1W0b9jMTztu32ZzlobfzIVkIO1R7x1I+pkyp6QDm/MnvWyeu
CM77gS2bDv47H9COQn/gy/fy9uecyWCY3u+dXQhujLPrSJ2FFs6SwD0t5QEJjdrC
ftkKQFsflm+i5RQZBMNGT3LdAMnPK4avG642Afum0SzmNrEZrIo7pr2w0fvokbWB
SOOeEdGAx7UVI1kHssOohqW37yJzzFMIlahZSEJ0A3Dm6yrtgobp2mQlCisqsVW4
XwIDAQAB
-----END PUBLIC KEY-----`

// sealPassword encrypts the broker password with the vendor public
// key (PKCS#1 v1.5) and returns it base64 encoded.
func sealPassword(password string) (string, error) {
	block, _ := pem.Decode([]byte(vendorPublicKey))
	if block == nil {
		return "", errors.New("cloud: bad vendor public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("cloud: parsing vendor public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return "", errors.New("cloud: vendor public key is not RSA")
	}
	sealed, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("cloud: sealing broker password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
