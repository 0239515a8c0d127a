package twofactor

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"

	"github.com/khanghh/supagate/params"
	"github.com/pquerna/otp"
	"github.com/valyala/bytebufferpool"
)

const qrCodeDataURIPrefix = "data:image/png;base64,"

type Provisioning struct {
	Secret string
	URI    string
	QRCode string // PNG data URI of URI
}

func qrCodeDataURI(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", err
	}
	img, err := key.Image(params.TwoFactorQRCodeSize, params.TwoFactorQRCodeSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := png.Encode(buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return qrCodeDataURIPrefix + base64.StdEncoding.EncodeToString(buf.B), nil
}

// Provision generates a new secret with its provisioning URI and QR code.
func Provision(account, issuer string) (*Provisioning, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	uri, err := ProvisioningURI(secret, account, issuer)
	if err != nil {
		return nil, err
	}
	qrCode, err := qrCodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	return &Provisioning{
		Secret: secret,
		URI:    uri,
		QRCode: qrCode,
	}, nil
}

func generateFactorID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return hex.EncodeToString(b), nil
}
