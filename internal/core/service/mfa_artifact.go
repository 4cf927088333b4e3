package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/pquerna/otp"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
)

const qrImageSize = 256

// buildEnrollment turns a setup response into the enrollment context. When
// the backend hands out an otpauth:// URI instead of an image, the scannable
// PNG is rendered here. A rendering failure still yields a usable context
// (the secret can be typed in) and is returned alongside it.
func buildEnrollment(userID string, resp *ports.MFASetupResponse) (domain.MFAEnrollment, error) {
	e := domain.MFAEnrollment{UserID: userID, Secret: resp.Secret, QRCode: resp.QRCode}

	switch {
	case strings.HasPrefix(resp.QRCode, "data:image/"):
		e.QRImage = resp.QRCode
	case strings.HasPrefix(resp.QRCode, "otpauth://"):
		key, err := otp.NewKeyFromURL(resp.QRCode)
		if err != nil {
			return e, fmt.Errorf("parse otpauth uri: %w", err)
		}
		e.Issuer = key.Issuer()
		e.Account = key.AccountName()
		if e.Secret == "" {
			e.Secret = key.Secret()
		}
		img, err := key.Image(qrImageSize, qrImageSize)
		if err != nil {
			return e, fmt.Errorf("render enrollment qr: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return e, fmt.Errorf("encode enrollment qr: %w", err)
		}
		e.QRImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return e, nil
}
