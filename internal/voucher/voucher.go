package voucher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"sharecrop/internal/models"
	"sharecrop/internal/utils"
)

var (
	ErrNotPickup      = errors.New("order is not a pickup order")
	ErrNotRedeemable  = errors.New("cancelled orders have no voucher")
	ErrInvalidVoucher = errors.New("invalid voucher")
)

// Voucher is what the buyer shows at the farm to collect a pickup order.
type Voucher struct {
	Code      string    `json:"code"`
	OrderID   string    `json:"order_id"`
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	FarmerID  string    `json:"farmer_id"`
	Quantity  float64   `json:"quantity"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Generator seals vouchers with AES-GCM so a farmer can trust a scanned code.
type Generator struct {
	secret []byte
	now    func() time.Time
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:], now: time.Now}
}

// Issue builds a voucher for a pickup order.
func (g *Generator) Issue(o models.Order) (Voucher, error) {
	if o.ShippingMethod != models.ShippingPickup {
		return Voucher{}, ErrNotPickup
	}
	if o.Status == models.OrderCancelled {
		return Voucher{}, ErrNotRedeemable
	}
	return Voucher{
		Code:      utils.GeneratePickupCode(),
		OrderID:   o.ID,
		ListingID: o.ListingID,
		BuyerID:   o.BuyerID,
		FarmerID:  o.FarmerID,
		Quantity:  o.Quantity,
		IssuedAt:  g.now().UTC(),
	}, nil
}

// Seal returns the encrypted, URL-safe form of v.
func (g *Generator) Seal(v Voucher) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	gcm, err := g.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// QR renders the sealed voucher as a PNG QR code.
func (g *Generator) QR(v Voucher, size int) ([]byte, error) {
	token, err := g.Seal(v)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

// Open decrypts a sealed voucher. Tampered or foreign tokens return
// ErrInvalidVoucher.
func (g *Generator) Open(token string) (*Voucher, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVoucher, err)
	}
	gcm, err := g.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidVoucher
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidVoucher
	}

	var v Voucher
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVoucher, err)
	}
	return &v, nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
