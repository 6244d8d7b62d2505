// Package qr renders coupon tokens as QR code images.
package qr

import (
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// ImageSize is the rendered QR code width/height in pixels.
const ImageSize = 400

// Payload is the JSON document encoded in the QR image. Scanner stations
// read Token back out of it and submit it for redemption.
type Payload struct {
	Token     string    `json:"token"`
	TeamName  string    `json:"team_name"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Renderer satisfies image-renderer interfaces with the package Render.
type Renderer struct{}

func (Renderer) Render(token, teamName string) ([]byte, error) {
	return Render(token, teamName)
}

// Render encodes the payload as a PNG QR code with high error correction
// (checkpoint scans happen on crumpled printouts and phone screens).
func Render(token, teamName string) ([]byte, error) {
	payload := Payload{
		Token:    token,
		TeamName: teamName,
		IssuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.High, ImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
