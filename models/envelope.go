package models

import "encoding/json"

// EncryptedEnvelope is the wire form of a single encrypted chat message.
// Both fields are base64 (standard encoding). The envelope carries no
// authentication tag: a corrupted ciphertext decrypts to garbage without an
// error. This is a designed limitation of the message layer; attachments go
// through the chunked file cipher, which is authenticated.
type EncryptedEnvelope struct {
	// IV is the fresh 16-byte initialisation vector generated per message.
	IV string `json:"iv"`

	// Ciphertext is the keystream-XORed message body.
	Ciphertext string `json:"ciphertext"`
}

// Marshal serialises the envelope to its JSON wire form.
func (e EncryptedEnvelope) Marshal() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseEnvelope decodes the JSON wire form produced by Marshal.
func ParseEnvelope(raw string) (EncryptedEnvelope, error) {
	var e EncryptedEnvelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return EncryptedEnvelope{}, err
	}
	return e, nil
}
