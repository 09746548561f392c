package models

// EncryptedAttachment is the wire form of an encrypted file attachment.
// Small files (at or below the configured threshold) travel as a single
// [EncryptedEnvelope] over the whole payload; larger files use the chunked
// [ChunkedFile] form. Exactly one of Envelope and File is set.
type EncryptedAttachment struct {
	FileName string             `json:"file_name"`
	FileType string             `json:"file_type"`
	Envelope *EncryptedEnvelope `json:"envelope,omitempty"`
	File     *ChunkedFile       `json:"file,omitempty"`
}
