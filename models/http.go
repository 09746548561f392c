package models

// APIResponse is the common response envelope of the key directory service.
// Every endpoint answers {success, data?, error?}.
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// KeyUploadRequest publishes the device's symmetric key to the directory.
type KeyUploadRequest struct {
	PublicKey string `json:"publicKey"`
}

// KeyResponse carries a key fetched from the directory.
type KeyResponse struct {
	APIResponse
	Data struct {
		PublicKey string `json:"publicKey"`
	} `json:"data"`
}

// BackupCheckResponse answers the side-effect-free backup existence probe.
type BackupCheckResponse struct {
	APIResponse
	Data struct {
		HasBackup bool `json:"hasBackup"`
	} `json:"data"`
}

// BackupUploadRequest stores a password-wrapped key backup server-side.
type BackupUploadRequest struct {
	Backup BackupBlob `json:"backup"`
}

// BackupResponse carries the stored backup blob back to the client.
type BackupResponse struct {
	APIResponse
	Data struct {
		Backup BackupBlob `json:"backup"`
	} `json:"data"`
}

// MessageKeyResponse carries the per-message decryption key used by the
// push-notification decrypt path.
type MessageKeyResponse struct {
	APIResponse
	Data struct {
		Key string `json:"key"`
	} `json:"data"`
}
