package dto

// UploadResponse is returned after a successful attachment ingestion.
type UploadResponse struct {
	MessageID uint   `json:"message_id"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Kind      string `json:"kind"`
	StoredRef string `json:"stored_ref"`
}
