package entity

// RawArtifact is an uploaded artifact as received at the upload boundary.
// It is owned by a single pipeline invocation and never mutated.
type RawArtifact struct {
	Data       []byte `json:"-"`
	MIMEType   string `json:"mime_type"`
	OriginName string `json:"origin_name"`
}
