package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// MaxFileBytes caps how much of a single file is loaded.
const MaxFileBytes = 64 << 20

// AllowedExt checks if a file extension maps to an accepted MIME type.
func AllowedExt(ext string) bool {
	return constants.MIMEFromExt(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

// LoadArtifact reads path and declares its MIME type from the extension.
// Unknown extensions are left with an empty MIME type so the pipeline rejects them.
func LoadArtifact(path string) (entity.RawArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return entity.RawArtifact{}, err
	}
	if info.IsDir() {
		return entity.RawArtifact{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileBytes {
		return entity.RawArtifact{}, fmt.Errorf("%s exceeds %d bytes", path, MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.RawArtifact{}, err
	}
	return entity.RawArtifact{
		Data:       data,
		MIMEType:   constants.MIMEFromExt(filepath.Ext(path)),
		OriginName: filepath.Base(path),
	}, nil
}
