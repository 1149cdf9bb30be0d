package media

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"messaging-service/internal/models"
)

// StoredObject describes a persisted attachment.
type StoredObject struct {
	Key  string
	URL  string
	Kind models.MessageKind
	Size int64
}

// ObjectStore persists message attachments and serves back a public URL.
type ObjectStore interface {
	Save(ctx context.Context, name string, r io.Reader) (StoredObject, error)
}

var kindByExtension = map[string]models.MessageKind{
	".jpg":  models.KindImage,
	".jpeg": models.KindImage,
	".png":  models.KindImage,
	".gif":  models.KindImage,
	".webp": models.KindImage,
	".mp4":  models.KindVideo,
	".webm": models.KindVideo,
	".mov":  models.KindVideo,
	".mp3":  models.KindAudio,
	".ogg":  models.KindAudio,
	".wav":  models.KindAudio,
	".m4a":  models.KindAudio,
}

// KindForFilename classifies an attachment by extension. Anything
// unrecognized is a generic file.
func KindForFilename(name string) models.MessageKind {
	ext := strings.ToLower(filepath.Ext(name))
	if kind, ok := kindByExtension[ext]; ok {
		return kind
	}
	return models.KindFile
}
