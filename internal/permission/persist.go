package permission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/harunnryd/kura/internal/backend"
	kuraErrors "github.com/harunnryd/kura/internal/errors"

	"github.com/natefinch/atomic"
)

type persister interface {
	persist(doc document) error
	path() string
}

type memoryPersister struct{}

func (memoryPersister) persist(document) error { return nil }
func (memoryPersister) path() string           { return backend.InMemoryPath }

type filePersister struct {
	dir backend.PermissionDir
}

func (p filePersister) path() string { return p.dir.Path() }

// read returns found=false when the file does not exist. An empty file reads
// as an empty document.
func (p filePersister) read() (doc document, found bool, err error) {
	data, err := os.ReadFile(p.dir.Path())
	if os.IsNotExist(err) {
		return document{}, false, nil
	}
	if err != nil {
		return document{}, false, kuraErrors.File(err)
	}

	doc.Version = CurrentVersion
	if len(bytes.TrimSpace(data)) == 0 {
		doc.Permissions = make(map[string][]Record)
		return doc, true, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, false, kuraErrors.Deserialize(fmt.Errorf("%s: %w", p.dir.Path(), err))
	}
	if doc.Permissions == nil {
		doc.Permissions = make(map[string][]Record)
	}
	return doc, true, nil
}

// persist writes the document next to the target and renames it into place.
func (p filePersister) persist(doc document) error {
	if err := os.MkdirAll(p.dir.Dir, 0o755); err != nil {
		return kuraErrors.Directory(err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return kuraErrors.File(err)
	}

	tmp := p.dir.TempPath()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kuraErrors.File(err)
	}
	if err := atomic.ReplaceFile(tmp, p.dir.Path()); err != nil {
		_ = os.Remove(tmp)
		return kuraErrors.File(err)
	}
	return nil
}
