package storage_test

import (
	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/internal/storage"
	gormstorage "github.com/OCAP2/killcam/internal/storage/gorm"
	"github.com/OCAP2/killcam/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/killcam/internal/storage/sqlite"
)

// Every backend is a director journal.
var (
	_ storage.Backend  = (*memory.Backend)(nil)
	_ storage.Backend  = (*gormstorage.Backend)(nil)
	_ storage.Backend  = (*sqlitestorage.Backend)(nil)
	_ storage.Reader   = (*memory.Backend)(nil)
	_ storage.Reader   = (*gormstorage.Backend)(nil)
	_ director.Journal = storage.Backend(nil)
)
