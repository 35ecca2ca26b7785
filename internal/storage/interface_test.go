package storage_test

import (
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

var (
	_ storage.Provider = (*storage.JSONStore)(nil)
	_ storage.Provider = (*sqlite.Store)(nil)
	_ storage.KVStore  = (*sqlite.Store)(nil)
	_ storage.KVStore  = (*postgres.Store)(nil)
)
