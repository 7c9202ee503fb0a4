package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	testChdir(t, t.TempDir())

	s, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}
	if s.Storage.Driver != "sqlite" {
		t.Errorf("expected default storage driver sqlite, got %s", s.Storage.Driver)
	}
	if s.Storage.SQLitePath != "inventory.db" {
		t.Errorf("expected default sqlite path, got %s", s.Storage.SQLitePath)
	}
	if s.Blob.Driver != "fs" || s.Blob.FSRoot != "./blobdata" {
		t.Errorf("unexpected blob defaults: %+v", s.Blob)
	}
	if s.Log.Level != "info" || s.Log.Format != "json" {
		t.Errorf("unexpected log defaults: %+v", s.Log)
	}
	if s.Feed.RedisAddr != "" || s.Feed.Stream != "inventory:changes" || s.Feed.MaxLen != 10000 {
		t.Errorf("unexpected feed defaults: %+v", s.Feed)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	content := `
storage:
  driver: postgres
  postgres_dsn: postgres://db/inventory
blob:
  driver: s3
  s3:
    bucket: attachments
    endpoint: http://minio:9000
    path_style: true
log:
  level: debug
  format: console
feed:
  redis_addr: localhost:6379
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inventory.yaml"), []byte(content), 0o644))

	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres", s.Storage.Driver)
	require.Equal(t, "postgres://db/inventory", s.Storage.PostgresDSN)
	require.Equal(t, "s3", s.Blob.Driver)
	require.Equal(t, "attachments", s.Blob.S3.Bucket)
	require.Equal(t, "us-east-1", s.Blob.S3.Region)
	require.True(t, s.Blob.S3.PathStyle)
	require.Equal(t, "debug", s.Log.Level)
	require.Equal(t, "console", s.Log.Format)
	require.Equal(t, "localhost:6379", s.Feed.RedisAddr)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("INVENTORY_STORAGE_DRIVER", "memory")
	t.Setenv("INVENTORY_BLOB_DRIVER", "memory")
	t.Setenv("INVENTORY_LOG_LEVEL", "warn")

	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "memory", s.Storage.Driver)
	require.Equal(t, "memory", s.Blob.Driver)
	require.Equal(t, "warn", s.Log.Level)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Settings {
		return Settings{
			Storage: Storage{Driver: "memory"},
			Blob:    Blob{Driver: "memory"},
			Log:     Log{Level: "info", Format: "json"},
		}
	}
	cases := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{name: "valid", mutate: func(*Settings) {}, ok: true},
		{name: "unknown storage", mutate: func(s *Settings) { s.Storage.Driver = "mongo" }},
		{name: "postgres without dsn", mutate: func(s *Settings) { s.Storage.Driver = "postgres" }},
		{name: "s3 without bucket", mutate: func(s *Settings) { s.Blob.Driver = "s3" }},
		{name: "unknown blob", mutate: func(s *Settings) { s.Blob.Driver = "gcs" }},
		{name: "unknown log format", mutate: func(s *Settings) { s.Log.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := base()
			tc.mutate(&s)
			err := s.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid settings, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
