package objectstore

import "fmt"

// Config selects and configures a store backend.
type Config struct {
	Type      string // "memory", "filesystem" or "s3"
	RootPath  string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// New creates the store named by cfg.Type, wrapped with metrics
// instrumentation.
func New(cfg Config) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "filesystem":
		store, err = NewFilesystemStore(cfg.RootPath)
	case "s3":
		store, err = NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown object store type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(store), nil
}
