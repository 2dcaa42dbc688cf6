package app

import (
	"bitwise74/model-vault/config"
	"bitwise74/model-vault/db"
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/registry"
	"bitwise74/model-vault/internal/service"
	"bitwise74/model-vault/internal/storage"
	"bitwise74/model-vault/pkg/security"
	"bitwise74/model-vault/pkg/validators"
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultTokenTTL = time.Hour * 24 * 30

// NewStorage builds the provider selected by storage.type. It's called
// once per process.
func NewStorage(ctx context.Context) (storage.Provider, error) {
	switch t := viper.GetString("storage.type"); t {
	case "local":
		l, err := storage.NewLocal(viper.GetString("storage.local.path"))
		if err != nil {
			return nil, err
		}

		zap.L().Info("Using local storage", zap.String("path", l.Root()))
		return l, nil
	case "remote":
		s, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:          viper.GetString("storage.s3.bucket"),
			Region:          viper.GetString("storage.s3.region"),
			AccessKeyID:     viper.GetString("storage.s3.access_key_id"),
			SecretAccessKey: viper.GetString("storage.s3.secret_access_key"),
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			AccountID:       viper.GetString("storage.s3.account_id"),
			PathStyle:       viper.GetBool("storage.s3.path_style"),
			KeyPrefix:       viper.GetString("storage.s3.key_prefix"),
			PublicBaseURL:   viper.GetString("storage.s3.public_base_url"),
			PresignExpiry:   viper.GetDuration("storage.s3.presign_expiry"),
			Timeout:         viper.GetDuration("storage.s3.timeout"),
			UploadTimeout:   viper.GetDuration("storage.s3.upload_timeout"),
			PartSize:        viper.GetInt64("storage.s3.part_size") << 20,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize remote storage, %w", err)
		}

		zap.L().Info("Using remote storage", zap.String("bucket", *s.Bucket))
		return s, nil
	default:
		return nil, fmt.Errorf("invalid storage type %q", t)
	}
}

// NewDeps opens the database, migrates it and wires every service from the
// loaded configuration
func NewDeps(ctx context.Context) (*internal.Deps, error) {
	gdb, err := db.New(viper.GetString("db.driver"), viper.GetString("db.dsn"))
	if err != nil {
		return nil, err
	}

	closeDB := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	}

	if err := db.Migrate(gdb); err != nil {
		closeDB()
		return nil, err
	}

	store, err := NewStorage(ctx)
	if err != nil {
		closeDB()
		return nil, err
	}

	reg := registry.New(gdb, store)

	return &internal.Deps{
		DB:       gdb,
		Argon:    security.New(),
		Storage:  store,
		Registry: reg,
		Checker: service.NewIntegrityChecker(reg, store, service.IntegrityOptions{
			Concurrency: viper.GetInt("integrity.concurrency"),
		}),
		JWTSecret:     []byte(viper.GetString("jwt.secret")),
		TokenTTL:      defaultTokenTTL,
		SecureCookies: viper.GetBool("host.ssl.enabled"),
		UploadRules: validators.UploadRules{
			MaxSize:     config.MaxUploadSize(),
			AllowedExts: config.AllowedExtensions(),
		},
	}, nil
}
