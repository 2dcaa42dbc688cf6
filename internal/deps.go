package internal

import (
	"bitwise74/model-vault/internal/registry"
	"bitwise74/model-vault/internal/service"
	"bitwise74/model-vault/internal/storage"
	"bitwise74/model-vault/pkg/security"
	"bitwise74/model-vault/pkg/validators"
	"time"

	"gorm.io/gorm"
)

// Deps is shared by every handler. It's built once at startup.
type Deps struct {
	DB       *gorm.DB
	Argon    *security.ArgonHash
	Storage  storage.Provider
	Registry *registry.Registry
	Checker  *service.IntegrityChecker

	JWTSecret     []byte
	TokenTTL      time.Duration
	SecureCookies bool
	UploadRules   validators.UploadRules
}
