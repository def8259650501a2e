package service

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/zlnvch/layerdeck/cache"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/mq"
	"github.com/zlnvch/layerdeck/store"
	"github.com/zlnvch/layerdeck/worker"
)

var (
	ErrForbidden   = errors.New("not the owner")
	ErrLayerLocked = errors.New("layer is locked")
	ErrTooMany     = errors.New("design layer limit reached")
)

// Limits bounds what owners can store
type Limits struct {
	MaxUploadBytes     int64
	AllowedMimeTypes   []string
	MaxLayersPerDesign int
}

func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes:     10 << 20,
		AllowedMimeTypes:   []string{"image/png", "image/jpeg", "image/jpg", "image/webp"},
		MaxLayersPerDesign: 500,
	}
}

type Service struct {
	Store        store.LayerdeckStore
	Cache        cache.LayerdeckCache
	MQ           mq.MessageQueue
	TouchBatcher *worker.TouchBatcher
	OAuthConfigs map[string]*oauth2.Config
	// OAuthAPIs maps a provider to its user info endpoint
	OAuthAPIs map[string]OAuthAPI
	JWTSecret []byte
	UploadDir string
	Limits    Limits
}

func NewService(
	store store.LayerdeckStore,
	cache cache.LayerdeckCache,
	mq mq.MessageQueue,
	touchBatcher *worker.TouchBatcher,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	uploadDir string,
	limits Limits,
) (*Service, error) {
	oauthConfigs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:        store,
		Cache:        cache,
		MQ:           mq,
		TouchBatcher: touchBatcher,
		OAuthConfigs: oauthConfigs,
		OAuthAPIs:    defaultOAuthAPIs(),
		JWTSecret:    jwtSecret,
		UploadDir:    uploadDir,
		Limits:       limits,
	}, nil
}

type ownerKey struct{}

// WithOwner scopes ctx to an authenticated owner. Service calls made with
// an owner in ctx only see that owner's designs.
func WithOwner(ctx context.Context, owner models.Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func OwnerFromContext(ctx context.Context) (models.Owner, bool) {
	owner, ok := ctx.Value(ownerKey{}).(models.Owner)
	return owner, ok
}

// authorize fails when ctx carries an owner other than ownerId
func authorize(ctx context.Context, ownerId string) error {
	owner, ok := OwnerFromContext(ctx)
	if ok && owner.Id != ownerId {
		return ErrForbidden
	}
	return nil
}

func (s *Service) touch(designId string) {
	if s.TouchBatcher != nil {
		s.TouchBatcher.Touch(designId, 1)
	}
}
