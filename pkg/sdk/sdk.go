package sdk

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/profile"
	"github.com/PravicaInc/walletify-go/pkg/session"
	"github.com/PravicaInc/walletify-go/pkg/storage"
)

// Walletify is the public interface of an initialized SDK.
type Walletify interface {
	// Session manages sign-in, the signed-in user and transaction links.
	Session() *session.UserSession

	// Storage reads and writes the signed-in user's hub files.
	Storage() *storage.Storage

	// Profiles looks up names and profiles of other users.
	Profiles() *profile.Client

	// Close releases the session store.
	Close() error
}

// logLevel is shared by the global logger so NewSDK can turn on debug output.
var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Core is the concrete SDK implementation.
type Core struct {
	*config.Config

	store    session.Store
	session  *session.UserSession
	storage  *storage.Storage
	profiles *profile.Client
}

// NewSDK validates cfg and wires the SDK. The session is kept in a pebble
// database under cfg.SessionDir when set, in memory otherwise.
func NewSDK(cfg *config.Config) (Walletify, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var store session.Store
	if cfg.SessionDir != "" {
		ps, err := session.OpenPebbleStore(cfg.SessionDir)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = session.NewMemoryStore()
	}
	return NewSDKWithStore(cfg, store)
}

// NewSDKWithStore is NewSDK with a caller-provided session store. Close
// closes store when it implements io.Closer.
func NewSDKWithStore(cfg *config.Config, store session.Store) (Walletify, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}

	cfg.Timeouts = cfg.Timeouts.WithDefaults()
	if cfg.Debug {
		logLevel.SetLevel(zap.DebugLevel)
	}

	profiles := profile.NewClient(cfg.Timeouts.Lookup)
	sess := session.New(cfg, store, profiles)
	st := storage.New(sess, hub.NewClient(cfg.Timeouts.HTTP), profiles)

	zap.L().Debug("SDK initialized",
		zap.String("app", cfg.AppDomain),
		zap.String("hub", cfg.HubURL),
		zap.Bool("durableSession", cfg.SessionDir != ""))

	return &Core{
		Config:   cfg,
		store:    store,
		session:  sess,
		storage:  st,
		profiles: profiles,
	}, nil
}

func (c *Core) Session() *session.UserSession { return c.session }

func (c *Core) Storage() *storage.Storage { return c.storage }

func (c *Core) Profiles() *profile.Client { return c.profiles }

// Close releases the session store.
func (c *Core) Close() error {
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
