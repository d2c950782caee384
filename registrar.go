// Package registrar implements a federation registrar: an entity that admits
// openid providers and relying parties as subordinates after checking their
// self-asserted statements against administrator defined rules, and issues
// signed entity statements about them.
package registrar

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-oidfed/lib/cache"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/api/adminapi"
	"github.com/go-oidfed/registrar/keys"
	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage/model"
	"github.com/go-oidfed/registrar/validation"
	"github.com/go-oidfed/registrar/workflow"
)

const entityConfigurationCachePeriod = 5 * time.Second

// Default paths of the federation endpoints
const (
	DefaultFetchPath    = "/fetch"
	DefaultListPath     = "/list"
	DefaultRegisterPath = "/register"
	DefaultEntityPath   = "/entity"
	DefaultHealthPath   = "/health"
	AdminAPIPath        = "/api/v1/admin"
)

// EndpointConf is a type for configuring an endpoint with an internal and external path
type EndpointConf struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// IsSet returns a bool indicating if this endpoint was configured or not
func (c EndpointConf) IsSet() bool {
	return c.Path != "" || c.URL != ""
}

// ValidateURL validates that an external URL is set,
// and if not prefixes the internal path with the passed rootURL and sets it
// at the external url
func (c *EndpointConf) ValidateURL(rootURL string) string {
	if c.URL == "" {
		c.URL, _ = url.JoinPath(rootURL, c.Path)
	}
	return c.URL
}

func (c *EndpointConf) withDefaultPath(path string) {
	if c.Path == "" {
		c.Path = path
	}
}

// Endpoints configures the federation endpoints
type Endpoints struct {
	Fetch    EndpointConf `yaml:"fetch"`
	List     EndpointConf `yaml:"list"`
	Register EndpointConf `yaml:"register"`
}

// Config configures a Registrar
type Config struct {
	// EntityID is the entity id of the federation
	EntityID         string
	OrganizationName string
	// FederationEntityExtra is additional federation_entity metadata
	// published in the own entity statement
	FederationEntityExtra map[string]any
	Endpoints             Endpoints
	Signing               keys.Config
	// StatementLifetime is the default lifetime of issued statements
	StatementLifetime time.Duration
	// FetchTimeout bounds the retrieval of self-asserted statements
	FetchTimeout   time.Duration
	FetcherOptions []statements.FetcherOption
	// AdminAPI configures the admin api; it is not mounted if nil
	AdminAPI *adminapi.Options
	// AccessLog is where the access log is written to; stderr if nil
	AccessLog io.Writer
}

// Registrar is the federation registrar with its http server
type Registrar struct {
	entityID   string
	endpoints  Endpoints
	server     *fiber.App
	serverConf ServerConf
	keys       *keys.Manager
	registry   *registry.Registry
	issuer     *statements.Issuer
	workflow   *workflow.Workflow
}

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

// New creates a new Registrar on top of the passed storage backends
func New(serverConf ServerConf, conf Config, storages model.Backends) (*Registrar, error) {
	if conf.EntityID == "" {
		return nil, errors.New("registrar: entity id must be set")
	}
	conf.Endpoints.Fetch.withDefaultPath(DefaultFetchPath)
	conf.Endpoints.List.withDefaultPath(DefaultListPath)
	conf.Endpoints.Register.withDefaultPath(DefaultRegisterPath)
	fetchURL := conf.Endpoints.Fetch.ValidateURL(conf.EntityID)
	listURL := conf.Endpoints.List.ValidateURL(conf.EntityID)
	registerURL := conf.Endpoints.Register.ValidateURL(conf.EntityID)

	keyManager, err := keys.NewManager(storages.Keys, conf.Signing)
	if err != nil {
		return nil, err
	}
	reg := registry.New(storages.Entities)
	issuer := statements.NewIssuer(
		statements.Config{
			FederationID:          conf.EntityID,
			Lifetime:              conf.StatementLifetime,
			OrganizationName:      conf.OrganizationName,
			FetchEndpoint:         fetchURL,
			ListEndpoint:          listURL,
			RegisterEndpoint:      registerURL,
			FederationEntityExtra: conf.FederationEntityExtra,
		}, keyManager, reg, storages.Statements, storages.KV,
	)
	fetcher := statements.NewFetcher(conf.FetchTimeout, conf.FetcherOptions...)

	fiberConf := FiberServerConfig
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		fiberConf.TrustedProxies = tps
		fiberConf.EnableTrustedProxyCheck = true
	}
	fiberConf.ProxyHeader = serverConf.ForwardedIPHeader
	server := fiber.New(fiberConf)
	server.Use(recover.New())
	server.Use(compress.New())
	accessLog := logger.ConfigDefault
	if conf.AccessLog != nil {
		accessLog.Output = conf.AccessLog
	}
	server.Use(logger.New(accessLog))
	server.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	r := &Registrar{
		entityID:   conf.EntityID,
		endpoints:  conf.Endpoints,
		server:     server,
		serverConf: serverConf,
		keys:       keyManager,
		registry:   reg,
		issuer:     issuer,
		workflow:   workflow.New(fetcher, validation.NewEngine(storages.Rules), reg, issuer, fetchURL),
	}
	r.routes()

	if conf.AdminAPI != nil {
		adminapi.Register(
			server.Group(AdminAPIPath), adminapi.Dependencies{
				EntityID: conf.EntityID,
				Storages: storages,
				Keys:     keyManager,
				Registry: reg,
				Issuer:   issuer,
			}, conf.AdminAPI,
		)
	}
	return r, nil
}

func (r *Registrar) routes() {
	r.server.Get("/.well-known/openid-federation", r.handleEntityConfiguration)
	r.server.Post(r.endpoints.Register.Path, r.handleRegister)
	r.server.Get(r.endpoints.Fetch.Path, r.handleFetch)
	r.server.Get(r.endpoints.List.Path, r.handleList)
	r.server.Get(DefaultEntityPath+"/*", r.handleEntity)
	r.server.Get(DefaultHealthPath, r.handleHealth)
}

// EntityID returns the entity id of the federation
func (r *Registrar) EntityID() string {
	return r.entityID
}

// Keys returns the key manager
func (r *Registrar) Keys() *keys.Manager {
	return r.keys
}

// Registry returns the entity registry
func (r *Registrar) Registry() *registry.Registry {
	return r.registry
}

// Issuer returns the statement issuer
func (r *Registrar) Issuer() *statements.Issuer {
	return r.issuer
}

// Init creates the signing key if there is none yet, so that the first
// request does not pay for the key generation
func (r *Registrar) Init() error {
	key, err := r.keys.GetOrCreateActiveKey()
	if err != nil {
		return err
	}
	log.WithField("kid", key.KID).Info("using signing key")
	return nil
}

// PurgeEvery deletes expired statements in the passed interval until stop is
// closed
func (r *Registrar) PurgeEvery(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := r.issuer.Purge(); err != nil {
				log.WithError(err).Error("could not purge expired entity statements")
			}
		}
	}
}

// InvalidateEntityConfiguration drops the cached own statement, e.g. after
// a key rotation
func (r *Registrar) InvalidateEntityConfiguration() error {
	if err := cache.Delete(cache.Key(cache.KeyEntityConfiguration, r.entityID)); err != nil {
		log.WithError(err).Warn("could not delete cached entity configuration")
	}
	return r.issuer.InvalidateOwn()
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (r *Registrar) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(r.server)
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (r *Registrar) Listen(addr string) error {
	return r.server.Listen(addr)
}

// Shutdown gracefully stops the server
func (r *Registrar) Shutdown() error {
	return r.server.Shutdown()
}

// Start starts the server as configured in the ServerConf; it only returns
// if the server fails
func (r *Registrar) Start() {
	conf := r.serverConf
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled starting http server")
		log.WithError(r.server.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
	}
	// TLS enabled
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(conf.IPListen + ":80")).Fatal()
		}()
	}
	time.Sleep(time.Millisecond) // This is just for a more pretty output with the tls header printed after the http one
	log.Info("TLS enabled, starting https server on port 443")
	log.WithError(r.server.ListenTLS(conf.IPListen+":443", conf.TLS.Cert, conf.TLS.Key)).Fatal()
}
