package registrar

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	oidfed "github.com/go-oidfed/lib"
	"github.com/go-oidfed/lib/cache"
	"github.com/go-oidfed/lib/oidfedconst"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"tideland.dev/go/slices"

	"github.com/go-oidfed/registrar/storage/model"
)

type registerRequest struct {
	EntityID   string           `json:"entity_id" form:"entity_id"`
	EntityType model.EntityType `json:"entity_type" form:"entity_type"`
}

type registerResponse struct {
	Status        string `json:"status"`
	EntityID      string `json:"entity_id"`
	FetchEndpoint string `json:"fetch_endpoint"`
}

type listRequest struct {
	EntityType string `query:"entity_type"`
}

// listEntityTypes maps the accepted entity_type values of the list endpoint
// to entity types
var listEntityTypes = map[string]model.EntityType{
	"OP":                   model.EntityTypeOP,
	"RP":                   model.EntityTypeRP,
	"openid_provider":      model.EntityTypeOP,
	"openid_relying_party": model.EntityTypeRP,
}

func validEntityID(entityID string) bool {
	u, err := url.Parse(entityID)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func (r *Registrar) handleEntityConfiguration(ctx *fiber.Ctx) error {
	cacheKey := cache.Key(cache.KeyEntityConfiguration, r.entityID)
	var cached []byte
	set, err := cache.Get(cacheKey, &cached)
	if err != nil {
		ctx.Status(fiber.StatusInternalServerError)
		return ctx.JSON(oidfed.ErrorServerError(err.Error()))
	}
	if set {
		ctx.Set(fiber.HeaderContentType, oidfedconst.ContentTypeEntityStatement)
		return ctx.Send(cached)
	}
	jwt, err := r.issuer.OwnStatement()
	if err != nil {
		return writeError(ctx, err)
	}
	if err = cache.Set(cacheKey, []byte(jwt), entityConfigurationCachePeriod); err != nil {
		log.WithError(err).Warn("could not cache entity configuration")
	}
	ctx.Set(fiber.HeaderContentType, oidfedconst.ContentTypeEntityStatement)
	return ctx.SendString(jwt)
}

func (r *Registrar) handleRegister(ctx *fiber.Ctx) error {
	var req registerRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(oidfed.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	req.EntityID = strings.TrimSpace(req.EntityID)
	if req.EntityID == "" || req.EntityType == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(oidfed.ErrorInvalidRequest("entity_id and entity_type required"))
	}
	if !req.EntityType.Valid() {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(oidfed.ErrorInvalidRequest("entity_type must be OP or RP"))
	}
	if !validEntityID(req.EntityID) {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(oidfed.ErrorInvalidRequest("entity_id must be an http(s) url"))
	}
	res, err := r.workflow.Register(ctx.UserContext(), req.EntityID, req.EntityType)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(
		registerResponse{
			Status:        "registered",
			EntityID:      res.EntityID,
			FetchEndpoint: res.StatementRef,
		},
	)
}

func (r *Registrar) handleFetch(ctx *fiber.Ctx) error {
	sub := ctx.Query("sub")
	if sub == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(oidfed.ErrorInvalidRequest("required parameter 'sub' not given"))
	}
	jwt, err := r.issuer.GetOrRenew(sub)
	if err != nil {
		return writeError(ctx, err)
	}
	ctx.Set(fiber.HeaderContentType, oidfedconst.ContentTypeEntityStatement)
	return ctx.SendString(jwt)
}

// unsupportedListFilters are federation list filters this registrar cannot
// apply; other unknown parameters are ignored
var unsupportedListFilters = []string{"trust_marked", "trust_mark_type", "intermediate"}

func (r *Registrar) handleList(ctx *fiber.Ctx) error {
	var unsupported []string
	ctx.Context().QueryArgs().VisitAll(
		func(key, _ []byte) {
			if name := string(key); slices.IsMember(name, unsupportedListFilters) {
				unsupported = append(unsupported, name)
			}
		},
	)
	if len(unsupported) > 0 {
		unsupported = slices.Unique(unsupported)
		sort.Strings(unsupported)
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(
			oidfed.ErrorUnsupportedParameter(
				fmt.Sprintf("the following parameters are not supported: %+v", unsupported),
			),
		)
	}
	var req listRequest
	if err := ctx.QueryParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(oidfed.ErrorInvalidRequest("could not parse request parameters: " + err.Error()))
	}
	var entityType model.EntityType
	if req.EntityType != "" {
		var ok bool
		entityType, ok = listEntityTypes[req.EntityType]
		if !ok {
			ctx.Status(fiber.StatusBadRequest)
			return ctx.JSON(oidfed.ErrorUnsupportedParameter("unsupported entity_type: " + req.EntityType))
		}
	}
	active := model.StatusActive
	entities, err := r.registry.List(entityType, &active)
	if err != nil {
		return writeError(ctx, err)
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.EntityID
	}
	return ctx.JSON(fiber.Map{"entities": ids})
}

// entityIDFromPath returns the entity id from a path parameter; ids may be
// url encoded and default to the https scheme
func entityIDFromPath(param string) string {
	id, err := url.PathUnescape(param)
	if err != nil {
		id = param
	}
	if !strings.HasPrefix(id, "http://") && !strings.HasPrefix(id, "https://") {
		id = "https://" + id
	}
	return id
}

func (r *Registrar) handleEntity(ctx *fiber.Ctx) error {
	entityID := entityIDFromPath(ctx.Params("*"))
	entity, err := r.registry.Get(entityID)
	if err != nil {
		return writeError(ctx, err)
	}
	// only admitted entities are public; the admin api shows all of them
	if entity.Status != model.StatusActive {
		return writeError(ctx, model.NotFoundErrorFmt("entity '%s' not found", entityID))
	}
	return ctx.JSON(entity)
}

func (*Registrar) handleHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "healthy"})
}
