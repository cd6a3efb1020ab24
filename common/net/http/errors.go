package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opendogma/dogma/common"
)

// ResponseError is the JSON body returned to the client on failure.
type ResponseError struct {
	Kind    string `json:"kind,omitempty"`
	Entity  string `json:"entity,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r ResponseError) Error() string {
	return r.Message
}

// WithError maps a DogmaError's Kind (and plain validation errors) to the
// appropriate HTTP status and writes the JSON body.
func WithError(c *fiber.Ctx, err error) error {
	if ve, ok := err.(*common.ValidationError); ok {
		return badRequest(c, ResponseError{Kind: "INVALID_CHANGE", Entity: ve.Entity, Message: ve.Message})
	}

	kind := common.KindOf(err)
	if kind == "" {
		return internalServerError(c, err)
	}

	body := ResponseError{Kind: string(kind), Message: err.Error()}

	switch kind {
	case common.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(body)
	case common.KindExists, common.KindConflict, common.KindStillReferenced, common.KindAlreadyRemoved:
		return c.Status(fiber.StatusConflict).JSON(body)
	case common.KindInvalidCommand, common.KindInvalidChange, common.KindDeprecated:
		return badRequest(c, body)
	case common.KindReadOnly:
		return c.Status(fiber.StatusForbidden).JSON(body)
	case common.KindNotLeader:
		return c.Status(fiber.StatusTemporaryRedirect).JSON(body)
	case common.KindReplicationTimeout:
		return c.Status(fiber.StatusGatewayTimeout).JSON(body)
	case common.KindReplicationDivergence, common.KindStorageIO:
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	default:
		return internalServerError(c, err)
	}
}

func badRequest(c *fiber.Ctx, body ResponseError) error {
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func internalServerError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{
		Kind:    "INTERNAL",
		Message: err.Error(),
	})
}
