package web

import (
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/services"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetDocuments(c fiber.Ctx) error {
	opts := persistence.ListDocumentsOptions{OwnerID: c.Query("owner_id")}

	if s := c.Query("status"); s != "" {
		status := models.DocumentStatus(s)
		opts.Status = &status
	}

	docs, err := h.documents.List(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"documents": docs})
}

func (h *APIHandlers) CreateDocument(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	var req CreateDocumentRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	doc, err := h.documents.Create(c.Context(), services.CreateDocumentRequest{
		Title:   req.Title,
		OwnerID: a,
		Writers: req.Writers,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *APIHandlers) GetDocument(c fiber.Ctx) error {
	doc, err := h.documents.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

func (h *APIHandlers) PublishDocument(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	doc, err := h.documents.Publish(c.Context(), c.Params("id"), a)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

func (h *APIHandlers) ArchiveDocument(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	doc, err := h.documents.Archive(c.Context(), c.Params("id"), a)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

// LockDocument takes the edit lock. The body is optional.
func (h *APIHandlers) LockDocument(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	var req services.LockRequest
	if len(c.Body()) > 0 {
		if ok, err := h.bind(c, &req); !ok {
			return err
		}
	}

	result, doc, err := h.documents.Lock(c.Context(), c.Params("id"), a, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(lockStatus(result)).JSON(LockResponse{Result: result, Document: doc})
}

func (h *APIHandlers) UnlockDocument(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	result, doc, err := h.documents.Unlock(c.Context(), c.Params("id"), a)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(lockStatus(result)).JSON(LockResponse{Result: result, Document: doc})
}

// GetDocumentEditable answers for the request actor, or anonymously without one.
func (h *APIHandlers) GetDocumentEditable(c fiber.Ctx) error {
	editable, err := h.documents.Editable(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(editable)
}
