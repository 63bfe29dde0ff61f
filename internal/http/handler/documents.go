package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/schema"
	"docvault/internal/service"
)

// presignExpiry bounds the lifetime of redirect URLs handed out by DownloadDocument.
const presignExpiry = 5 * time.Minute

// serviceError maps service errors onto the error envelope. Internal details never leave the server.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrForbidden):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "only the owner may do this")
	case errors.Is(err, service.ErrInvalidInput):
		return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))
	case errors.Is(err, service.ErrIdentityRequired):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	case errors.Is(err, service.ErrReaderNil):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// documentID returns the :id route parameter and whether it is a valid UUID.
func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	_, err := uuid.Parse(id)
	return id, err == nil
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
}

// ListDocuments godoc
// @Summary  List the caller's documents
// @Tags     documents
// @Produce  json
// @Param    limit   query int false "page size, 0 for all"
// @Param    offset  query int false "rows to skip"
// @Success  200 {object} listResponse
// @Router   /api/docs [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := docSvc.List(c.UserContext(), middleware.IdentityFromCtx(c), limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(listResponse{Data: toRecords(res.Items), Total: res.Total})
	}
}

// GetDocument godoc
// @Summary  Fetch one document
// @Tags     documents
// @Produce  json
// @Param    id path string true "document id"
// @Router   /api/docs/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		doc, err := docSvc.Get(c.UserContext(), middleware.IdentityFromCtx(c), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(toRecord(doc))
	}
}

// UploadDocument godoc
// @Summary  Upload a new document
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    file      formData file   true  "content"
// @Param    title     formData string true  "title"
// @Param    category  formData string true  "category"
// @Param    year      formData string true  "year"
// @Param    org       formData string true  "issuing organization"
// @Param    recipient formData string false "JSON array of recipients"
// @Router   /api/docs [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		recipients, err := parseRecipients(formValue(c, "recipient", "recipients"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_RECIPIENT", "recipient must be a JSON array of strings")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := docSvc.Upload(c.UserContext(), service.UploadInput{
			Identity:    middleware.IdentityFromCtx(c),
			Reader:      f,
			FileName:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Meta: model.Metadata{
				Title:             formValue(c, "title"),
				Category:          formValue(c, "category"),
				SubCategory:       formValue(c, "subCategory", "sub_category"),
				Year:              formValue(c, "year"),
				Org:               formValue(c, "org"),
				Recipients:        recipients,
				WarrantyStart:     formValue(c, "warrantyStart", "warranty_start"),
				WarrantyExpiresAt: formValue(c, "warrantyExpiresAt", "warranty_expires_at"),
				AutoDeleteAfter:   formValue(c, "autoDeleteAfter", "auto_delete_after"),
			},
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(toRecord(doc))
	}
}

// formValue returns the first non-empty form field among names.
func formValue(c *fiber.Ctx, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.FormValue(n)); v != "" {
			return v
		}
	}
	return ""
}

// parseRecipients accepts a JSON array of strings. An empty value means no recipients.
func parseRecipients(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// UpdateDocument godoc
// @Summary  Partially update a document
// @Tags     documents
// @Accept   json
// @Produce  json
// @Param    id path string true "document id"
// @Router   /api/docs/{id} [put]
func UpdateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}

		var rec schema.Record
		if err := json.Unmarshal(c.Body(), &rec); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object")
		}
		patch, err := schema.DecodePatch(rec)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FIELD", err.Error())
		}

		doc, err := docSvc.Update(c.UserContext(), middleware.IdentityFromCtx(c), id, patch)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(toRecord(doc))
	}
}

type trashRequest struct {
	Trashed *bool `json:"trashed"`
}

// TrashDocument godoc
// @Summary  Move a document to or out of the trash
// @Tags     documents
// @Accept   json
// @Produce  json
// @Param    id path string true "document id"
// @Router   /api/docs/{id}/trash [put]
func TrashDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}

		var req trashRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || req.Trashed == nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", `body must be {"trashed": true|false}`)
		}

		doc, err := docSvc.SetTrashed(c.UserContext(), middleware.IdentityFromCtx(c), id, *req.Trashed)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(toRecord(doc))
	}
}

// DeleteDocument godoc
// @Summary  Permanently delete a document
// @Tags     documents
// @Param    id path string true "document id"
// @Success  204
// @Router   /api/docs/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		if err := docSvc.Delete(c.UserContext(), middleware.IdentityFromCtx(c), id); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadDocument godoc
// @Summary  Download a document's bytes
// @Tags     documents
// @Produce  application/octet-stream
// @Param    id      path  string true  "document id"
// @Param    presign query bool   false "redirect to a pre-signed storage URL"
// @Router   /api/docs/{id}/download [get]
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		who := middleware.IdentityFromCtx(c)

		if c.QueryBool("presign") {
			u, err := docSvc.PresignDownload(c.UserContext(), who, id, presignExpiry)
			if err != nil {
				return serviceError(c, err)
			}
			return c.Redirect(u, fiber.StatusTemporaryRedirect)
		}

		dl, err := docSvc.Download(c.UserContext(), who, id)
		if err != nil {
			return serviceError(c, err)
		}

		c.Set(fiber.HeaderContentType, dl.ContentType)
		if name := dl.Document.FileName; name != "" {
			c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		}
		return c.SendStream(dl.Body, int(dl.Size))
	}
}
