package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"medvault/internal/service"
)

// uploadField is the multipart form field carrying the file.
const uploadField = "file"

// parseID reads the :id route parameter. Non-numeric or non-positive ids are rejected.
func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListDocuments returns every document, newest first.
//
// @Summary List documents
// @Tags documents
// @Produce json
// @Success 200 {object} envelope{data=[]model.Document}
// @Failure 500 {object} envelope
// @Router /api/documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := docSvc.List(c.UserContext())
		if err != nil {
			return writeInternal(c, err)
		}
		return c.JSON(envelope{Success: true, Data: res.Items, Total: &res.Total})
	}
}

// CountDocuments returns the number of documents.
//
// @Summary Count documents
// @Tags documents
// @Produce json
// @Success 200 {object} envelope
// @Failure 500 {object} envelope
// @Router /api/documents/count [get]
func CountDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := docSvc.Count(c.UserContext())
		if err != nil {
			return writeInternal(c, err)
		}
		return c.JSON(envelope{Success: true, Data: fiber.Map{"count": n}})
	}
}

// DocumentStats returns the document count, total stored bytes and the latest upload time.
//
// @Summary Document statistics
// @Tags documents
// @Produce json
// @Success 200 {object} envelope{data=repository.Stats}
// @Failure 500 {object} envelope
// @Router /api/documents/stats [get]
func DocumentStats(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := docSvc.Stats(c.UserContext())
		if err != nil {
			return writeInternal(c, err)
		}
		return c.JSON(envelope{Success: true, Data: st})
	}
}

// GetDocument returns a document's metadata, or streams the file as an attachment
// when download is true.
//
// @Summary Get or download a document
// @Tags documents
// @Produce json,octet-stream
// @Param id path int true "Document ID"
// @Param download query bool false "Stream the file instead of metadata"
// @Success 200 {object} envelope{data=model.Document}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Failure 500 {object} envelope
// @Router /api/documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		download, _ := strconv.ParseBool(c.Query("download"))
		if !download {
			doc, err := docSvc.Get(c.UserContext(), id)
			if err != nil {
				return writeServiceError(c, err)
			}
			return c.JSON(envelope{Success: true, Data: doc})
		}

		doc, rc, meta, err := docSvc.Open(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Attachment(doc.Filename)
		if meta.ContentType != "" {
			c.Set(fiber.HeaderContentType, meta.ContentType)
		}
		// fasthttp closes rc once the body has been written.
		if meta.Size > 0 {
			return c.SendStream(rc, int(meta.Size))
		}
		return c.SendStream(rc)
	}
}

// UploadDocument accepts a multipart upload in the "file" field.
//
// @Summary Upload a document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF, PNG, JPEG or Word document"
// @Success 201 {object} envelope{data=model.Document}
// @Failure 400 {object} envelope
// @Failure 413 {object} envelope
// @Failure 500 {object} envelope
// @Router /api/documents/upload [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(uploadField)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "No file uploaded")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get(fiber.HeaderContentType)
		if ct == "" {
			ct = fiber.MIMEOctetStream
		}

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(envelope{
			Success: true,
			Message: "Document uploaded successfully",
			Data:    doc,
		})
	}
}

// DeleteDocument removes a document and its file.
//
// @Summary Delete a document
// @Tags documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Failure 500 {object} envelope
// @Router /api/documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Delete(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(envelope{
			Success: true,
			Message: "Document deleted successfully",
			Data:    fiber.Map{"id": doc.ID, "filename": doc.Filename},
		})
	}
}
