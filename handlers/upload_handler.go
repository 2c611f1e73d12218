package handlers

import (
	"net/url"
	"strconv"
	"time"

	"github.com/anjiri1684/companion_booking/services"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"
)

const evidenceFolder = "companion_booking_evidence"

// EvidenceSignature signs a direct browser upload of dispute evidence into a
// folder scoped to the dispute. Only the two parties may upload.
func (h *Handlers) EvidenceSignature(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	disputeID, err := paramID(c, "disputeId")
	if err != nil {
		return err
	}
	dispute, err := h.Disputes.Get(c.UserContext(), disputeID)
	if err != nil {
		return respondError(c, err)
	}
	if dispute.RaisedBy != who.UserID && dispute.AgainstUserID != who.UserID {
		return respondError(c, services.ErrForbidden)
	}

	cloudinaryURL := h.Settings.CloudinaryURL
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to initialize Cloudinary"})
	}
	parsedURL, err := url.Parse(cloudinaryURL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to parse Cloudinary URL"})
	}
	secret, _ := parsedURL.User.Password()

	folder := evidenceFolder + "/" + dispute.ID.String()
	paramsToSign, err := api.StructToParams(uploader.UploadParams{Folder: folder})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to prepare signature params"})
	}

	timestamp := time.Now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, secret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign upload params"})
	}

	return c.JSON(fiber.Map{
		"signature":  signature,
		"timestamp":  timestamp,
		"api_key":    cld.Config.Cloud.APIKey,
		"cloud_name": cld.Config.Cloud.CloudName,
		"folder":     folder,
	})
}
