package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

//go:embed templates/payout_receipt.html
var payoutReceiptHTML string

var payoutReceiptTemplate = template.Must(template.New("payout_receipt").Parse(payoutReceiptHTML))

type receiptData struct {
	PayoutID          string
	IssuedOn          string
	CompanionName     string
	Method            string
	TransferReference string
	Requested         string
	Fee               string
	Net               string
}

func renderPayoutReceipt(payout models.Payout, companion models.User, issued time.Time) (string, error) {
	data := receiptData{
		PayoutID:      payout.ID.String(),
		IssuedOn:      issued.Format("January 2, 2006"),
		CompanionName: companion.FullName,
		Method:        string(payout.PaymentMethod),
		Requested:     payout.RequestedAmount.StringFixed(2),
		Fee:           payout.PlatformFee.StringFixed(2),
		Net:           payout.Amount.StringFixed(2),
	}
	if payout.TransferReference != nil {
		data.TransferReference = *payout.TransferReference
	}

	var rendered bytes.Buffer
	if err := payoutReceiptTemplate.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

// PDFReceipts prints receipts with headless Chrome and stores them on
// Cloudinary.
type PDFReceipts struct {
	cld *cloudinary.Cloudinary
}

func NewPDFReceipts(cloudinaryURL string) (*PDFReceipts, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &PDFReceipts{cld: cld}, nil
}

func (r *PDFReceipts) PayoutReceipt(ctx context.Context, payout models.Payout, companion models.User) (string, error) {
	htmlData, err := renderPayoutReceipt(payout, companion, time.Now())
	if err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	pdfBytes, err := generatePDFFromHTML(ctx, htmlData)
	if err != nil {
		return "", fmt.Errorf("print receipt: %w", err)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.cld.Upload.Upload(uploadCtx, bytes.NewReader(pdfBytes), uploader.UploadParams{
		PublicID:     fmt.Sprintf("payout_%s", payout.ID),
		Folder:       "companion_booking_receipts",
		ResourceType: "raw",
	})
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	return result.SecureURL, nil
}

func generatePDFFromHTML(ctx context.Context, htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}
