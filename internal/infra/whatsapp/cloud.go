// internal/infra/whatsapp/cloud.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultGraphAPIURL is the WhatsApp Business Cloud API base.
const DefaultGraphAPIURL = "https://graph.facebook.com/v21.0"

const messagingProduct = "whatsapp"

// CloudClient is the stateless delivery channel over the WhatsApp Business
// Cloud API. A send is two requests: upload the image to obtain a media
// handle, then post a message referencing it. There is no session to manage,
// so Open and Close are no-ops.
type CloudClient struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	hc            *http.Client
	log           *logrus.Entry
}

func NewCloudClient(baseURL, phoneNumberID, accessToken string, log *logrus.Entry) *CloudClient {
	if baseURL == "" {
		baseURL = DefaultGraphAPIURL
	}
	return &CloudClient{
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		hc:            &http.Client{Timeout: 30 * time.Second},
		log:           log,
	}
}

func (c *CloudClient) Open(context.Context) error { return nil }
func (c *CloudClient) Close() error               { return nil }

// Send uploads imagePath and sends it to recipient with the caption.
// A failure at either step aborts the send for this recipient; there is no
// partial state to clean up.
func (c *CloudClient) Send(ctx context.Context, recipient, imagePath, caption string) error {
	mediaID, err := c.UploadMedia(ctx, imagePath)
	if err != nil {
		return fmt.Errorf("media upload: %w", err)
	}
	c.log.WithField("media_id", mediaID).Debug("Media uploaded.")

	if err := c.sendImage(ctx, recipient, mediaID, caption); err != nil {
		return fmt.Errorf("image message: %w", err)
	}
	return nil
}

// UploadMedia pushes the file to the media endpoint and returns the opaque
// media identifier.
func (c *CloudClient) UploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := mw.WriteField("messaging_product", messagingProduct); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload response carries no media id")
	}
	return out.ID, nil
}

type imagePayload struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type textPayload struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type messageRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Image            *imagePayload `json:"image,omitempty"`
	Text             *textPayload  `json:"text,omitempty"`
}

func (c *CloudClient) sendImage(ctx context.Context, to, mediaID, caption string) error {
	return c.sendMessage(ctx, messageRequest{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "image",
		Image:            &imagePayload{ID: mediaID, Caption: caption},
	})
}

// SendText delivers a plain text message, used by the single-shot mode to
// report the dispatch tally.
func (c *CloudClient) SendText(ctx context.Context, to, body string) error {
	return c.sendMessage(ctx, messageRequest{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{PreviewURL: false, Body: body},
	})
}

func (c *CloudClient) sendMessage(ctx context.Context, msg messageRequest) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.do(req, &out); err != nil {
		return err
	}
	if len(out.Messages) > 0 {
		c.log.WithField("message_id", out.Messages[0].ID).Debug("Message accepted.")
	}
	return nil
}

// do executes the request and decodes the response into out, mapping error
// statuses to the API's message field when present.
func (c *CloudClient) do(req *http.Request, out interface{}) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message != "" {
			return fmt.Errorf("whatsapp API: %s (status=%d)", apiErr.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("whatsapp API failed (status=%d)", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("malformed API response: %w", err)
		}
	}
	return nil
}
