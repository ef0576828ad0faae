package media

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-auth-accounts"
)

// TextCodeUploadFailed is the text code for rejected uploads
const TextCodeUploadFailed = "UPLOAD_FAILED"

// TextCodeUploadNotConfigured is the text code for missing credentials
const TextCodeUploadNotConfigured = "UPLOAD_NOT_CONFIGURED"

const imageResourceType = "image"

// UploadOptions controls where an upload is stored
type UploadOptions struct {
	Folder   string
	PublicID string
}

// UploadResult is the subset of the host response we keep
type UploadResult struct {
	PublicID  string
	URL       string
	SecureURL string
	Format    string
	Bytes     int
	Width     int
	Height    int
}

// Uploader stores image bytes with a media host
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// CloudinaryConfig holds the account credentials
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// BaseURL overrides the API upload prefix, https://api.cloudinary.com by default
	BaseURL string
}

// Configured reports whether all credentials are present
func (c CloudinaryConfig) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// CloudinaryUploader stores profile pictures through the Cloudinary SDK
type CloudinaryUploader struct {
	config CloudinaryConfig
	cld    *cloudinary.Cloudinary
}

var (
	_ Uploader           = (*CloudinaryUploader)(nil)
	_ auth.MediaUploader = (*CloudinaryUploader)(nil)
)

// CloudinaryOption configures a CloudinaryUploader
type CloudinaryOption func(*CloudinaryUploader)

// WithHTTPClient sets the HTTP client used by the SDK
func WithHTTPClient(client *http.Client) CloudinaryOption {
	return func(u *CloudinaryUploader) {
		if client != nil {
			u.cld.Upload.Client = *client
		}
	}
}

// NewCloudinaryUploader returns a new uploader, credentials are required
func NewCloudinaryUploader(config CloudinaryConfig, opts ...CloudinaryOption) (*CloudinaryUploader, error) {
	if !config.Configured() {
		return nil, errors.New("cloudinary credentials are not configured", errors.CategoryInternal).
			WithTextCode(TextCodeUploadNotConfigured).
			WithCode(errors.CodeInternal)
	}

	cld, err := cloudinary.NewFromParams(config.CloudName, config.APIKey, config.APISecret)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "invalid cloudinary configuration").
			WithTextCode(TextCodeUploadNotConfigured).
			WithCode(errors.CodeInternal)
	}

	if config.BaseURL != "" {
		cld.Upload.Config.API.UploadPrefix = strings.TrimRight(config.BaseURL, "/")
	}

	u := &CloudinaryUploader{config: config, cld: cld}

	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}

	return u, nil
}

// UploadImage uploads r under a random public id in the configured folder
func (u *CloudinaryUploader) UploadImage(ctx context.Context, r io.Reader, _ string) (*auth.UploadedImage, error) {
	res, err := u.Upload(ctx, r, UploadOptions{})
	if err != nil {
		return nil, err
	}

	url := res.SecureURL
	if url == "" {
		url = res.URL
	}

	return &auth.UploadedImage{URL: url, ID: res.PublicID}, nil
}

// DeleteImage removes a previously uploaded image
func (u *CloudinaryUploader) DeleteImage(ctx context.Context, id string) error {
	return u.Destroy(ctx, id)
}

// Upload sends a signed upload request
func (u *CloudinaryUploader) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	if opts.Folder == "" {
		opts.Folder = u.config.Folder
	}

	if opts.PublicID == "" {
		opts.PublicID = uuid.NewString()
	}

	res, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     opts.PublicID,
		Folder:       opts.Folder,
		ResourceType: imageResourceType,
	})
	if err != nil {
		return nil, uploadError(err, "image host unreachable")
	}

	if res == nil {
		return nil, rejected("empty upload response")
	}

	if res.Error.Message != "" {
		return nil, rejected(res.Error.Message)
	}

	return &UploadResult{
		PublicID:  res.PublicID,
		URL:       res.URL,
		SecureURL: res.SecureURL,
		Format:    res.Format,
		Bytes:     res.Bytes,
		Width:     res.Width,
		Height:    res.Height,
	}, nil
}

// Destroy removes an asset by its public id
func (u *CloudinaryUploader) Destroy(ctx context.Context, publicID string) error {
	res, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: imageResourceType,
	})
	if err != nil {
		return uploadError(err, "image host unreachable")
	}

	if res != nil && res.Error.Message != "" {
		return rejected(res.Error.Message)
	}

	return nil
}

func rejected(message string) *errors.Error {
	return errors.New("image upload failed", errors.CategoryOperation).
		WithTextCode(TextCodeUploadFailed).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{
			"message": message,
		})
}

func uploadError(err error, msg string) *errors.Error {
	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(TextCodeUploadFailed).
		WithCode(http.StatusBadGateway)
}
