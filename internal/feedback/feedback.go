// Package feedback validates and submits user feedback.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"

	"coursegen/internal/gateway"
)

var (
	// ErrRatingRequired is returned when no rating in 1..5 was given.
	ErrRatingRequired = errors.New("please select a rating")
	// ErrAttachmentType is returned for attachments that are not images.
	ErrAttachmentType = errors.New("attachment must be a JPEG, PNG, GIF or WEBP image")
)

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Form is the feedback a user fills in
type Form struct {
	UserID     string
	Name       string
	Email      string
	Rating     int
	Comments   string
	Attachment *gateway.Attachment
}

// Submitter posts feedback forms
type Submitter interface {
	SubmitFeedback(ctx context.Context, form gateway.FeedbackForm) (gateway.Ack, error)
}

// Validate checks the rating and the attachment type. An attachment without
// a declared type is sniffed from its content.
func (f *Form) Validate() error {
	if f.Rating < MinRating || f.Rating > MaxRating {
		return ErrRatingRequired
	}
	att := f.Attachment
	if att == nil {
		return nil
	}
	if att.ContentType == "" {
		att.ContentType = DetectType(att.Name, att.Data)
	}
	mediaType, _, err := mime.ParseMediaType(att.ContentType)
	if err != nil || !allowedTypes[mediaType] {
		return fmt.Errorf("%w: got %q", ErrAttachmentType, att.ContentType)
	}
	att.ContentType = mediaType
	return nil
}

// DetectType sniffs the content type of data, falling back to the file
// extension when sniffing is inconclusive.
func DetectType(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if sniffed != "application/octet-stream" {
		mediaType, _, err := mime.ParseMediaType(sniffed)
		if err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return sniffed
}

// LoadAttachment reads the file at path into an attachment with a sniffed
// content type.
func LoadAttachment(path string) (*gateway.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(path)
	return &gateway.Attachment{
		Name:        name,
		ContentType: DetectType(name, data),
		Data:        data,
	}, nil
}

// Submit validates f, stamps it with now and posts it.
func Submit(ctx context.Context, s Submitter, f Form, now time.Time) (gateway.Ack, error) {
	if err := f.Validate(); err != nil {
		return gateway.Ack{}, err
	}
	ack, err := s.SubmitFeedback(ctx, gateway.FeedbackForm{
		UserID:      f.UserID,
		Name:        f.Name,
		Email:       f.Email,
		Rating:      f.Rating,
		Comments:    f.Comments,
		CreatedDate: strconv.FormatInt(now.UnixMilli(), 10),
		Attachment:  f.Attachment,
	})
	if err != nil {
		return gateway.Ack{}, fmt.Errorf("submit feedback: %w", err)
	}
	pslog.Ctx(ctx).Info("feedback.submitted", "user", f.UserID, "rating", f.Rating, "attachment", f.Attachment != nil)
	return ack, nil
}
