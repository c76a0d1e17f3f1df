package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/resumeparser-backend/api/responses"
	"github.com/angelmondragon/resumeparser-backend/api/validators"
	"github.com/angelmondragon/resumeparser-backend/internal/resumes"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/resumeparser-backend/pkg/errors"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

const (
	formFieldFile    = "file"
	formFieldOptions = "options"
	formFieldWebhook = "webhookUrl"

	// room for multipart boundaries and the non-file fields
	multipartOverhead = 1 << 20
	maxMemory         = 8 << 20
)

// ResumeUpload accepts a multipart resume upload.
func ResumeUpload(svc resumes.Service, upload config.UploadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "resume service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, upload.MaxBytes()+multipartOverhead)
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			responses.WriteError(r.Context(), logg, w, multipartError(err, upload))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(formFieldFile)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required"))
			return
		}
		defer file.Close()

		if _, err := resumes.ValidateExtension(header.Filename); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opts := types.DefaultProcessingOptions()
		if raw := r.FormValue(formFieldOptions); strings.TrimSpace(raw) != "" {
			if err := validators.DecodeJSONField(formFieldOptions, raw, &opts); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var webhook *string
		if raw, ok := formValue(r.MultipartForm, formFieldWebhook); ok {
			if v := validators.SanitizeString(raw, 2048); v != "" {
				webhook = &v
			}
		}

		result, err := svc.Upload(r.Context(), resumes.UploadInput{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
			Options:     opts,
			WebhookURL:  webhook,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ResumeGet returns the full projection of one resume.
func ResumeGet(svc resumes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resumeIDParam(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Resume not found"))
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// ResumeStatus returns the processing status of one resume.
func ResumeStatus(svc resumes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resumeIDParam(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Resume not found"))
			return
		}
		status, err := svc.Status(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// resumeIDParam parses {id}. Anything that is not a uuid cannot name a
// resume, so callers answer 404.
func resumeIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func formValue(form *multipart.Form, key string) (string, bool) {
	if form == nil {
		return "", false
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func multipartError(err error, upload config.UploadConfig) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return pkgerrors.New(pkgerrors.CodePayloadTooLarge, resumes.TooLargeMessage(upload))
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
}
