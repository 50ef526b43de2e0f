package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/pkg/logmate/httpx"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// uploadField is the multipart field carrying the log file.
const uploadField = "log_file"

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

const fallbackFileName = "upload.log"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) error {
	if s.opts.MaxUploadBytes > 0 {
		if r.ContentLength > s.opts.MaxUploadBytes {
			return s.tooLarge()
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return s.tooLarge()
		}
		return httpx.Errorf(http.StatusBadRequest, "No file uploaded")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return httpx.Errorf(http.StatusBadRequest, "No file uploaded")
	}
	defer file.Close()

	jobID := uuid.New().String()
	name := sanitizeFileName(header.Filename)
	stored := jobID + "-" + name
	path := filepath.Join(s.opts.UploadDir, stored)

	size, err := saveFile(path, file)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	filePath := path
	if s.deps.Blob != nil {
		uri, err := s.archive(r, path, stored, size)
		if err != nil {
			return err
		}
		filePath = uri
	}

	log := zlog.With().Str("component", "server").Str("job_id", jobID).Logger()

	_, err = s.deps.Jobs.Create(protocol.Job{
		ID:       jobID,
		FileName: name,
		FilePath: filePath,
		FileSize: size,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	task := protocol.Task{
		JobID:    jobID,
		FilePath: filePath,
		FileName: name,
		FileSize: size,
		Version:  protocol.LogmateVersion,
	}
	if err := s.deps.Queue.Enqueue(r.Context(), task); err != nil {
		log.Error().Err(err).Msg("failed to enqueue job")
		if _, markErr := s.deps.Jobs.MarkFailed(jobID, err); markErr != nil {
			log.Warn().Err(markErr).Msg("failed to mark job failed")
		}
		return httpx.Errorf(http.StatusServiceUnavailable, "queue unavailable: %v", err)
	}

	log.Info().
		Str("file", name).
		Str("size", humanize.Bytes(uint64(size))).
		Msg("file uploaded")

	httpx.JSON(w, http.StatusOK, protocol.UploadResponse{
		TaskID:   jobID,
		FileName: name,
		FileSize: size,
		Message:  protocol.UploadAcceptedMessage,
	})
	return nil
}

func (s *Server) tooLarge() error {
	return httpx.Errorf(http.StatusRequestEntityTooLarge,
		"File too large (limit %s)", humanize.Bytes(uint64(s.opts.MaxUploadBytes)))
}

// archive copies the saved upload to S3 and removes the local copy.
func (s *Server) archive(r *http.Request, path, key string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reopen upload: %w", err)
	}
	defer f.Close()

	uri, err := s.deps.Blob.Put(r.Context(), key, f, size)
	if err != nil {
		os.Remove(path)
		return "", httpx.Errorf(http.StatusBadGateway, "archive upload: %v", err)
	}
	if err := os.Remove(path); err != nil {
		zlog.Warn().Err(err).Str("component", "server").Str("path", path).Msg("failed to remove archived upload")
	}
	return uri, nil
}

func saveFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

// sanitizeFileName keeps the base name of an uploaded file and replaces
// anything outside [A-Za-z0-9._-].
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)

	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return fallbackFileName
	}
	return clean
}
